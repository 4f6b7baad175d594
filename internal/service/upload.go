package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/logging"
	"github.com/tendant/ecosort-api/internal/metrics"
	"github.com/tendant/ecosort-api/internal/regions"
	"github.com/tendant/ecosort-api/internal/storage"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

const logResponseRunes = 200

// Resolver produces disposal instructions for an image in a region
type Resolver interface {
	Resolve(ctx context.Context, image []byte, regionKey string) (string, error)
}

// Deps are the collaborators of the request handler
type Deps struct {
	Documents    storage.DocumentReader
	Stager       *storage.Stager
	Resolver     Resolver
	Catalog      *regions.Catalog
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	MaxImageSize int64
}

// UploadService validates uploads and delegates classification to the resolver
type UploadService struct {
	deps Deps
}

// NewUploadService creates the request handler
func NewUploadService(deps Deps) *UploadService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &UploadService{deps: deps}
}

// HandleUpload runs one upload through validation, staging and classification.
// Client errors wrap recycling.ErrInvalidInput, ErrPayloadTooLarge or
// ErrInstructionNotFound; any other error must be reported as internal.
func (s *UploadService) HandleUpload(ctx context.Context, req recycling.UploadRequest) (*recycling.Response, error) {
	logger := s.deps.Logger.With(
		zap.String("request_id", RequestIDFrom(ctx)),
		zap.String("filename", req.Filename),
		zap.Int("size", len(req.Image)),
	)
	logger.Info("Received upload", zap.String("metadata", logging.Truncate(req.MetadataJSON, logResponseRunes)))

	raw, meta, err := parseMetadata(req.MetadataJSON)
	if err != nil {
		return nil, s.reject(logger, err)
	}

	if int64(len(req.Image)) > s.deps.MaxImageSize {
		return nil, s.reject(logger, recycling.Detailf(recycling.ErrPayloadTooLarge,
			"Image too large, must be smaller than %d bytes", s.deps.MaxImageSize))
	}

	key := s.lookupKey(meta)
	if key == "" {
		return nil, s.reject(logger, recycling.Detailf(recycling.ErrInvalidInput,
			"city or region must be a non-empty location name"))
	}
	logger = logger.With(zap.String("region", key))

	exists, err := s.deps.Documents.Exists(ctx, key)
	if err != nil {
		s.deps.Metrics.ObserveUpload(metrics.OutcomeServerError)
		logger.Error("Failed to check instruction document", zap.Error(err))
		return nil, fmt.Errorf("failed to check instruction document: %w", err)
	}
	if !exists {
		return nil, s.reject(logger, recycling.Detailf(recycling.ErrInstructionNotFound,
			"Instruction not found for specified city or region"))
	}

	s.deps.Metrics.ObserveImageSize(len(req.Image))

	result, err := s.classify(ctx, logger, req.Image, key)
	if err != nil {
		if errors.Is(err, recycling.ErrInstructionNotFound) {
			return nil, s.reject(logger, recycling.Detailf(recycling.ErrInstructionNotFound,
				"Instruction not found for specified city or region"))
		}
		s.deps.Metrics.ObserveUpload(metrics.OutcomeServerError)
		logger.Error("Error processing request", zap.Error(err))
		return nil, err
	}

	s.deps.Metrics.ObserveUpload(metrics.OutcomeSuccess)
	logger.Info("Recycling instructions retrieved", zap.String("response", logging.Truncate(result, logResponseRunes)))

	return &recycling.Response{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Metadata:    raw,
		Response:    result,
	}, nil
}

// classify stages the image for the duration of the resolver call
func (s *UploadService) classify(ctx context.Context, logger *zap.Logger, image []byte, key string) (string, error) {
	staged, cleanup, err := s.deps.Stager.Stage(image)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("Failed to delete temporary file", zap.String("path", staged.Path), zap.Error(err))
		}
	}()

	return s.deps.Resolver.Resolve(ctx, image, key)
}

// lookupKey prefers a non-empty city over the region
func (s *UploadService) lookupKey(meta recycling.UploadMetadata) string {
	if meta.City != nil {
		if key := s.deps.Catalog.Key(*meta.City); key != "" {
			return key
		}
	}
	if meta.Region != nil {
		return s.deps.Catalog.Key(*meta.Region)
	}
	return ""
}

func (s *UploadService) reject(logger *zap.Logger, err error) error {
	s.deps.Metrics.ObserveUpload(metrics.OutcomeClientError)
	logger.Warn("Upload rejected", zap.Error(err))
	return err
}

// parseMetadata decodes the metadata form field. The raw object is echoed back
// to the caller unchanged.
func parseMetadata(s string) (map[string]any, recycling.UploadMetadata, error) {
	var meta recycling.UploadMetadata

	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil || raw == nil {
		return nil, meta, recycling.Detailf(recycling.ErrInvalidInput, "Invalid JSON metadata")
	}

	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, meta, recycling.Detailf(recycling.ErrInvalidInput, "Invalid metadata: city and region must be strings")
	}
	if meta.Region == nil {
		return nil, meta, recycling.Detailf(recycling.ErrInvalidInput, "Invalid metadata: region is required")
	}
	return raw, meta, nil
}
