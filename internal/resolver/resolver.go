package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/metrics"
	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/storage"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

// Resolver turns an image and a region key into disposal instructions
type Resolver struct {
	documents   storage.DocumentReader
	model       models.VisionModel
	imageMaxDim int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// Option customizes a Resolver
type Option func(*Resolver)

// WithImageMaxDim bounds the longest image side sent to the model
func WithImageMaxDim(n int) Option {
	return func(r *Resolver) { r.imageMaxDim = n }
}

// WithMetrics records model call latency and outcome
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a resolver reading documents from docs and classifying with model
func New(docs storage.DocumentReader, model models.VisionModel, opts ...Option) *Resolver {
	r := &Resolver{
		documents: docs,
		model:     model,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reads the instruction document for regionKey, asks the model to
// classify the image against it and returns the model's text unmodified.
func (r *Resolver) Resolve(ctx context.Context, image []byte, regionKey string) (string, error) {
	instructions, err := r.documents.Read(ctx, regionKey)
	if err != nil {
		if errors.Is(err, recycling.ErrInstructionNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to read instructions for %q: %w", regionKey, err)
	}

	data, mime, resized := prepareImage(image, r.imageMaxDim)
	if resized {
		r.logger.Debug("Image downscaled for model",
			zap.Int("original_bytes", len(image)),
			zap.Int("sent_bytes", len(data)))
	}

	prompt := models.Prompt{
		Text:     buildPrompt(regionKey, instructions),
		Image:    data,
		MIMEType: mime,
	}

	start := time.Now()
	text, err := r.model.Describe(ctx, prompt)
	elapsed := time.Since(start)
	r.metrics.ObserveModelCall(r.model.Name(), err, elapsed)

	if err != nil {
		r.logger.Error("Model call failed",
			zap.String("model", r.model.Name()),
			zap.String("region", regionKey),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", recycling.ErrUpstream, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %v", recycling.ErrUpstream, models.ErrEmptyResponse)
	}

	r.logger.Debug("Model call completed",
		zap.String("model", r.model.Name()),
		zap.Duration("elapsed", elapsed))
	return text, nil
}
