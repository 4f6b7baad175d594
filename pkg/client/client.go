package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/tendant/ecosort-api/pkg/recycling"
)

// Client is an HTTP client for the EcoSort API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// NewWithHTTPClient creates a new API client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIError is a non-200 answer from the server
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps 400 answers to recycling.ErrBadRequest and 5xx answers to
// recycling.ErrUpstream. Use Detail to tell client errors apart.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusBadRequest {
		return recycling.ErrBadRequest
	}
	if e.StatusCode >= http.StatusInternalServerError {
		return recycling.ErrUpstream
	}
	return nil
}

// HandleUpload posts an image and its metadata to /upload-image.
// It satisfies recycling.Uploader.
func (c *Client) HandleUpload(ctx context.Context, req recycling.UploadRequest) (*recycling.Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	contentType := req.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(req.Image)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := mw.WriteField("metadata", req.MetadataJSON); err != nil {
		return nil, fmt.Errorf("failed to write metadata field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-image", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out recycling.Response
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Classify uploads image with metadata built from city and region
func (c *Client) Classify(ctx context.Context, filename string, image []byte, meta recycling.UploadMetadata) (*recycling.Response, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return c.HandleUpload(ctx, recycling.UploadRequest{
		Image:        image,
		Filename:     filename,
		MetadataJSON: string(metaJSON),
	})
}

// Health calls GET /health
func (c *Client) Health(ctx context.Context) (*recycling.HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var out recycling.HealthResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Regions calls GET /regions
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/regions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var out recycling.RegionList
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return out.Regions, nil
}

func (c *Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(bodyBytes))}
		var e recycling.ErrorResponse
		if json.Unmarshal(bodyBytes, &e) == nil && e.Detail != "" {
			apiErr.Detail = e.Detail
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsAPIError reports whether err is an APIError with the given status
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
