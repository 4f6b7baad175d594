package recycling

import "context"

// UploadMetadata is the JSON document sent in the "metadata" form field
type UploadMetadata struct {
	City   *string `json:"city,omitempty"`
	Region *string `json:"region"`
}

// UploadRequest carries one image upload into the request handler
type UploadRequest struct {
	Image        []byte
	ContentType  string
	Filename     string
	MetadataJSON string
}

// Response is returned by POST /upload-image
type Response struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Metadata    map[string]any `json:"metadata"`
	Response    string         `json:"response"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// RegionList is returned by GET /regions
type RegionList struct {
	Regions []string `json:"regions"`
}

// Uploader is implemented by both the in-process request handler and the HTTP client
type Uploader interface {
	HandleUpload(ctx context.Context, req UploadRequest) (*Response, error)
}

// Disposal channels the model is asked to choose from
const (
	ChannelGeneralWaste = "general waste (regular garbage bag)"
	ChannelRecyclingBin = "recycling bin (blue bin)"
	ChannelRecyclingBox = "recycling box (blue box)"
	ChannelCompostBag   = "compostable or paper yard waste bag (green bin)"
	ChannelDepot        = "drop off at a recycling depot"
)

// DisposalChannels lists every channel in prompt order
var DisposalChannels = []string{
	ChannelGeneralWaste,
	ChannelRecyclingBin,
	ChannelRecyclingBox,
	ChannelCompostBag,
	ChannelDepot,
}
