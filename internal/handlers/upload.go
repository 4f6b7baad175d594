package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/service"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

// multipartOverhead is allowed on top of the image size for the metadata
// field and multipart framing
const multipartOverhead = 1 << 20

// UploadHandler handles POST /upload-image
type UploadHandler struct {
	uploader     recycling.Uploader
	maxImageSize int64
	logger       *zap.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploader recycling.Uploader, maxImageSize int64, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{
		uploader:     uploader,
		maxImageSize: maxImageSize,
		logger:       logger,
	}
}

// HandleUpload handles POST /upload-image - multipart "image" file plus "metadata" JSON string
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := service.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))

	limit := h.maxImageSize + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Upload body over limit",
				zap.String("request_id", service.RequestIDFrom(ctx)),
				zap.Int64("limit", limit))
			writeDetail(w, http.StatusBadRequest,
				fmt.Sprintf("Image too large, must be smaller than %d bytes", h.maxImageSize))
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	values, ok := r.MultipartForm.Value["metadata"]
	if !ok || len(values) == 0 {
		writeDetail(w, http.StatusBadRequest, "metadata is required")
		return
	}

	// Read one byte past the limit so oversized files reach the size check
	data, err := io.ReadAll(io.LimitReader(file, h.maxImageSize+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded image", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, InternalErrorDetail)
		return
	}

	resp, err := h.uploader.HandleUpload(ctx, recycling.UploadRequest{
		Image:        data,
		ContentType:  header.Header.Get("Content-Type"),
		Filename:     header.Filename,
		MetadataJSON: values[0],
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
