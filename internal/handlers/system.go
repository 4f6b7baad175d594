package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tendant/ecosort-api/internal/storage"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

// IndexPath is where GET / redirects
const IndexPath = "/static/index.html"

// HandleHealth returns health status. It never touches the model.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recycling.HealthResponse{Status: "healthy"})
}

// HandleIndex redirects to the static landing page
func HandleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, IndexPath, http.StatusTemporaryRedirect)
}

// RegionsHandler handles GET /regions
type RegionsHandler struct {
	documents storage.DocumentLister
	logger    *zap.Logger
}

// NewRegionsHandler creates a handler listing available instruction documents
func NewRegionsHandler(documents storage.DocumentLister, logger *zap.Logger) *RegionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegionsHandler{documents: documents, logger: logger}
}

// HandleList returns the sorted region keys
func (h *RegionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys, err := h.documents.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list regions", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, InternalErrorDetail)
		return
	}
	writeJSON(w, http.StatusOK, recycling.RegionList{Regions: keys})
}
