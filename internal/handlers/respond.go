package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tendant/ecosort-api/pkg/recycling"
)

// InternalErrorDetail is the only message returned for server-side failures
const InternalErrorDetail = "Internal server error"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, recycling.ErrorResponse{Detail: detail})
}

// writeError maps err onto the error taxonomy: client errors are 400 with
// their own message, everything else is a generic 500.
func writeError(w http.ResponseWriter, err error) {
	if recycling.IsClientError(err) {
		writeDetail(w, http.StatusBadRequest, recycling.DetailOf(err, err.Error()))
		return
	}
	writeDetail(w, http.StatusInternalServerError, InternalErrorDetail)
}
