package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helixir/pubmed-search-service/internal/domain"
)

// toolResponse is the envelope every tool endpoint returns. Exactly one of
// Data and Error is non-null.
type toolResponse struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// abstractData is the payload for the abstract tool.
type abstractData struct {
	PMID     int64  `json:"pmid"`
	Abstract string `json:"abstract"`
}

// openAccessData is the payload for the open-access probe.
type openAccessData struct {
	PMID       int64 `json:"pmid"`
	OpenAccess bool  `json:"openAccess"`
}

// fullTextData is the payload for the full-text tool.
type fullTextData struct {
	PMID     int64  `json:"pmid"`
	FullText string `json:"fullText"`
}

// batchSearchData is the payload for the batch search tool.
type batchSearchData struct {
	Results []domain.BatchSearchItem `json:"results"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeToolData writes a successful envelope.
func writeToolData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, toolResponse{Success: true, Data: data})
}

// writeToolError maps an upstream or validation failure to an HTTP status and
// writes a failure envelope. Message contents are client-safe by construction:
// upstream errors carry endpoint names and status codes, never credentials.
func writeToolError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, toolResponse{Success: false, Error: &message})
}

// statusForError maps the client error taxonomy to HTTP status codes.
func statusForError(err error) int {
	var apiErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, domain.ErrMissingData):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOpenAccess):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransient):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
