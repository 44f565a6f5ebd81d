package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abczzz13/unprotect"
)

// maxBodyBytes caps request bodies accepted by the admin API.
const maxBodyBytes = 1 << 20

// Error codes.
const (
	CodeInvalidEntry = "INVALID_ENTRY"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL"
)

var errInvalidBody = errors.New("invalid request body")

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
	Line    int    `json:"line,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: APIError{Code: code, Message: message}})
}

// handleError converts service errors to HTTP errors.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *unprotect.InvalidEntryError
	switch {
	case errors.As(err, &invalid):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code:    CodeInvalidEntry,
			Message: invalid.Error(),
			Value:   invalid.Value,
			Line:    invalid.Line,
		}})
	case errors.Is(err, errInvalidBody):
		respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	default:
		s.logger.Errorw("request failed", "uri", r.RequestURI, "error", err)
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// decodeJSON decodes a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}
