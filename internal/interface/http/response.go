package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// Every endpoint answers with the same envelope so clients parse one shape.
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ResponseMeta carries pagination metadata for list endpoints.
type ResponseMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, JSONResponse{Success: true, Data: data})
}

func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	writeEnvelope(w, r, status, JSONResponse{Success: true, Data: data, Meta: meta})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

func writeJSONErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeEnvelope(w, r, status, JSONResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message, Details: details},
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	resp.RequestID = requestIDFrom(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors onto HTTP statuses. Unrecognized errors
// become a 500 without leaking internals to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidAccessToken):
		writeJSONError(w, r, http.StatusUnauthorized, "invalid_token", "access token is invalid or expired")
	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, r, http.StatusForbidden, "forbidden", "operation is not allowed for this account")
	case errors.Is(err, shared.ErrImageTooLarge):
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
	case errors.Is(err, shared.ErrUnsupportedImage):
		writeJSONError(w, r, http.StatusUnsupportedMediaType, "unsupported_image", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", err.Error())
	case shared.IsAlreadyExists(err):
		writeJSONError(w, r, http.StatusConflict, "conflict", err.Error())
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, shared.ErrRateLimited):
		writeJSONError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
	case errors.Is(err, shared.ErrServiceUnavailable):
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "a dependency is unavailable, try again later")
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY PARAM HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func getQueryParam(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

func getQueryParamInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getQueryParamBool(r *http.Request, name string, fallback bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
