package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "validation_error", "message": "Search query is required"}
//
// "error" is a stable machine-readable code, "message" is for people.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/food-diary/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

type errorMapping struct {
	sentinel error
	status   int
	code     string
}

// errorMappings is checked in order; the first sentinel the error matches wins.
var errorMappings = []errorMapping{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrDuplicateEmail, http.StatusBadRequest, "duplicate_email"},
	{apperror.ErrInvalidToken, http.StatusBadRequest, "invalid_or_expired_token"},
	{apperror.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrNotVerified, http.StatusForbidden, "not_verified"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrUpstream, http.StatusBadGateway, "upstream_unavailable"},
	{apperror.ErrStorage, http.StatusInternalServerError, "storage_error"},
}

// statusFor maps an error to its HTTP status and code. Unknown errors are
// 500 internal_error.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer returns apperror values and never knows about HTTP;
// this is the one place they become status codes.
//
// 5xx causes are logged with the full chain but the client only ever sees
// the AppError message, never driver or network error text.
func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, code := statusFor(err)

	resp := ErrorResponse{Error: code, Message: "An internal error occurred"}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}
	if status == http.StatusInternalServerError {
		resp.Message = "An internal error occurred"
	}

	if status >= 500 {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body into dst. Malformed or ill-typed bodies are
// validation errors.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Request body must be valid JSON")
	}
	return nil
}
