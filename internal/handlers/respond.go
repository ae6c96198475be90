package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/repositories"
)

// APIError is the single structured failure value crossing the HTTP boundary.
type APIError struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, message string, details ...string) *APIError {
	if details == nil {
		details = []string{}
	}
	return &APIError{StatusCode: status, Message: message, Success: false, Errors: details}
}

// BadRequest builds a 400 error.
func BadRequest(message string, details ...string) *APIError {
	return newAPIError(http.StatusBadRequest, message, details...)
}

// Unauthorized builds a 401 error.
func Unauthorized(message string) *APIError {
	return newAPIError(http.StatusUnauthorized, message)
}

// Forbidden builds a 403 error.
func Forbidden(message string) *APIError {
	return newAPIError(http.StatusForbidden, message)
}

// TooManyRequests builds a 429 error.
func TooManyRequests(message string) *APIError {
	return newAPIError(http.StatusTooManyRequests, message)
}

// NotFound builds a 404 error.
func NotFound(message string) *APIError {
	return newAPIError(http.StatusNotFound, message)
}

// Internal builds a 500 error.
func Internal(message string) *APIError {
	return newAPIError(http.StatusInternalServerError, message)
}

type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// respondData writes the success envelope.
func respondData(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// respondError maps an error onto the failure envelope. Known sentinel
// errors from the auth and repository layers get their natural status; an
// *APIError passes through verbatim; anything else becomes a 500.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenMismatch):
		apiErr = Unauthorized(err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		apiErr = NotFound("requested record not found")
	case errors.Is(err, repositories.ErrConflict):
		apiErr = BadRequest("a record with those unique fields already exists")
	default:
		logging.FromContext(ctx).Error("unhandled error reached response boundary", "error", err)
		apiErr = Internal("something went wrong")
	}

	writeJSON(ctx, w, apiErr.StatusCode, apiErr)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status)
	}
}
