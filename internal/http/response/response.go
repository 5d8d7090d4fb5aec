// Package response writes JSON error bodies for requests that never reach
// an API operation, such as unknown routes and recovered panics.
// The body has the same shape as errors returned by operations.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
)

// Body is the error document.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes status with a {code, message} body.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(Body{Code: string(code), Message: message}); err != nil {
		if logger != nil {
			logger.Error("Failed to encode error response", "error", err)
		}
	}
}

// NotFound writes a 404 for an unknown route.
func NotFound(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusNotFound, domainerrors.CodeNotFound, "resource not found", logger)
}

// MethodNotAllowed writes a 405 for a known route with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusMethodNotAllowed, domainerrors.CodeValidation, "method not allowed", logger)
}

// InternalError writes a 500 without detail.
func InternalError(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, domainerrors.CodeInternal, "internal error", logger)
}
