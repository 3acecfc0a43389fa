package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/aliasguard/internal/pkg/logger"
)

// MessageResponse is the Laravel-style error envelope addy.io uses.
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON writes a JSON response with the given status code. Encoding errors
// are logged; the status line has already been sent by then.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Message writes a {"message": ...} error response.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Message: message})
}

// Unauthorized writes a 401 with the message addy.io returns for a bad token.
func Unauthorized(w http.ResponseWriter) {
	Message(w, http.StatusUnauthorized, "Unauthenticated.")
}
