package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/capitalize-ai/campuschat/internal/service"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// serviceStatus maps service errors to HTTP status codes.
func serviceStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, service.ErrConversationClosed):
		return http.StatusConflict, "conversation is closed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// intQuery parses a positive integer query parameter, falling back to def.
func intQuery(r *http.Request, key string, def, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
