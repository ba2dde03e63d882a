package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"modelgate/internal/manager"
	"modelgate/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps a service error to an HTTP status: the error's own
// StatusCode when it has one, 500 otherwise.
func statusFor(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// rejectReason labels 503s for the backpressure counter.
func rejectReason(err error) string {
	switch {
	case manager.IsDraining(err):
		return "draining"
	case manager.IsNotReady(err):
		return "not_ready"
	default:
		return ""
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
