package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"modelgate/pkg/types"
)

// httpError is implemented by errors that know their HTTP status.
type httpError interface {
	error
	StatusCode() int
}

func statusFor(err error) int {
	var he httpError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusBadGateway
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
