// Package shared holds the JSON helpers every HTTP handler uses.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "coopmarket/pkg/domain-errors"
)

// WriteJSON renders v with the given status. Encoding failures are ignored:
// the header is already written and there is nothing useful left to do.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a coded error as the JSON failure body used across the
// API: {"message": ...}. Unexpected errors collapse to a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"message": dErrors.MessageOf(err),
	})
}

// DecodeJSON decodes the request body into dst, mapping malformed payloads to
// a bad-request error.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
