package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/openshop/openshop/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the shared error taxonomy onto HTTP. InsufficientStock is a
// business rejection, reported as 409 rather than a server fault.
func writeErr(w http.ResponseWriter, err error) {
	var code int
	switch apperr.KindOf(err) {
	case apperr.NotFound:
		code = http.StatusNotFound
	case apperr.InvalidArgument:
		code = http.StatusBadRequest
	case apperr.InsufficientStock, apperr.Conflict:
		code = http.StatusConflict
	case apperr.Unauthorized:
		code = http.StatusForbidden
	case apperr.Unavailable:
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// callerID identifies the requester. Authentication itself lives in front
// of this service; handlers only use the id for ownership checks.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
