// errors.go — {error: string} response mapping for every control-plane
// failure, per spec §6: 400 validation, 404 missing, 409 conflict, 500
// internal.
package controlplane

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/dev-console/proxyd/internal/ruleerr"
	"github.com/dev-console/proxyd/internal/rulestore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rulestore.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, rulestore.ErrNotFound):
		status = http.StatusNotFound
	default:
		switch ruleerr.KindOf(err) {
		case ruleerr.ValidationFailed, ruleerr.InvalidPattern, ruleerr.BodyTooLarge:
			status = http.StatusBadRequest
		case ruleerr.NotFound:
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
