package httpx

import (
	"net/http"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
)

// healthHandler reports liveness plus the portal's operating mode, so a probe
// against a multi-deployment district can tell which portal answered.
func healthHandler(mode domainauth.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"mode":   string(mode),
		})
	}
}
