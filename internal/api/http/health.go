package http

import "net/http"

// HealthCheck reports 503 until ready returns true.
func HealthCheck(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting", "service": "familytree-backend"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "familytree-backend"})
	}
}
