package rest

import "net/http"

// HealthCheck reports process liveness only; it does not depend on the
// repository backend being reachable; a separate readiness signal is not
// part of the external surface.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
