package fileapi

import "net/http"

// storageStatus implements GET /api/storage: the quota accountant
// snapshot verbatim.
func (a *API) storageStatus(w http.ResponseWriter, r *http.Request) {
	log := a.config.Logger.With("handler", "storageStatus")

	usage, err := a.config.Quota.GetStorageUsage(r.Context())
	if err != nil {
		a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, usage)
}

// health implements GET /api/health: the core's only liveness guarantee,
// independent of any traffic/endpoint introspection that sits outside
// its scope.
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
