package fileapi

import (
	"errors"
	"net/http"
)

// deleteFile implements DELETE /api/files/{id}: removes either a
// completed file or an in-progress upload, whichever exists.
func (a *API) deleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := a.config.Logger.With("handler", "deleteFile", "id", id)
	ctx := r.Context()

	e, err := a.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			a.writeError(w, log, http.StatusNotFound, "ERR_UPLOAD_NOT_FOUND", "file not found")
			return
		}
		a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
		return
	}

	if e.completedAt != nil {
		if err := a.config.Blobs.DeleteFile(id); err != nil {
			a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
			return
		}
		if _, err := a.config.Records.DeleteFile(ctx, id); err != nil {
			a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
			return
		}
	} else {
		if err := a.config.Blobs.DeleteUpload(ctx, id); err != nil {
			a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
			return
		}
		if _, err := a.config.Records.DeleteUpload(ctx, id); err != nil {
			a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// cleanupNow implements POST /api/files/cleanup: a synchronous
// invocation of the cleanup sweep, intended for testing per spec.md
// §4.I.
func (a *API) cleanupNow(w http.ResponseWriter, r *http.Request) {
	log := a.config.Logger.With("handler", "cleanupNow")

	if a.config.Cleanup == nil {
		a.writeJSON(w, http.StatusOK, map[string]int{"cleaned": 0})
		return
	}

	n, err := a.config.Cleanup.Sweep(r.Context())
	if err != nil {
		a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]int{"cleaned": n})
}
