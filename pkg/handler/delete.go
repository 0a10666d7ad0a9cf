package handler

import (
	"errors"
	"net/http"

	"github.com/transferd/transferd/pkg/kv"
)

// Delete implements the termination extension: spec.md §4.H DELETE.
// Idempotent beyond the first call: a second DELETE simply 404s, since
// the record and bytes are already gone.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	c := h.getContext(w, r)

	id, err := extractID(r)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	l, err := h.lockUpload(c, id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	defer l.Unlock(c)

	if _, err := h.config.Records.GetUpload(c, id); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			h.sendError(c, ErrNotFound)
			return
		}
		h.sendError(c, ErrBackendTransient)
		return
	}

	if err := h.config.Blobs.DeleteUpload(c, id); err != nil {
		h.sendError(c, ErrBackendTransient)
		return
	}
	if _, err := h.config.Records.DeleteUpload(c, id); err != nil {
		h.sendError(c, ErrBackendTransient)
		return
	}

	c.log.Info("UploadTerminated")
	h.Metrics.incUploadsTerminated()

	h.sendResp(c, HTTPResponse{StatusCode: http.StatusNoContent})
}
