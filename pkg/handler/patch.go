package handler

import (
	"net/http"
	"strconv"
)

// Patch implements the resumable PATCH operation.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	c := h.getContext(w, r)

	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		h.sendError(c, ErrInvalidContentType)
		return
	}

	offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil || offset < 0 {
		h.sendError(c, ErrInvalidOffset)
		return
	}

	id, err := extractID(r)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	// No handler-level lock here: blobstore.WriteChunk acquires the
	// per-upload lock itself (spec.md §4.E), and it is the only write
	// path below. Pre-locking here too would contend with that same key
	// and never succeed.
	rec, err := h.loadUpload(c, id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	if rec.IsFinal {
		h.sendError(c, ErrNotFound)
		return
	}
	if offset != rec.Offset {
		h.sendError(c, ErrMismatchOffset)
		return
	}

	// ContentLength == -1 for a chunked request body is treated the same
	// as an empty one: every PATCH this server expects declares an
	// explicit Content-Length, so a chunked body is rejected rather than
	// read to EOF.
	if r.ContentLength <= 0 {
		h.sendError(c, ErrEmptyBody)
		return
	}
	if offset+r.ContentLength > rec.Size {
		h.sendError(c, ErrSizeExceeded)
		return
	}

	data, err := h.readBody(c, r.ContentLength)
	if err != nil {
		h.sendError(c, err)
		return
	}
	if len(data) == 0 {
		h.sendError(c, ErrEmptyBody)
		return
	}

	if algo, expectedHex, ok := parseChecksumHeader(r.Header.Get("Upload-Checksum")); ok {
		if err := verifyChecksum(algo, expectedHex, data); err != nil {
			h.sendError(c, err)
			return
		}
	}

	c.log.Info("ChunkWriteStart", "offset", offset, "length", len(data))

	resp, err := h.admitAndWriteChunk(c, rec, data)
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.log.Info("ChunkWriteComplete", "newOffset", rec.Offset)

	resp.StatusCode = http.StatusNoContent
	h.sendResp(c, resp)
}
