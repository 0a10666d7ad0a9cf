package handler

import (
	"net/http"
	"strconv"
)

// Head returns an upload's current offset/length, or 410 (deleting the
// upload) if it has expired, or 404 if unknown.
func (h *Handler) Head(w http.ResponseWriter, r *http.Request) {
	c := h.getContext(w, r)

	id, err := extractID(r)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.log = c.log.With("id", id)

	// HEAD does not take the per-upload lock: intermediate states may be
	// observed by HEAD calls between PATCHes, since HEAD is a lock-free
	// read rather than a mutually-exclusive operation like PATCH/DELETE.
	rec, err := h.loadUpload(c, id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	header := HTTPHeader{
		"Cache-Control":  "no-store",
		"Upload-Offset":  strconv.FormatInt(rec.Offset, 10),
		"Upload-Length":  strconv.FormatInt(rec.Size, 10),
		"Upload-Expires": rec.ExpiresAt.UTC().Format(http.TimeFormat),
	}
	if len(rec.Metadata) > 0 {
		header["Upload-Metadata"] = SerializeMetadataHeader(rec.Metadata)
	}

	h.sendResp(c, HTTPResponse{StatusCode: http.StatusOK, Header: header})
}
