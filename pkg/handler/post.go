package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/transferd/transferd/pkg/records"
)

// Post implements the TUS creation (+ creation-with-upload) extension.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	c := h.getContext(w, r)

	lengthHeader := r.Header.Get("Upload-Length")
	size, err := strconv.ParseInt(lengthHeader, 10, 64)
	if err != nil || size < 0 {
		h.sendError(c, ErrInvalidUploadLength)
		return
	}

	if h.config.MaxUploadSize > 0 && size > h.config.MaxUploadSize {
		h.sendError(c, ErrMaxSizeExceeded)
		return
	}

	meta := ParseMetadataHeader(r.Header.Get("Upload-Metadata"))
	filename, ok := meta["filename"]
	if !ok || filename == "" {
		h.sendError(c, ErrInvalidMetadata)
		return
	}

	now := time.Now()
	id := newFileID()

	rec := &records.UploadRecord{
		FileID:      id,
		Filename:    filename,
		Size:        size,
		Offset:      0,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(h.config.UploadExpiration),
		IsFinal:     false,
		StoragePath: h.config.Blobs.UploadPath(id),
		MimeType:    meta["filetype"],
		Retention:   h.resolveRetention(r, meta),
	}
	if rec.Retention == records.RetentionTTL {
		rec.RetentionTTL = h.resolveRetentionTTL(meta)
	}
	if ownerID := r.Header.Get("X-Owner-ID"); ownerID != "" {
		rec.OwnerID = &ownerID
	}

	if err := h.config.Blobs.CreateUpload(id); err != nil {
		c.log.Error("CreateUploadBlobError", "error", err)
		h.sendError(c, ErrBackendTransient)
		return
	}

	if err := h.config.Records.CreateUpload(c, rec); err != nil {
		c.log.Error("CreateUploadRecordError", "error", err)
		h.sendError(c, ErrBackendTransient)
		return
	}

	c.log = c.log.With("id", id)
	c.log.Info("UploadCreated", "size", size, "filename", filename)
	h.Metrics.incUploadsCreated()

	resp := HTTPResponse{
		StatusCode: http.StatusCreated,
		Header: HTTPHeader{
			"Location":      h.absFileURL(r, id),
			"Upload-Offset": "0",
			"Upload-Expires": rec.ExpiresAt.UTC().Format(http.TimeFormat),
		},
	}

	// creation-with-upload: a non-empty body sent with Content-Type
	// application/offset+octet-stream is written as the first chunk at
	// offset 0.
	if r.Header.Get("Content-Type") == "application/offset+octet-stream" && r.ContentLength != 0 {
		resp, err = h.writeChunkAndRespond(c, resp, rec)
		if err != nil {
			h.sendError(c, err)
			return
		}
	}

	h.sendResp(c, resp)
}

// resolveRetention picks the retention policy by priority: (1) client
// metadata, (2) per-token policy table, (3) server default, falling back
// to permanent on an unrecognized value.
func (h *Handler) resolveRetention(r *http.Request, meta map[string]string) records.Retention {
	if v, ok := meta["retention"]; ok {
		if p := records.Retention(v); isKnownRetention(p) {
			return p
		}
		return records.RetentionPermanent
	}

	if token := r.Header.Get("X-Upload-Token"); token != "" {
		if p, ok := h.config.TokenRetentionPolicies[token]; ok {
			return p
		}
	}

	return h.config.DefaultRetention
}

func isKnownRetention(p records.Retention) bool {
	switch p {
	case records.RetentionPermanent, records.RetentionDownloadOnce, records.RetentionTTL:
		return true
	default:
		return false
	}
}

// resolveRetentionTTL picks retention_ttl from client metadata if
// present and valid, else the server's configured default.
func (h *Handler) resolveRetentionTTL(meta map[string]string) int64 {
	if v, ok := meta["retention_ttl"]; ok {
		if seconds, err := strconv.ParseInt(v, 10, 64); err == nil && seconds > 0 {
			return seconds
		}
	}
	return int64(h.config.DefaultRetentionTTL.Seconds())
}
