package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

// readBody drains the request body into memory, bounded by maxSize via
// http.MaxBytesReader (see newBodyReader). Any transport-level error
// recorded by the bodyReader (timeout, reset, oversized body) is
// returned as the sentinel Error it was translated to in body_reader.go.
func (h *Handler) readBody(c *httpContext, maxSize int64) ([]byte, error) {
	c.body = newBodyReader(c, maxSize)
	c.body.onReadDone = func() {
		if err := c.resC.SetReadDeadline(time.Now().Add(h.config.NetworkTimeout)); err != nil {
			c.log.Warn("NetworkTimeoutError", "error", err)
		}
	}

	data, _ := io.ReadAll(c.body)
	if err := c.body.hasError(); err != nil {
		return nil, err
	}
	return data, nil
}

// admitAndWriteChunk runs quota admission, writes data at rec.Offset,
// persists the advanced offset and finalizes the upload if it is now
// complete. It never mutates rec's on-disk counterpart unless the write
// itself succeeds: either the offset grows by exactly the PATCH body
// length, or the record is left unchanged.
func (h *Handler) admitAndWriteChunk(c *httpContext, rec *records.UploadRecord, data []byte) (HTTPResponse, error) {
	ok, err := h.config.Quota.CheckQuota(c, int64(len(data)))
	if err != nil {
		return HTTPResponse{}, ErrBackendTransient
	}
	if !ok {
		usage, _ := h.config.Quota.GetStorageUsage(c)
		return HTTPResponse{}, quotaExceededError(rec.Offset, usage)
	}

	n, err := h.config.Blobs.WriteChunk(c, rec.FileID, data, rec.Offset)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return HTTPResponse{}, ErrNotFound
		}
		if errors.Is(err, lock.ErrConflict) {
			// Two concurrent PATCHes on the same file_id: exactly one wins
			// the lock inside WriteChunk, per spec.md §4.E/§5; the loser
			// surfaces as a conflict, matching the §7 error-kind table
			// rather than the generic backend-transient kind (see
			// DESIGN.md's reconciliation of that discrepancy).
			return HTTPResponse{}, ErrLockConflict
		}
		return HTTPResponse{}, ErrBackendTransient
	}

	rec.Offset += n
	h.Metrics.incBytesReceived(uint64(n))

	if rec.Offset == rec.Size {
		if err := h.finalize(c, rec); err != nil {
			return HTTPResponse{}, err
		}
	} else if err := h.config.Records.UpdateUpload(c, rec); err != nil {
		return HTTPResponse{}, ErrBackendTransient
	}

	return HTTPResponse{
		Header: HTTPHeader{
			"Upload-Offset":  strconv.FormatInt(rec.Offset, 10),
			"Upload-Expires": rec.ExpiresAt.UTC().Format(http.TimeFormat),
		},
	}, nil
}

// writeChunkAndRespond is the POST (creation-with-upload) entry point:
// it reads the request body bounded by the upload's remaining size, then
// delegates to admitAndWriteChunk, merging the resulting headers onto
// resp.
func (h *Handler) writeChunkAndRespond(c *httpContext, resp HTTPResponse, rec *records.UploadRecord) (HTTPResponse, error) {
	data, err := h.readBody(c, rec.Size-rec.Offset)
	if err != nil {
		return resp, err
	}

	chunkResp, err := h.admitAndWriteChunk(c, rec, data)
	if err != nil {
		return resp, err
	}
	return resp.MergeWith(chunkResp), nil
}

// finalize moves the upload's bytes into the files/ directory, writes
// the completed-file record and marks the upload record final.
func (h *Handler) finalize(c *httpContext, rec *records.UploadRecord) error {
	if err := h.finalizeRecord(c, rec); err != nil {
		return err
	}
	c.log.Info("UploadFinished", "size", rec.Size)
	return nil
}

// finalizeRecord is the context-only core of finalize, reused by
// ReconcileOrphans at startup, where there is no request-scoped
// httpContext to log against.
func (h *Handler) finalizeRecord(ctx context.Context, rec *records.UploadRecord) error {
	completedAt := time.Now()

	path, err := h.config.Blobs.FinalizeUpload(rec.FileID, rec.Filename)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return ErrNotFound
		}
		return ErrBackendTransient
	}

	rec.IsFinal = true
	rec.StoragePath = path

	if rec.Retention == records.RetentionTTL {
		exp := blobstore.RetentionExpiry(completedAt, time.Duration(rec.RetentionTTL)*time.Second)
		rec.RetentionExpiresAt = &exp
	}

	completedRec := &records.CompletedFileRecord{
		UploadRecord:  *rec,
		AvailableSize: rec.Size,
		CompletedAt:   completedAt,
	}
	if err := h.config.Records.CreateFile(ctx, completedRec); err != nil {
		return ErrBackendTransient
	}
	if err := h.config.Records.UpdateUpload(ctx, rec); err != nil {
		return ErrBackendTransient
	}

	h.Metrics.incUploadsFinished()
	return nil
}

// quotaExceededError builds the 507 response: Retry-After, the
// unchanged Upload-Offset, and the X-Storage-* snapshot headers, as an
// Error value so sendError can dispatch it uniformly.
func quotaExceededError(currentOffset int64, usage quota.Usage) Error {
	maxBytes := "unlimited"
	if usage.Max != nil {
		maxBytes = strconv.FormatInt(*usage.Max, 10)
	}

	base := ErrQuotaExceeded
	header := make(HTTPHeader, len(base.HTTPResponse.Header)+4)
	for k, v := range base.HTTPResponse.Header {
		header[k] = v
	}
	header["Retry-After"] = "10"
	header["Upload-Offset"] = strconv.FormatInt(currentOffset, 10)
	header["X-Storage-Used"] = strconv.FormatInt(usage.Used, 10)
	header["X-Storage-Max"] = maxBytes
	base.HTTPResponse.Header = header
	return base
}
