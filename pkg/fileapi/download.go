package fileapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/transferd/transferd/pkg/records"
)

// byteRange is an inclusive [start, end] span, both indices valid
// offsets into a file of the given available size.
type byteRange struct {
	start, end int64
}

var errRangeNotSatisfiable = errors.New("fileapi: range not satisfiable")

// parseRange interprets a Range header of the form "bytes=<start>-<end?>"
// against available bytes. An absent header returns the full range. Per
// spec.md §9's "range policy for partials" open question, callers must
// independently force a 206 status for partial files even when no Range
// header was sent; parseRange only decides the byte span.
func parseRange(header string, available int64) (byteRange, bool, error) {
	if header == "" {
		return byteRange{0, available - 1}, false, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, false, errRangeNotSatisfiable
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return byteRange{}, false, errRangeNotSatisfiable
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return byteRange{}, false, errRangeNotSatisfiable
	}

	end := available - 1
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return byteRange{}, false, errRangeNotSatisfiable
		}
	}

	if start >= available || start > end {
		return byteRange{}, false, errRangeNotSatisfiable
	}
	if end > available-1 {
		end = available - 1
	}

	return byteRange{start, end}, true, nil
}

// download implements GET /api/files/{id}/download: a range-capable byte
// stream with retention-triggered post-download side effects.
func (a *API) download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	log := a.config.Logger.With("handler", "download", "id", id)
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

	available := e.availableSize
	rng, hadRangeHeader, err := parseRange(r.Header.Get("Range"), available)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", available))
		a.writeError(w, log, http.StatusRequestedRangeNotSatisfiable, "ERR_RANGE_NOT_SATISFIABLE", "invalid or out-of-bounds Range header")
		return
	}

	rec := e.upload
	full := rng.start == 0 && rng.end == available-1
	// A partial file (upload still in progress) always answers 206, even
	// without a client Range header, per spec.md §9's "range policy for
	// partials" decision to preserve that behavior.
	partial := e.completedAt == nil
	status := http.StatusOK
	if hadRangeHeader || partial {
		status = http.StatusPartialContent
	}

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Length", strconv.FormatInt(rng.end-rng.start+1, 10))
	header.Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	if status == http.StatusPartialContent {
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, available))
	}
	header.Set("X-Retention-Policy", string(rec.Retention))
	if rec.RetentionExpiresAt != nil {
		header.Set("X-Retention-Expires", formatTime(*rec.RetentionExpiresAt))
	}
	if full && !partial && rec.Retention == records.RetentionDownloadOnce {
		header.Set("X-Retention-Warning", "this file will be deleted after this download completes")
	}

	w.WriteHeader(status)

	path := a.path(e)
	offset := rng.start
	remaining := rng.end - rng.start + 1
	for remaining > 0 {
		want := a.config.ChunkSize
		if want > remaining {
			want = remaining
		}
		data, err := a.config.Blobs.ReadChunk(ctx, path, offset, want)
		if err != nil {
			log.Warn("DownloadReadError", "error", err)
			return
		}
		if len(data) == 0 {
			break
		}
		if _, err := w.Write(data); err != nil {
			log.Warn("DownloadWriteError", "error", err)
			return
		}
		offset += int64(len(data))
		remaining -= int64(len(data))
	}

	if full && !partial {
		a.afterFullDownload(ctx, log, rec)
	}
}

// afterFullDownload runs the post-download bookkeeping spec.md §4.I
// requires once the response body has been fully flushed: the download
// count is incremented, and, for download_once retention, the file is
// deleted. Run inline rather than on a goroutine dispatched before the
// write loop returns, since by this point in download the body has
// already been written to the ResponseWriter in full.
func (a *API) afterFullDownload(ctx context.Context, log *slog.Logger, rec *records.UploadRecord) {
	rec.DownloadCount++
	file, err := a.config.Records.GetFile(ctx, rec.FileID)
	if err == nil {
		file.DownloadCount = rec.DownloadCount
		if err := a.config.Records.UpdateFile(ctx, file); err != nil {
			log.Warn("DownloadCountUpdateError", "error", err)
		}
	}

	if rec.Retention != records.RetentionDownloadOnce {
		return
	}

	if err := a.config.Blobs.DeleteFile(rec.FileID); err != nil {
		log.Warn("DownloadOnceDeleteBlobError", "error", err)
	}
	if _, err := a.config.Records.DeleteFile(ctx, rec.FileID); err != nil {
		log.Warn("DownloadOnceDeleteRecordError", "error", err)
	}
	log.Info("DownloadOnceFileDeleted")
}
