package fileapi

import (
	"errors"
	"net/http"
)

type fileDetail struct {
	FileID             string            `json:"file_id"`
	Filename           string            `json:"filename"`
	Size               int64             `json:"size"`
	AvailableSize      int64             `json:"available_size"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
	Retention          string            `json:"retention"`
	RetentionExpiresAt string            `json:"retention_expires_at,omitempty"`
	DownloadCount      int               `json:"download_count"`
	ChunkCount         *int64            `json:"chunk_count,omitempty"`
}

func (a *API) toDetail(e *entry, withChunkCount bool) fileDetail {
	rec := e.upload
	d := fileDetail{
		FileID:        rec.FileID,
		Filename:      rec.Filename,
		Size:          rec.Size,
		AvailableSize: e.availableSize,
		Status:        rec.Status(),
		Metadata:      rec.Metadata,
		CreatedAt:     formatTime(rec.CreatedAt),
		UpdatedAt:     formatTime(rec.UpdatedAt),
		Retention:     string(rec.Retention),
		DownloadCount: rec.DownloadCount,
	}
	if rec.RetentionExpiresAt != nil {
		d.RetentionExpiresAt = formatTime(*rec.RetentionExpiresAt)
	}
	if withChunkCount {
		n := rec.ChunkCount(a.config.ChunkSize)
		d.ChunkCount = &n
	}
	return d
}

// getFile implements GET /api/files/{id}: the normalized record
// including retention fields and derived chunk counts.
func (a *API) getFile(w http.ResponseWriter, r *http.Request) {
	a.serveDetail(w, r, true)
}

// downloadInfo implements GET /api/files/{id}/info/download: the same
// record minus chunk counts, intended as a lighter call before a client
// decides how to range-request the download.
func (a *API) downloadInfo(w http.ResponseWriter, r *http.Request) {
	a.serveDetail(w, r, false)
}

func (a *API) serveDetail(w http.ResponseWriter, r *http.Request, withChunkCount bool) {
	log := a.config.Logger.With("handler", "getFile", "id", r.PathValue("id"))

	e, err := a.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, errNotFound) {
			a.writeError(w, log, http.StatusNotFound, "ERR_UPLOAD_NOT_FOUND", "file not found")
			return
		}
		a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, a.toDetail(e, withChunkCount))
}
