package fileapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/transferd/transferd/pkg/records"
)

type listedFile struct {
	FileID    string `json:"file_id"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Status    string `json:"status"`
	Retention string `json:"retention"`
	UpdatedAt string `json:"updated_at"`
}

type listFilesResponse struct {
	Files      []listedFile `json:"files"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalCount int          `json:"total_count"`
}

// listFiles implements GET /api/files?page&page_size&include_partial: a
// 1-indexed, merged view of completed files and (optionally) in-progress
// uploads, sorted by updated_at descending.
func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	log := a.config.Logger.With("handler", "listFiles")
	ctx := r.Context()

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", a.config.DefaultPageSize)
	if pageSize < 1 {
		pageSize = a.config.DefaultPageSize
	}
	if pageSize > a.config.MaxPageSize {
		pageSize = a.config.MaxPageSize
	}
	includePartial := r.URL.Query().Get("include_partial") == "true"

	files, err := a.config.Records.ListFiles(ctx)
	if err != nil {
		a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
		return
	}

	merged := make([]*records.UploadRecord, 0, len(files))
	for _, f := range files {
		rec := f.UploadRecord
		merged = append(merged, &rec)
	}

	if includePartial {
		uploads, err := a.config.Records.ListUploads(ctx, false, true)
		if err != nil {
			a.writeError(w, log, http.StatusServiceUnavailable, "ERR_BACKEND_TRANSIENT", err.Error())
			return
		}
		merged = append(merged, uploads...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})

	total := len(merged)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pageItems := merged[start:end]
	out := make([]listedFile, 0, len(pageItems))
	for _, rec := range pageItems {
		out = append(out, listedFile{
			FileID:    rec.FileID,
			Filename:  rec.Filename,
			Size:      rec.Size,
			Status:    rec.Status(),
			Retention: string(rec.Retention),
			UpdatedAt: formatTime(rec.UpdatedAt),
		})
	}

	a.writeJSON(w, http.StatusOK, listFilesResponse{
		Files:      out,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
