package fileapi

import (
	"context"
	"errors"

	"github.com/transferd/transferd/pkg/kv"
	"github.com/transferd/transferd/pkg/records"
)

// entry normalizes a completed-file record and an in-progress upload
// record behind one shape, since most of this package's endpoints treat
// "partial" and "complete" uniformly except for AvailableSize and the
// completed-only retention/download-count bookkeeping.
type entry struct {
	upload        *records.UploadRecord
	availableSize int64
	completedAt   *records.CompletedFileRecord // nil for partial uploads
}

var errNotFound = errors.New("fileapi: not found")

// lookup resolves id against the completed-file index first (the common
// case once an upload finishes), falling back to the in-progress upload
// index.
func (a *API) lookup(ctx context.Context, id string) (*entry, error) {
	if file, err := a.config.Records.GetFile(ctx, id); err == nil {
		return &entry{
			upload:        &file.UploadRecord,
			availableSize: file.AvailableSize,
			completedAt:   file,
		}, nil
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}

	upload, err := a.config.Records.GetUpload(ctx, id)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	return &entry{upload: upload, availableSize: upload.Offset}, nil
}

// path returns the on-disk location of e's bytes: the uploads/ path
// while incomplete, the files/ path once finalized.
func (a *API) path(e *entry) string {
	if e.completedAt != nil {
		return e.upload.StoragePath
	}
	return a.config.Blobs.UploadPath(e.upload.FileID)
}
