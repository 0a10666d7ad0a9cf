package records

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/transferd/transferd/pkg/kv"
)

// UploadTTL is the backend TTL renewed on every write to an upload
// record, stored under the key prefix "upload:<file_id>". It is distinct
// from the record's own ExpiresAt field, which is the domain-level
// deadline the TUS handler enforces against HEAD/PATCH.
const UploadTTL = 7 * 24 * time.Hour

const (
	uploadPrefix = "upload:"
	filePrefix   = "file:"
)

// ErrNotFound is returned by every lookup that misses.
var ErrNotFound = kv.ErrNotFound

// Store serializes UploadRecord and CompletedFileRecord values as JSON
// over a kv.Backend.
type Store struct {
	backend kv.Backend
}

// New creates a Store over backend.
func New(backend kv.Backend) *Store {
	return &Store{backend: backend}
}

func uploadKey(id string) string { return uploadPrefix + id }
func fileKey(id string) string   { return filePrefix + id }

// CreateUpload persists a brand-new upload record.
func (s *Store) CreateUpload(ctx context.Context, rec *UploadRecord) error {
	return s.putUpload(ctx, rec)
}

// GetUpload returns the upload record for id, or ErrNotFound.
func (s *Store) GetUpload(ctx context.Context, id string) (*UploadRecord, error) {
	raw, err := s.backend.Get(ctx, uploadKey(id))
	if err != nil {
		return nil, err
	}
	var rec UploadRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Join(errInvariant, err)
	}
	return &rec, nil
}

// UpdateUpload stamps UpdatedAt and persists rec, renewing the backend TTL.
func (s *Store) UpdateUpload(ctx context.Context, rec *UploadRecord) error {
	rec.UpdatedAt = time.Now()
	return s.putUpload(ctx, rec)
}

func (s *Store) putUpload(ctx context.Context, rec *UploadRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(errInvariant, err)
	}
	_, err = s.backend.Set(ctx, uploadKey(rec.FileID), raw, kv.SetOptions{TTL: UploadTTL})
	return err
}

// DeleteUpload removes the upload record for id.
func (s *Store) DeleteUpload(ctx context.Context, id string) (bool, error) {
	return s.backend.Delete(ctx, uploadKey(id))
}

// CreateFile writes the completed-file record, which has no TTL: it lives
// until explicitly deleted (by DELETE, download-once, or a TTL sweep).
func (s *Store) CreateFile(ctx context.Context, rec *CompletedFileRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(errInvariant, err)
	}
	_, err = s.backend.Set(ctx, fileKey(rec.FileID), raw, kv.SetOptions{})
	return err
}

// GetFile returns the completed-file record for id, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id string) (*CompletedFileRecord, error) {
	raw, err := s.backend.Get(ctx, fileKey(id))
	if err != nil {
		return nil, err
	}
	var rec CompletedFileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Join(errInvariant, err)
	}
	return &rec, nil
}

// UpdateFile persists an already-existing completed-file record, e.g. to
// bump DownloadCount.
func (s *Store) UpdateFile(ctx context.Context, rec *CompletedFileRecord) error {
	return s.CreateFile(ctx, rec)
}

// DeleteFile removes the completed-file record for id.
func (s *Store) DeleteFile(ctx context.Context, id string) (bool, error) {
	return s.backend.Delete(ctx, fileKey(id))
}

// ListUploads returns upload records, filtered by completion state.
// includeCompleted also returns uploads whose IsFinal is true (normally
// superseded by their CompletedFileRecord); includePartial returns those
// still in progress. Results are sorted by UpdatedAt descending.
func (s *Store) ListUploads(ctx context.Context, includeCompleted, includePartial bool) ([]*UploadRecord, error) {
	keys, err := s.backend.ScanKeys(ctx, uploadPrefix)
	if err != nil {
		return nil, err
	}

	records := make([]*UploadRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue // deleted between scan and read
			}
			return nil, err
		}
		var rec UploadRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Join(errInvariant, err)
		}
		if rec.IsFinal && !includeCompleted {
			continue
		}
		if !rec.IsFinal && !includePartial {
			continue
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// ListFiles enumerates completed-file records only, sorted by UpdatedAt
// descending.
func (s *Store) ListFiles(ctx context.Context) ([]*CompletedFileRecord, error) {
	keys, err := s.backend.ScanKeys(ctx, filePrefix)
	if err != nil {
		return nil, err
	}

	records := make([]*CompletedFileRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := s.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var rec CompletedFileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Join(errInvariant, err)
		}
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// ReconcileOrphans finds upload records whose Offset has reached Size but
// whose IsFinal is still false, and invokes finalize for each. It returns
// the ids for which finalize succeeded. A candidate whose finalize fails
// is left out of that slice rather than aborting the whole scan, since
// one corrupt upload should not block recovery of the others.
func (s *Store) ReconcileOrphans(ctx context.Context, finalize func(ctx context.Context, rec *UploadRecord) error) ([]string, error) {
	uploads, err := s.ListUploads(ctx, false, true)
	if err != nil {
		return nil, err
	}

	var reconciled []string
	for _, rec := range uploads {
		if rec.Offset != rec.Size {
			continue
		}
		if err := finalize(ctx, rec); err != nil {
			continue
		}
		reconciled = append(reconciled, rec.FileID)
	}
	return reconciled, nil
}

var errInvariant = errors.New("records: corrupt record")
