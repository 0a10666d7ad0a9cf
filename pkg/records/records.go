// Package records implements the upload state store: serialization and
// indexing of upload and completed-file records over a kv.Backend, each
// record JSON-encoded with stable field names.
package records

import "time"

// Retention is one of the three reclamation policies a record can carry.
type Retention string

const (
	RetentionPermanent    Retention = "permanent"
	RetentionDownloadOnce Retention = "download_once"
	RetentionTTL          Retention = "ttl"
)

// UploadRecord is the authoritative state of an in-progress (or, after
// finalization, just-finished) transfer, keyed by FileID.
type UploadRecord struct {
	FileID      string            `json:"file_id"`
	Filename    string            `json:"filename"`
	Size        int64             `json:"size"`
	Offset      int64             `json:"offset"`
	Metadata    map[string]string `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	IsFinal     bool              `json:"is_final"`
	StoragePath string            `json:"storage_path"`
	MimeType    string            `json:"mime_type,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`

	Retention          Retention  `json:"retention"`
	RetentionTTL       int64      `json:"retention_ttl,omitempty"`
	RetentionExpiresAt *time.Time `json:"retention_expires_at,omitempty"`

	DownloadCount int     `json:"download_count"`
	OwnerID       *string `json:"owner_id,omitempty"`
}

// CompletedFileRecord is the post-finalization snapshot, indexed
// separately under a "file:" prefix so listings never have to scan
// in-progress uploads to find finished ones.
type CompletedFileRecord struct {
	UploadRecord

	AvailableSize int64     `json:"available_size"`
	CompletedAt   time.Time `json:"completed_at"`
}

// ChunkCount returns the number of chunk_size-sized chunks needed to cover
// Size, per spec.md's "(size + chunk_size - 1) / chunk_size".
func (u UploadRecord) ChunkCount(chunkSize int64) int64 {
	if chunkSize <= 0 {
		return 0
	}
	return (u.Size + chunkSize - 1) / chunkSize
}

// Status reports a coarse lifecycle label used by the file listing API.
func (u UploadRecord) Status() string {
	if u.IsFinal {
		return "complete"
	}
	return "partial"
}
