// Package quota implements the storage quota accountant (spec component
// G): an advisory, filesystem-walk-based answer to "can N more bytes be
// written?" with no persisted counters of its own.
package quota

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is a snapshot of storage consumption at the moment it was taken.
type Usage struct {
	Used         int64   `json:"used"`
	Max          *int64  `json:"max"`
	Available    int64   `json:"available"`
	UsagePercent float64 `json:"usage_percent"`
	IsFull       bool    `json:"is_full"`
	FilesCount   int     `json:"files_count"`
	UploadsCount int     `json:"uploads_count"`
}

// Accountant answers quota questions by walking the uploads and files
// directories and summing file sizes on every call; it persists nothing.
type Accountant struct {
	uploadsDir string
	filesDir   string
	max        *int64
}

// New creates an Accountant over the given directories. max is the
// storage cap in bytes; a nil max means unlimited quota.
func New(uploadsDir, filesDir string, max *int64) *Accountant {
	return &Accountant{uploadsDir: uploadsDir, filesDir: filesDir, max: max}
}

// GetStorageUsage walks uploads/ and files/, summing file sizes and
// counting entries in each.
func (a *Accountant) GetStorageUsage(ctx context.Context) (Usage, error) {
	var used int64
	var uploadsCount, filesCount int

	if err := walkSum(a.uploadsDir, &used, &uploadsCount); err != nil {
		return Usage{}, err
	}
	if err := walkSum(a.filesDir, &used, &filesCount); err != nil {
		return Usage{}, err
	}

	usage := Usage{
		Used:         used,
		Max:          a.max,
		FilesCount:   filesCount,
		UploadsCount: uploadsCount,
	}

	if a.max == nil {
		usage.Available = -1
		usage.IsFull = false
		usage.UsagePercent = 0
		return usage, nil
	}

	usage.Available = *a.max - used
	if usage.Available < 0 {
		usage.Available = 0
	}
	usage.IsFull = used >= *a.max
	if *a.max > 0 {
		usage.UsagePercent = float64(used) / float64(*a.max) * 100
	}
	return usage, nil
}

// CheckQuota reports whether additional more bytes may be admitted. A nil
// max means unlimited quota, so it always returns true.
func (a *Accountant) CheckQuota(ctx context.Context, additional int64) (bool, error) {
	if a.max == nil {
		return true, nil
	}
	usage, err := a.GetStorageUsage(ctx)
	if err != nil {
		return false, err
	}
	return usage.Used+additional <= *a.max, nil
}

func walkSum(dir string, total *int64, count *int) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		*total += info.Size()
		*count++
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
