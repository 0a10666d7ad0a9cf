// Package fileapi implements the file/download handler and public info
// surface (spec components I and K): listing, metadata, range-capable
// download with retention-triggered deletion, removal, a synchronous
// cleanup trigger, and the storage/health endpoints. It sits beside
// pkg/handler rather than inside it, since it is addressed under a
// separate /api/ prefix and answers JSON rather than the TUS wire
// protocol, but it shares the same records/blobstore/quota
// collaborators and the same Config-plus-validate, slog-logged,
// ServeMux-routed shape pkg/handler establishes.
package fileapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

// Sweeper is the subset of pkg/cleanup's Scheduler that the synchronous
// POST /api/files/cleanup endpoint needs. Declared here, rather than
// depending on the concrete type, so fileapi does not have to import
// pkg/cleanup just to shell out to it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Config configures an API.
type Config struct {
	// BasePath prefixes every route, e.g. "/api/".
	BasePath string

	Records *records.Store
	Blobs   *blobstore.Store
	Quota   *quota.Accountant

	// Cleanup is invoked synchronously by POST /api/files/cleanup. May be
	// nil, in which case that endpoint reports zero without error.
	Cleanup Sweeper

	// ChunkSize is both the unit streamed per ReadChunk call during
	// download and the divisor used to derive GET /api/files/{id}'s
	// chunk_count field. Defaults to 4 MiB.
	ChunkSize int64

	// DefaultPageSize and MaxPageSize bound GET /api/files pagination.
	DefaultPageSize int
	MaxPageSize     int

	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Records == nil {
		return errors.New("fileapi: Config.Records must not be nil")
	}
	if c.Blobs == nil {
		return errors.New("fileapi: Config.Blobs must not be nil")
	}
	if c.Quota == nil {
		return errors.New("fileapi: Config.Quota must not be nil")
	}

	if c.BasePath == "" {
		c.BasePath = "/api/"
	}
	if c.BasePath[len(c.BasePath)-1] != '/' {
		c.BasePath += "/"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 4 << 20
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return nil
}
