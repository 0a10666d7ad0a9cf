package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

// RetentionPolicy mirrors records.Retention at the configuration boundary,
// so callers configuring the handler do not need to import pkg/records
// just to spell out a default.
type RetentionPolicy = records.Retention

// Config configures a Handler: a records store, a blob store, a locker
// and a quota accountant, plus the size/retention/timeout knobs that
// govern how they're used.
type Config struct {
	// BasePath is the URL path prefix under which uploads are addressed,
	// e.g. "/tus/". Must end with a slash.
	BasePath string

	// Store dependencies, one of each, wired once at startup.
	Records *records.Store
	Blobs   *blobstore.Store
	Locker  *lock.Locker
	Quota   *quota.Accountant

	// MaxUploadSize caps Upload-Length at POST time. Zero means
	// unlimited.
	MaxUploadSize int64

	// UploadExpiration is how long a created-but-not-finished upload may
	// live before HEAD/PATCH treat it as gone. Defaults to 24h.
	UploadExpiration time.Duration

	// DefaultRetention is applied when the client's Upload-Metadata omits
	// a retention hint and no per-token policy matches.
	DefaultRetention RetentionPolicy
	// DefaultRetentionTTL is used whenever the resolved retention is
	// RetentionTTL and the client did not supply a valid retention_ttl.
	DefaultRetentionTTL time.Duration
	// TokenRetentionPolicies maps a caller's opaque token to the
	// retention policy that POSTs authenticated with it should use,
	// consulted before DefaultRetention but after any client-supplied
	// metadata hint.
	TokenRetentionPolicies map[string]RetentionPolicy

	// NetworkTimeout bounds how long a read or write on the underlying
	// connection may stall before the request is aborted, applied via
	// http.ResponseController deadlines.
	NetworkTimeout time.Duration
	// GracefulRequestCompletionTimeout extends the request context after
	// the client context is cancelled, giving an in-flight chunk write a
	// brief grace period to reach disk before it is forced closed.
	GracefulRequestCompletionTimeout time.Duration
	// AcquireLockTimeout bounds how long a handler waits to acquire the
	// per-upload lock before giving up.
	AcquireLockTimeout time.Duration

	// Logger is the base logger; every request derives a child logger
	// from it carrying method/path/request-id/upload-id.
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.Records == nil {
		return errors.New("handler: Config.Records must not be nil")
	}
	if c.Blobs == nil {
		return errors.New("handler: Config.Blobs must not be nil")
	}
	if c.Locker == nil {
		return errors.New("handler: Config.Locker must not be nil")
	}
	if c.Quota == nil {
		return errors.New("handler: Config.Quota must not be nil")
	}

	if c.BasePath == "" {
		c.BasePath = "/tus/"
	}
	if c.BasePath[len(c.BasePath)-1] != '/' {
		c.BasePath += "/"
	}

	if c.UploadExpiration <= 0 {
		c.UploadExpiration = 24 * time.Hour
	}
	if c.DefaultRetention == "" {
		c.DefaultRetention = records.RetentionPermanent
	}
	if c.NetworkTimeout <= 0 {
		c.NetworkTimeout = 60 * time.Second
	}
	if c.GracefulRequestCompletionTimeout <= 0 {
		c.GracefulRequestCompletionTimeout = 10 * time.Second
	}
	if c.AcquireLockTimeout <= 0 {
		c.AcquireLockTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return nil
}
