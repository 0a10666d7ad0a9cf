// Package kv defines the abstract key-value backend that the rest of the
// core is built on: upload records, completed-file records and distributed
// locks are all just values stored under prefixed keys.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no value exists for the given key.
var ErrNotFound = errors.New("kv: key not found")

// ErrTransient marks a backend failure that may succeed if retried, e.g. a
// dropped Redis connection or a temporarily locked file. Callers may retry
// idempotently.
var ErrTransient = errors.New("kv: transient backend failure")

// SetOptions customizes a Set call.
type SetOptions struct {
	// TTL is a hint for when the key should expire. Zero means no expiry.
	// Redis honors this precisely; the memory and file backends emulate it
	// via a sweep or per-entry timer.
	TTL time.Duration
	// IfAbsent requests that Set only apply if the key does not currently
	// exist ("NX" semantics). This is the only primitive the distributed
	// lock (pkg/lock) needs.
	IfAbsent bool
}

// Backend is the capability set every state store implementation provides:
// get, set (optionally NX+EX), delete and prefix scan. None of its methods
// may block longer than a single underlying I/O operation.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key. It returns whether the write was applied:
	// always true unless opts.IfAbsent is set and the key already exists.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error)
	// Delete removes key, returning whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// ScanKeys returns every key whose name starts with prefix at the
	// moment the scan began. Keys added during the scan need not be
	// included; keys already deleted before the scan began must not be.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
	// Close releases any resources (connections, timers) held by the
	// backend.
	Close(ctx context.Context) error
}
