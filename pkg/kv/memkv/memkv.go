// Package memkv implements an in-memory kv.Backend. It is the simplest of
// the three backends: a single map guarded by a mutex, plus one-shot timers
// for per-key expiry.
package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/transferd/transferd/pkg/kv"
)

type entry struct {
	value  []byte
	expiry *time.Timer
}

// Backend is an in-memory kv.Backend. Values only live as long as the
// process does; restart loses all state. Useful for tests and
// single-process deployments.
type Backend struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		entries: make(map[string]*entry),
	}
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	// Defensive copy so callers cannot mutate our stored bytes.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, opts kv.SetOptions) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts.IfAbsent {
		if _, exists := b.entries[key]; exists {
			return false, nil
		}
	}

	if old, exists := b.entries[key]; exists && old.expiry != nil {
		old.expiry.Stop()
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	e := &entry{value: stored}
	if opts.TTL > 0 {
		e.expiry = time.AfterFunc(opts.TTL, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// Only remove if nothing replaced it since the timer fired.
			if cur, ok := b.entries[key]; ok && cur == e {
				delete(b.entries, key)
			}
		})
	}

	b.entries[key] = e
	return true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return false, nil
	}
	if e.expiry != nil {
		e.expiry.Stop()
	}
	delete(b.entries, key)
	return true, nil
}

func (b *Backend) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		if hasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.entries {
		if e.expiry != nil {
			e.expiry.Stop()
		}
	}
	b.entries = make(map[string]*entry)
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
