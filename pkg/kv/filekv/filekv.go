// Package filekv implements a kv.Backend backed by a directory of
// one-value-per-key files plus JSON metadata sidecars recording expiry,
// using a write-temp-then-rename discipline for crash safety.
package filekv

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/transferd/transferd/pkg/kv"
)

var defaultFilePerm = os.FileMode(0664)

// meta is the sidecar recording a key's expiry, if any.
type meta struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Backend is a directory-backed kv.Backend. It is crash-safe: every write
// goes to a temp file in the same directory before being renamed over the
// destination, so a reader never observes a partially written value.
type Backend struct {
	dir string
}

// New creates a file-backed backend rooted at dir. The caller must ensure
// dir exists; New does not call os.MkdirAll on its own.
func New(dir string) *Backend {
	return &Backend{dir: dir}
}

func (b *Backend) valuePath(key string) string {
	return filepath.Join(b.dir, encodeKey(key)+".val")
}

func (b *Backend) metaPath(key string) string {
	return filepath.Join(b.dir, encodeKey(key)+".meta")
}

// encodeKey maps a kv key (which may contain ':' and other prefix
// separators) to a safe, unambiguously reversible file name.
func encodeKey(key string) string {
	return hex.EncodeToString([]byte(key))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, defaultFilePerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (b *Backend) readMeta(key string) (*meta, error) {
	data, err := os.ReadFile(b.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return &meta{}, nil
		}
		return nil, err
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// expired reports whether the key's sidecar says it should be treated as
// gone, removing the stale files as a side effect (the "sweep" the spec
// allows file backends to use to emulate TTLs).
func (b *Backend) expired(key string) bool {
	m, err := b.readMeta(key)
	if err != nil || m.ExpiresAt == nil {
		return false
	}
	if time.Now().Before(*m.ExpiresAt) {
		return false
	}
	os.Remove(b.valuePath(key))
	os.Remove(b.metaPath(key))
	return true
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.expired(key) {
		return nil, kv.ErrNotFound
	}

	data, err := os.ReadFile(b.valuePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Join(kv.ErrTransient, err)
	}
	return data, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, opts kv.SetOptions) (bool, error) {
	if opts.IfAbsent {
		if _, err := os.Stat(b.valuePath(key)); err == nil && !b.expired(key) {
			return false, nil
		}
	}

	if err := writeAtomic(b.valuePath(key), value); err != nil {
		return false, errors.Join(kv.ErrTransient, err)
	}

	m := meta{}
	if opts.TTL > 0 {
		t := time.Now().Add(opts.TTL)
		m.ExpiresAt = &t
	}
	data, err := json.Marshal(m)
	if err != nil {
		return false, err
	}
	if err := writeAtomic(b.metaPath(key), data); err != nil {
		return false, errors.Join(kv.ErrTransient, err)
	}

	return true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) (bool, error) {
	err := os.Remove(b.valuePath(key))
	os.Remove(b.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Join(kv.ErrTransient, err)
	}
	return true, nil
}

func (b *Backend) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Join(kv.ErrTransient, err)
	}

	encodedPrefix := encodeKey(prefix)
	seen := make(map[string]struct{})
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".val") {
			continue
		}
		encoded := strings.TrimSuffix(name, ".val")
		if !strings.HasPrefix(encoded, encodedPrefix) {
			continue
		}
		key := decodeKey(encoded)
		if _, ok := seen[key]; ok {
			continue
		}
		if b.expired(key) {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func decodeKey(encoded string) string {
	data, err := hex.DecodeString(encoded)
	if err != nil {
		return ""
	}
	return string(data)
}

func (b *Backend) Close(ctx context.Context) error {
	return nil
}
