package memkv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/kv"
	"github.com/transferd/transferd/pkg/kv/memkv"
)

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	b := memkv.New()

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	applied, err := b.Set(ctx, "a", []byte("1"), kv.SetOptions{})
	require.NoError(t, err)
	assert.True(t, applied)

	value, err := b.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	deleted, err := b.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = b.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	b := memkv.New()

	applied, err := b.Set(ctx, "lock:1", []byte("holder"), kv.SetOptions{IfAbsent: true})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = b.Set(ctx, "lock:1", []byte("other"), kv.SetOptions{IfAbsent: true})
	require.NoError(t, err)
	assert.False(t, applied)

	value, err := b.Get(ctx, "lock:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("holder"), value)
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := memkv.New()

	_, err := b.Set(ctx, "k", []byte("v"), kv.SetOptions{TTL: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = b.Get(ctx, "k")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := b.Get(ctx, "k")
		return err == kv.ErrNotFound
	}, time.Second, 5*time.Millisecond)
}

func TestScanKeys(t *testing.T) {
	ctx := context.Background()
	b := memkv.New()

	for _, k := range []string{"upload:1", "upload:2", "file:1"} {
		_, err := b.Set(ctx, k, []byte("x"), kv.SetOptions{})
		require.NoError(t, err)
	}

	keys, err := b.ScanKeys(ctx, "upload:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"upload:1", "upload:2"}, keys)
}
