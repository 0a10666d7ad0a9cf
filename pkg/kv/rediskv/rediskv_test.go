package rediskv_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/kv"
	"github.com/transferd/transferd/pkg/kv/rediskv"
)

func TestGetSetDelete(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	b, err := rediskv.NewFromURL("redis://" + s.Addr())
	require.NoError(t, err)

	_, err = b.Get(ctx, "upload:1")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	applied, err := b.Set(ctx, "upload:1", []byte("data"), kv.SetOptions{})
	require.NoError(t, err)
	assert.True(t, applied)

	value, err := b.Get(ctx, "upload:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), value)

	deleted, err := b.Delete(ctx, "upload:1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSetIfAbsent(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	b, err := rediskv.NewFromURL("redis://" + s.Addr())
	require.NoError(t, err)

	applied, err := b.Set(ctx, "lock:1", []byte("holder"), kv.SetOptions{IfAbsent: true, TTL: time.Minute})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = b.Set(ctx, "lock:1", []byte("other"), kv.SetOptions{IfAbsent: true, TTL: time.Minute})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestScanKeys(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	b, err := rediskv.NewFromURL("redis://" + s.Addr())
	require.NoError(t, err)

	for _, k := range []string{"upload:1", "upload:2", "file:1"} {
		_, err := b.Set(ctx, k, []byte("x"), kv.SetOptions{})
		require.NoError(t, err)
	}

	keys, err := b.ScanKeys(ctx, "upload:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"upload:1", "upload:2"}, keys)
}
