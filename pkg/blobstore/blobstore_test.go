package blobstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/kv/memkv"
	"github.com/transferd/transferd/pkg/lock"
)

func newStore(t *testing.T) *blobstore.Store {
	t.Helper()
	locker := lock.New(memkv.New(), time.Minute)
	s, err := blobstore.New(t.TempDir(), locker)
	require.NoError(t, err)
	return s
}

func TestWriteChunkAndReadChunk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreateUpload("abc"))

	n, err := s.WriteChunk(ctx, "abc", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = s.WriteChunk(ctx, "abc", []byte(" world"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	data, err := s.ReadChunk(ctx, s.UploadPath("abc"), 0, 11)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestReadChunkShortReadAtEOF(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreateUpload("abc"))
	_, err := s.WriteChunk(ctx, "abc", []byte("hi"), 0)
	require.NoError(t, err)

	data, err := s.ReadChunk(ctx, s.UploadPath("abc"), 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestReadChunkMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.ReadChunk(ctx, s.UploadPath("missing"), 0, 10)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestFinalizeUploadRenames(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreateUpload("abc"))
	_, err := s.WriteChunk(ctx, "abc", []byte("done"), 0)
	require.NoError(t, err)

	path, err := s.FinalizeUpload("abc", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.FilesDir(), "abc_report.pdf"), path)

	_, err = os.Stat(s.UploadPath("abc"))
	assert.True(t, os.IsNotExist(err))

	data, err := s.ReadChunk(ctx, path, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))
}

func TestDeleteUploadAndFile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.CreateUpload("abc"))
	require.NoError(t, s.DeleteUpload(ctx, "abc"))
	_, err := os.Stat(s.UploadPath("abc"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an already-absent upload is a no-op, not an error.
	require.NoError(t, s.DeleteUpload(ctx, "abc"))

	require.NoError(t, s.CreateUpload("xyz"))
	_, err = s.WriteChunk(ctx, "xyz", []byte("x"), 0)
	require.NoError(t, err)
	path, err := s.FinalizeUpload("xyz", "name.txt")
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile("xyz"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteChunkLockedByAnotherHolderFails(t *testing.T) {
	ctx := context.Background()
	backend := memkv.New()
	locker := lock.New(backend, time.Minute)
	s, err := blobstore.New(t.TempDir(), locker)
	require.NoError(t, err)

	require.NoError(t, s.CreateUpload("abc"))

	held, err := locker.TryLock(ctx, "abc")
	require.NoError(t, err)
	defer held.Unlock(ctx)

	_, err = s.WriteChunk(ctx, "abc", []byte("x"), 0)
	assert.ErrorIs(t, err, lock.ErrConflict)
}
