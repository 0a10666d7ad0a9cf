package quota_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/quota"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644))
}

func TestGetStorageUsageUnlimited(t *testing.T) {
	ctx := context.Background()
	uploadsDir, filesDir := t.TempDir(), t.TempDir()
	writeFile(t, uploadsDir, "a", 10)
	writeFile(t, filesDir, "b_name.txt", 20)

	a := quota.New(uploadsDir, filesDir, nil)
	usage, err := a.GetStorageUsage(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(30), usage.Used)
	assert.False(t, usage.IsFull)
	assert.Equal(t, 1, usage.UploadsCount)
	assert.Equal(t, 1, usage.FilesCount)
}

func TestCheckQuotaWithCap(t *testing.T) {
	ctx := context.Background()
	uploadsDir, filesDir := t.TempDir(), t.TempDir()
	writeFile(t, uploadsDir, "a", 4<<20)
	writeFile(t, filesDir, "b_name.bin", 4<<20)

	max := int64(8 << 20)
	a := quota.New(uploadsDir, filesDir, &max)

	ok, err := a.CheckQuota(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckQuota(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	usage, err := a.GetStorageUsage(ctx)
	require.NoError(t, err)
	assert.True(t, usage.IsFull)
	assert.Equal(t, int64(0), usage.Available)
}

func TestGetStorageUsageMissingDirsAreEmpty(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	a := quota.New(filepath.Join(root, "uploads"), filepath.Join(root, "files"), nil)

	usage, err := a.GetStorageUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Used)
}
