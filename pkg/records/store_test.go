package records_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/kv/memkv"
	"github.com/transferd/transferd/pkg/records"
)

func newUpload(id string) *records.UploadRecord {
	now := time.Now()
	return &records.UploadRecord{
		FileID:      id,
		Filename:    "example.bin",
		Size:        10,
		Offset:      0,
		Metadata:    map[string]string{"filetype": "application/octet-stream"},
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
		StoragePath: "uploads/" + id,
		Retention:   records.RetentionPermanent,
	}
}

func TestCreateAndGetUpload(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	rec := newUpload("abc")
	require.NoError(t, store.CreateUpload(ctx, rec))

	got, err := store.GetUpload(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.Size, got.Size)
}

func TestGetUploadMissing(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	_, err := store.GetUpload(ctx, "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestUpdateUploadStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	rec := newUpload("abc")
	rec.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateUpload(ctx, rec))

	before := rec.UpdatedAt
	rec.Offset = 5
	require.NoError(t, store.UpdateUpload(ctx, rec))

	got, err := store.GetUpload(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(before))
	assert.Equal(t, int64(5), got.Offset)
}

func TestListUploadsFiltersByFinalState(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	partial := newUpload("partial")
	require.NoError(t, store.CreateUpload(ctx, partial))

	final := newUpload("final")
	final.IsFinal = true
	require.NoError(t, store.CreateUpload(ctx, final))

	onlyPartial, err := store.ListUploads(ctx, false, true)
	require.NoError(t, err)
	require.Len(t, onlyPartial, 1)
	assert.Equal(t, "partial", onlyPartial[0].FileID)

	onlyFinal, err := store.ListUploads(ctx, true, false)
	require.NoError(t, err)
	require.Len(t, onlyFinal, 1)
	assert.Equal(t, "final", onlyFinal[0].FileID)

	both, err := store.ListUploads(ctx, true, true)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestCreateAndListFiles(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	rec := &records.CompletedFileRecord{
		UploadRecord:  *newUpload("done"),
		AvailableSize: 10,
		CompletedAt:   time.Now(),
	}
	require.NoError(t, store.CreateFile(ctx, rec))

	got, err := store.GetFile(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.AvailableSize)

	list, err := store.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "done", list[0].FileID)
}

func TestDeleteUploadAndFile(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	require.NoError(t, store.CreateUpload(ctx, newUpload("x")))
	deleted, err := store.DeleteUpload(ctx, "x")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetUpload(ctx, "x")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestReconcileOrphansFinalizesOffsetEqualsSizeRecords(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	stuck := newUpload("stuck")
	stuck.Offset = stuck.Size
	require.NoError(t, store.CreateUpload(ctx, stuck))

	inProgress := newUpload("in-progress")
	inProgress.Offset = 4
	require.NoError(t, store.CreateUpload(ctx, inProgress))

	already := newUpload("already-final")
	already.Offset = already.Size
	already.IsFinal = true
	require.NoError(t, store.CreateUpload(ctx, already))

	var finalized []string
	reconciled, err := store.ReconcileOrphans(ctx, func(_ context.Context, rec *records.UploadRecord) error {
		finalized = append(finalized, rec.FileID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, finalized)
	assert.Equal(t, []string{"stuck"}, reconciled)
}

func TestReconcileOrphansSkipsFinalizeErrors(t *testing.T) {
	ctx := context.Background()
	store := records.New(memkv.New())

	stuck := newUpload("stuck")
	stuck.Offset = stuck.Size
	require.NoError(t, store.CreateUpload(ctx, stuck))

	reconciled, err := store.ReconcileOrphans(ctx, func(_ context.Context, _ *records.UploadRecord) error {
		return errors.New("finalize failed")
	})
	require.NoError(t, err)
	assert.Empty(t, reconciled)
}
