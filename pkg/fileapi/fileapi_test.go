package fileapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/fileapi"
	"github.com/transferd/transferd/pkg/kv/memkv"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

func newTestAPI(t *testing.T) (*fileapi.API, *records.Store, *blobstore.Store) {
	t.Helper()

	root := t.TempDir()
	backend := memkv.New()
	t.Cleanup(func() { backend.Close(context.Background()) })

	locker := lock.New(backend, 0)
	blobs, err := blobstore.New(root, locker)
	require.NoError(t, err)

	store := records.New(backend)
	acct := quota.New(blobs.UploadsDir(), blobs.FilesDir(), nil)

	a, err := fileapi.New(fileapi.Config{
		BasePath:  "/api/",
		Records:   store,
		Blobs:     blobs,
		Quota:     acct,
		ChunkSize: 4,
	})
	require.NoError(t, err)
	return a, store, blobs
}

func putCompletedFile(t *testing.T, store *records.Store, blobs *blobstore.Store, id, filename string, data []byte, retention records.Retention) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, blobs.CreateUpload(id))
	_, err := blobs.WriteChunk(ctx, id, data, 0)
	require.NoError(t, err)
	path, err := blobs.FinalizeUpload(id, filename)
	require.NoError(t, err)

	rec := records.UploadRecord{
		FileID:      id,
		Filename:    filename,
		Size:        int64(len(data)),
		Offset:      int64(len(data)),
		IsFinal:     true,
		StoragePath: path,
		Retention:   retention,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, store.CreateFile(ctx, &records.CompletedFileRecord{
		UploadRecord:  rec,
		AvailableSize: int64(len(data)),
		CompletedAt:   time.Now(),
	}))
}

func TestGetFileReturnsChunkCount(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "abc123", "report.bin", []byte("0123456789"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodGet, "/api/files/abc123", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "complete", body["status"])
	assert.EqualValues(t, 3, body["chunk_count"]) // 10 bytes / chunk_size=4, rounded up
}

func TestGetFileNotFound(t *testing.T) {
	a, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/files/missing", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadFullFileReturns200(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "dl1", "x.bin", []byte("hello world"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodGet, "/api/files/dl1/download", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
}

func TestDownloadRangeReturns206(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "dl2", "x.bin", []byte("hello world"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodGet, "/api/files/dl2/download", nil)
	req.Header.Set("Range", "bytes=0-4")
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "bytes 0-4/11", w.Header().Get("Content-Range"))
}

func TestDownloadInvalidRangeReturns416(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "dl3", "x.bin", []byte("hello world"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodGet, "/api/files/dl3/download", nil)
	req.Header.Set("Range", "bytes=100-200")
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
}

func TestDownloadOnceDeletesAfterFullDownload(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "once1", "secret.bin", []byte("once"), records.RetentionDownloadOnce)

	req := httptest.NewRequest(http.MethodGet, "/api/files/once1/download", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Retention-Warning"))

	_, err := store.GetFile(context.Background(), "once1")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "del1", "x.bin", []byte("data"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodDelete, "/api/files/del1", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/files/del1", nil)
	w = httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFilesPaginatesAndSorts(t *testing.T) {
	a, store, blobs := newTestAPI(t)
	putCompletedFile(t, store, blobs, "l1", "a.bin", []byte("a"), records.RetentionPermanent)
	time.Sleep(2 * time.Millisecond)
	putCompletedFile(t, store, blobs, "l2", "b.bin", []byte("b"), records.RetentionPermanent)

	req := httptest.NewRequest(http.MethodGet, "/api/files?page=1&page_size=1", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Files      []map[string]any `json:"files"`
		TotalCount int               `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Files, 1)
	assert.Equal(t, 2, body.TotalCount)
	assert.Equal(t, "l2", body.Files[0]["file_id"])
}

func TestStorageAndHealthEndpoints(t *testing.T) {
	a, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/storage", nil)
	w := httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	a.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
