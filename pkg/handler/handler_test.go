package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd/transferd/pkg/blobstore"
	"github.com/transferd/transferd/pkg/kv/memkv"
	"github.com/transferd/transferd/pkg/lock"
	"github.com/transferd/transferd/pkg/quota"
	"github.com/transferd/transferd/pkg/records"
)

func newTestHandler(t *testing.T, maxUploadSize int64) (*Handler, string) {
	t.Helper()

	root := t.TempDir()
	backend := memkv.New()
	t.Cleanup(func() { backend.Close(context.Background()) })

	locker := lock.New(backend, 0)
	blobs, err := blobstore.New(root, locker)
	require.NoError(t, err)

	acct := quota.New(blobs.UploadsDir(), blobs.FilesDir(), nil)

	h, err := NewHandler(Config{
		BasePath:      "/tus/",
		Records:       records.New(backend),
		Blobs:         blobs,
		Locker:        locker,
		Quota:         acct,
		MaxUploadSize: maxUploadSize,
	})
	require.NoError(t, err)
	return h, root
}

func doReq(t *testing.T, mux http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.ContentLength = int64(len(body))
	}
	req.Header.Set("Tus-Resumable", "1.0.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHappyPathUploadInChunks(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	mux := h.Mux()

	meta := "filename " + b64("report.bin")
	resp := doReq(t, mux, http.MethodPost, "/tus/", nil, map[string]string{
		"Upload-Length":    "10",
		"Upload-Metadata":  meta,
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "0", resp.Header().Get("Upload-Offset"))
	location := resp.Header().Get("Location")
	require.NotEmpty(t, location)

	id := location[len(location)-32:]

	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, []byte("01234"), map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "0",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("Upload-Offset"))

	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, []byte("56789"), map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "5",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "10", resp.Header().Get("Upload-Offset"))

	resp = doReq(t, mux, http.MethodHead, "/tus/"+id, nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "10", resp.Header().Get("Upload-Offset"))
}

func TestPatchOffsetConflict(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	mux := h.Mux()

	resp := doReq(t, mux, http.MethodPost, "/tus/", nil, map[string]string{
		"Upload-Length":   "10",
		"Upload-Metadata": "filename " + b64("a.bin"),
	})
	location := resp.Header().Get("Location")
	id := location[len(location)-32:]

	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, []byte("01234"), map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "0",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	// Retry the same PATCH: offset no longer matches.
	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, []byte("01234"), map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "0",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestQuotaExceededThenRecovered(t *testing.T) {
	h, root := newTestHandler(t, 0)
	maxBytes := int64(8 << 20)
	h.config.Quota = quota.New(root+"/uploads", root+"/files", &maxBytes)
	mux := h.Mux()

	resp := doReq(t, mux, http.MethodPost, "/tus/", nil, map[string]string{
		"Upload-Length":   "10485760",
		"Upload-Metadata": "filename " + b64("big.bin"),
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	location := resp.Header().Get("Location")
	id := location[len(location)-32:]

	four := make([]byte, 4<<20)
	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, four, map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "0",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, four, map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "4194304",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)

	two := make([]byte, 2<<20)
	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, two, map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "8388608",
	})
	require.Equal(t, http.StatusInsufficientStorage, resp.Code)
	assert.Equal(t, "10", resp.Header().Get("Retry-After"))
	assert.Equal(t, "8388608", resp.Header().Get("Upload-Offset"))

	// Raise the cap, then retry the same PATCH: it now succeeds and
	// finalizes the upload.
	maxBytes = int64(16 << 20)
	h.config.Quota = quota.New(root+"/uploads", root+"/files", &maxBytes)
	resp = doReq(t, mux, http.MethodPatch, "/tus/"+id, two, map[string]string{
		"Content-Type":  "application/offset+octet-stream",
		"Upload-Offset": "8388608",
	})
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "10485760", resp.Header().Get("Upload-Offset"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	mux := h.Mux()

	resp := doReq(t, mux, http.MethodPost, "/tus/", nil, map[string]string{
		"Upload-Length":   "3",
		"Upload-Metadata": "filename " + b64("x.bin"),
	})
	location := resp.Header().Get("Location")
	id := location[len(location)-32:]

	resp = doReq(t, mux, http.MethodDelete, "/tus/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = doReq(t, mux, http.MethodDelete, "/tus/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestOptionsAdvertisesExtensions(t *testing.T) {
	h, _ := newTestHandler(t, 0)
	mux := h.Mux()

	resp := doReq(t, mux, http.MethodOptions, "/tus/", nil, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Contains(t, resp.Header().Get("Tus-Extension"), "termination")
	assert.Equal(t, "1.0.0", resp.Header().Get("Tus-Version"))
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
