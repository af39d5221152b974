package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcrypto "github.com/sachinthra/blobserve/internal/crypto"
	"github.com/sachinthra/blobserve/internal/storage"
)

func newTestUploadHandler(t *testing.T) (*UploadHandler, *storage.BucketStore) {
	t.Helper()
	store, err := storage.NewBucketStore(t.TempDir())
	require.NoError(t, err)
	return NewUploadHandler(store, testMagic, 10*1024*1024, discardLogger()), store
}

func TestHandleUploadAcceptsValidBlob(t *testing.T) {
	h, store := newTestUploadHandler(t)

	key, err := blobcrypto.GenerateKey()
	require.NoError(t, err)
	sealed, err := blobcrypto.SealBlob(testMagic, []byte("hello world"), key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/objects/", bytes.NewReader(sealed))
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(len(sealed)), resp.Size)

	stored, err := store.Open(resp.ObjectID)
	require.NoError(t, err)
	defer stored.Close()
	got, err := io.ReadAll(stored)
	require.NoError(t, err)
	assert.Equal(t, sealed, got)
}

func TestHandleUploadRejectsWrongMagic(t *testing.T) {
	h, _ := newTestUploadHandler(t)

	key, err := blobcrypto.GenerateKey()
	require.NoError(t, err)
	wrongMagic := [8]byte{'N', 'O', 'P', 'E', 0, 0, 0, 0}
	sealed, err := blobcrypto.SealBlob(wrongMagic, []byte("hello"), key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/objects/", bytes.NewReader(sealed))
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadRejectsTamperedHash(t *testing.T) {
	h, _ := newTestUploadHandler(t)

	key, err := blobcrypto.GenerateKey()
	require.NoError(t, err)
	sealed, err := blobcrypto.SealBlob(testMagic, []byte("hello world"), key)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	req := httptest.NewRequest(http.MethodPost, "/objects/", bytes.NewReader(sealed))
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleUploadRejectsUndersizedBody(t *testing.T) {
	h, _ := newTestUploadHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/objects/", bytes.NewReader([]byte("too small")))
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadRejectsOversizedBody(t *testing.T) {
	store, err := storage.NewBucketStore(t.TempDir())
	require.NoError(t, err)
	h := NewUploadHandler(store, testMagic, 16, discardLogger())

	key, err := blobcrypto.GenerateKey()
	require.NoError(t, err)
	sealed, err := blobcrypto.SealBlob(testMagic, bytes.Repeat([]byte{'a'}, 256), key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/objects/", bytes.NewReader(sealed))
	rec := httptest.NewRecorder()

	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
