package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sachinthra/blobserve/internal/blob"
	"github.com/sachinthra/blobserve/internal/storage"
)

// UploadHandler validates and accepts whole encrypted blobs. There is no
// streaming write side: the body is buffered, its header parsed, and its
// ciphertext hash checked before it is written to the bucket.
type UploadHandler struct {
	store          *storage.BucketStore
	expectedMagic  [8]byte
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewUploadHandler(store *storage.BucketStore, expectedMagic [8]byte, maxUploadBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		store:          store,
		expectedMagic:  expectedMagic,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type UploadResponse struct {
	ObjectID string `json:"object_id"`
	Size     int64  `json:"size"`
}

// HandleUpload accepts the request body as a single whole blob
// (Header || Ciphertext), verifies its integrity hash, and rejects it
// with 401 if the hash does not match.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limited := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	data, err := io.ReadAll(limited)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds max size of %s", humanize.Bytes(uint64(h.maxUploadBytes))))
		return
	}

	if len(data) < blob.HeaderSize+16 {
		respondError(w, http.StatusBadRequest, "upload too small to contain a blob header and one ciphertext block")
		return
	}

	source := bytes.NewReader(data)
	header, err := blob.ParseHeader(source)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed blob header")
		return
	}

	if !header.MagicValid(h.expectedMagic) {
		respondError(w, http.StatusBadRequest, "magic tag does not match configured blob format")
		return
	}

	if !blob.IsContentValid(source, header) {
		respondError(w, http.StatusUnauthorized, "ciphertext hash does not match stored hash")
		return
	}

	objectID := uuid.New().String()
	if err := h.store.Save(objectID, data); err != nil {
		h.logger.Error("failed to persist blob", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to store blob")
		return
	}

	h.logger.Info("blob accepted",
		slog.String("object_id", objectID),
		slog.String("size", humanize.Bytes(uint64(len(data)))),
	)

	respondJSON(w, http.StatusCreated, UploadResponse{ObjectID: objectID, Size: int64(len(data))})
}
