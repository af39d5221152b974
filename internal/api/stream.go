package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sachinthra/blobserve/internal/blob"
	"github.com/sachinthra/blobserve/internal/chunked"
	"github.com/sachinthra/blobserve/internal/storage"
)

// StreamHandler is the HTTP Streaming Adapter: it turns a stored blob
// into a range-capable HTTP response, decrypting on the fly when the
// blob's magic tag matches the configured one and serving the raw bytes
// otherwise.
type StreamHandler struct {
	store         *storage.BucketStore
	expectedMagic [8]byte
	key           [32]byte
	logger        *slog.Logger
}

func NewStreamHandler(store *storage.BucketStore, expectedMagic [8]byte, key [32]byte, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		store:         store,
		expectedMagic: expectedMagic,
		key:           key,
		logger:        logger,
	}
}

// HandleStream serves GET and HEAD for /objects/{id}. Any other method
// gets 405 with an Allow header.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		respondError(w, http.StatusMethodNotAllowed, "only GET and HEAD are supported")
		return
	}

	objectID := chi.URLParam(r, "id")
	if objectID == "" {
		respondError(w, http.StatusBadRequest, "object id required")
		return
	}

	f, err := h.store.Open(objectID)
	if err != nil {
		respondError(w, http.StatusNotFound, "object not found")
		return
	}
	defer f.Close()

	header, err := blob.ParseHeader(f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stored object has a malformed header")
		return
	}

	if !header.MagicValid(h.expectedMagic) {
		h.serveRaw(w, r, f, objectID)
		return
	}

	h.serveDecrypted(w, r, f, header, objectID)
}

// serveRaw passes a non-matching blob straight through as opaque bytes,
// byte-for-byte, with no block-alignment constraint on the requested
// range.
func (h *StreamHandler) serveRaw(w http.ResponseWriter, r *http.Request, f io.ReadSeeker, objectID string) {
	total, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to stat object")
		return
	}

	sniff := make([]byte, 512)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read object")
		return
	}
	n, _ := io.ReadFull(f, sniff)
	contentType := http.DetectContentType(sniff[:n])

	start, length, status, ok := resolveRange(w, r, total)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(objectID))
	h.stream(w, r, f, start, length, status, total)
}

// serveDecrypted computes the unpadded plaintext length, sniffs its MIME
// type from the first 512 decrypted bytes, and streams the requested
// range through the decrypting stream — widening the client's byte range
// out to the aligned ciphertext window the core requires; unaligned ranges
// are never forwarded into internal/blob.
func (h *StreamHandler) serveDecrypted(w http.ResponseWriter, r *http.Request, f io.ReadSeeker, header blob.Header, objectID string) {
	stream, err := blob.Open(f, h.key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to open decrypting stream")
		return
	}

	plainLen, err := stream.UnpaddedLength()
	if err != nil {
		h.logger.Error("unpadded length computation failed", slog.String("object_id", objectID), slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to determine object length")
		return
	}

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to seek decrypting stream")
		return
	}
	sniff := make([]byte, 512)
	n, _ := io.ReadFull(stream, sniff)
	contentType := http.DetectContentType(sniff[:n])

	start, length, status, ok := resolveRange(w, r, plainLen)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(objectID))

	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to seek decrypting stream")
		return
	}

	h.streamAligned(w, r, stream, start, length, status, plainLen)
}

const blockSize = 16

// streamAligned widens [start, start+length) out to 16-byte boundaries,
// reads that superset through the decrypting stream via a
// ChunkedRangeStream, and trims the leading and trailing slack before
// writing to w — the adapter-side counterpart to blob.DecryptingStream's
// Seek contract, which only accepts block-aligned offsets.
func (h *StreamHandler) streamAligned(w http.ResponseWriter, r *http.Request, stream *blob.DecryptingStream, start, length int64, status int, total int64) {
	alignedStart := (start / blockSize) * blockSize
	alignedEnd := ((start + length + blockSize - 1) / blockSize) * blockSize
	if alignedEnd > stream.Len() {
		alignedEnd = stream.Len()
	}

	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}

	rs := chunked.New(stream, alignedStart, alignedEnd-alignedStart)
	skip := start - alignedStart
	remaining := length
	ctx := r.Context()

	for {
		chunk, err := rs.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Error("range stream failed", slog.String("error", err.Error()))
			return
		}
		if skip > 0 {
			if int64(len(chunk)) <= skip {
				skip -= int64(len(chunk))
				continue
			}
			chunk = chunk[skip:]
			skip = 0
		}
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		if len(chunk) == 0 {
			break
		}
		if _, werr := w.Write(chunk); werr != nil {
			return
		}
		remaining -= int64(len(chunk))
		if remaining == 0 {
			break
		}
	}
}

// stream serves a plain (non-decrypting) byte range with no alignment
// constraint, used for the raw-passthrough path.
func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request, source io.ReadSeeker, start, length int64, status int, total int64) {
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}

	rs := chunked.New(source, start, length)
	ctx := r.Context()
	for {
		chunk, err := rs.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Error("range stream failed", slog.String("error", err.Error()))
			return
		}
		if _, werr := w.Write(chunk); werr != nil {
			return
		}
	}
}

// resolveRange parses the Range header against total, writes
// Accept-Ranges and (when present) Content-Range, and reports the byte
// window to serve. ok is false once a response — 416 — has already been
// written and the caller must return immediately.
func resolveRange(w http.ResponseWriter, r *http.Request, total int64) (start, length int64, status int, ok bool) {
	w.Header().Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		return 0, total, http.StatusOK, true
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		respondError(w, http.StatusRequestedRangeNotSatisfiable, "malformed range")
		return 0, 0, 0, false
	}

	var rangeStart, rangeEnd int64
	var err error
	if parts[0] == "" {
		// suffix range: "bytes=-N" means the last N bytes.
		var suffixLen int64
		suffixLen, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || suffixLen <= 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
			respondError(w, http.StatusRequestedRangeNotSatisfiable, "malformed range")
			return 0, 0, 0, false
		}
		rangeStart = total - suffixLen
		if rangeStart < 0 {
			rangeStart = 0
		}
		rangeEnd = total - 1
	} else {
		rangeStart, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
			respondError(w, http.StatusRequestedRangeNotSatisfiable, "malformed range")
			return 0, 0, 0, false
		}
		if parts[1] == "" {
			rangeEnd = total - 1
		} else {
			rangeEnd, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
				respondError(w, http.StatusRequestedRangeNotSatisfiable, "malformed range")
				return 0, 0, 0, false
			}
		}
	}

	if rangeStart < 0 || rangeStart > rangeEnd || rangeStart >= total {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		respondError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return 0, 0, 0, false
	}
	if rangeEnd >= total {
		rangeEnd = total - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rangeStart, rangeEnd, total))
	return rangeStart, rangeEnd - rangeStart + 1, http.StatusPartialContent, true
}

func contentDisposition(objectID string) string {
	return mime.FormatMediaType("inline", map[string]string{"filename": objectID})
}
