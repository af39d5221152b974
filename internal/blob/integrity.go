package blob

import (
	"crypto/sha256"
	"io"
)

const hashChunkSize = 64 * 1024

// IsContentValid computes SHA-256 over the ciphertext region of source
// (everything from HeaderSize to EOF) and compares it against
// header.Hash. It reads the underlying source directly, not through the
// decrypting read path, since the stored hash covers ciphertext, not
// plaintext. Any read error is treated as invalid, not surfaced as an
// error — policy is the caller's to decide.
func IsContentValid(source io.ReadSeeker, header Header) bool {
	if _, err := source.Seek(HeaderSize, io.SeekStart); err != nil {
		return false
	}

	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := source.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return false
		}
	}

	sum := hasher.Sum(nil)
	return string(sum) == string(header.Hash[:])
}
