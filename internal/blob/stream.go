package blob

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// ErrUnaligned is returned by Seek when the target position is not a
// multiple of 16 or lies outside [0, Len()]. Read does not return it: an
// unaligned read size is aligned up internally.
var ErrUnaligned = errors.New("blob: seek position not aligned to block size")

// ErrMalformedCiphertext is returned when the source ends mid-block, or the
// PKCS#7 pad byte on the final block is out of range.
var ErrMalformedCiphertext = errors.New("blob: malformed ciphertext")

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// DecryptingStream wraps a seekable byte source laid out as
// Header || Ciphertext and exposes a seek+read interface over the
// plaintext. It maintains CBC chaining state across reads and seeks: a
// forward seek or read propagates the chain; a backward seek resets the
// cipher to the header IV and replays forward.
//
// DecryptingStream is not safe for concurrent use.
type DecryptingStream struct {
	source io.ReadSeeker
	header Header
	block  cipher.Block

	mode cipher.BlockMode // current CBC decrypter, chained across calls
	pos  int64            // ciphertext-relative cursor, always a multiple of 16
	n    int64            // ciphertext length (total size - HeaderSize)
}

// Open parses the header from source, measures the ciphertext region, and
// positions the stream at plaintext offset 0.
func Open(source io.ReadSeeker, key [32]byte) (*DecryptingStream, error) {
	total, err := source.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure source: %w", err)
	}

	header, err := ParseHeader(source)
	if err != nil {
		return nil, err
	}

	n := total - HeaderSize
	if n < blockSize || n%blockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrMalformedCiphertext, n, blockSize)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	if _, err := source.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to ciphertext: %w", err)
	}

	return &DecryptingStream{
		source: source,
		header: header,
		block:  block,
		mode:   cipher.NewCBCDecrypter(block, header.IV[:]),
		pos:    0,
		n:      n,
	}, nil
}

// Header returns the parsed blob header.
func (s *DecryptingStream) Header() Header { return s.header }

// Pos returns the current plaintext position (0-based from ciphertext start).
func (s *DecryptingStream) Pos() int64 { return s.pos }

// Len returns the padded ciphertext length N.
func (s *DecryptingStream) Len() int64 { return s.n }

// Read decrypts plaintext into dst. Reads are performed in 16-byte-aligned
// ciphertext chunks; the terminal read strips PKCS#7 padding and drains the
// stream.
func (s *DecryptingStream) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if s.pos == s.n {
		return 0, io.EOF
	}

	aligned := alignUp(len(dst), blockSize)
	if remaining := s.n - s.pos; int64(aligned) > remaining {
		aligned = int(remaining)
	}
	buf := make([]byte, aligned)
	if _, err := io.ReadFull(s.source, buf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	s.mode.CryptBlocks(buf, buf)
	newPos := s.pos + int64(aligned)

	if newPos == s.n {
		pad := buf[len(buf)-1]
		if !validPadding(buf, pad) {
			return 0, fmt.Errorf("%w: invalid pkcs7 padding", ErrMalformedCiphertext)
		}
		unpaddedLen := len(buf) - int(pad)
		s.pos = s.n
		return copy(dst, buf[:unpaddedLen]), nil
	}

	s.pos = newPos
	return copy(dst, buf), nil
}

func validPadding(block []byte, pad byte) bool {
	if pad < 1 || int(pad) > len(block) {
		return false
	}
	for _, b := range block[len(block)-int(pad):] {
		if b != pad {
			return false
		}
	}
	return true
}

// Seek repositions the plaintext cursor. Both the current and target
// positions must be multiples of 16; io.SeekEnd ignores its offset and
// positions at the padded ciphertext length N.
func (s *DecryptingStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.n
	default:
		return 0, fmt.Errorf("blob: invalid whence %d", whence)
	}

	if target%blockSize != 0 || target < 0 || target > s.n {
		return 0, ErrUnaligned
	}

	if target == s.pos {
		return s.pos, nil
	}

	if target < s.pos {
		if _, err := s.source.Seek(HeaderSize, io.SeekStart); err != nil {
			return 0, fmt.Errorf("rewind source: %w", err)
		}
		s.mode = cipher.NewCBCDecrypter(s.block, s.header.IV[:])
		s.pos = 0
	}

	if err := s.advance(target - s.pos); err != nil {
		return 0, err
	}
	return s.pos, nil
}

// advance propagates CBC chaining forward by reading and discarding n
// ciphertext bytes, in chunks, so large skips don't allocate unboundedly.
func (s *DecryptingStream) advance(n int64) error {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for n > 0 {
		step := int64(chunk)
		if step > n {
			step = n
		}
		if _, err := io.ReadFull(s.source, buf[:step]); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
		}
		s.mode.CryptBlocks(buf[:step], buf[:step])
		s.pos += step
		n -= step
	}
	return nil
}

// UnpaddedLength computes M = N - p by decrypting only the final ciphertext
// block and inspecting its PKCS#7 pad byte, avoiding a full-file scan.
func (s *DecryptingStream) UnpaddedLength() (int64, error) {
	last := s.n - blockSize
	if _, err := s.Seek(last, io.SeekStart); err != nil {
		return 0, err
	}

	block := make([]byte, blockSize)
	if _, err := io.ReadFull(s.source, block); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	s.mode.CryptBlocks(block, block)
	s.pos = s.n

	pad := block[len(block)-1]
	if pad < 1 || int(pad) > blockSize {
		return 0, fmt.Errorf("%w: pad byte %d out of range", ErrMalformedCiphertext, pad)
	}
	return s.n - int64(pad), nil
}

// Release returns the underlying source, relinquishing ownership.
func (s *DecryptingStream) Release() io.ReadSeeker {
	source := s.source
	s.source = nil
	return source
}
