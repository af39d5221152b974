// Package crypto seals whole plaintext files into the blob format internal/blob
// reads back: an 8-byte magic, an 8-byte reserved field, a 16-byte IV, a
// 32-byte SHA-256 of the ciphertext, and PKCS#7-padded AES-256-CBC
// ciphertext. There is no streaming write side — blobs are sealed whole, and
// uploads arrive already sealed and are validated whole.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	MagicSize    = 8
	ReservedSize = 8
	IVSize       = 16
	HashSize     = 32
	HeaderSize   = MagicSize + ReservedSize + IVSize + HashSize
	blockSize    = aes.BlockSize
)

// GenerateKey generates a random 256-bit AES key.
func GenerateKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// SealBlob encrypts plaintext with AES-256-CBC under a fresh random IV,
// PKCS#7-pads it, and prepends the fixed header (magic, reserved, iv,
// hash-of-ciphertext) that internal/blob parses back.
func SealBlob(magic [8]byte, plaintext []byte, key [32]byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	var iv [IVSize]byte
	if _, err := rand.Read(iv[:]); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, blockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, padded)

	hash := sha256.Sum256(ciphertext)

	out := make([]byte, 0, HeaderSize+len(ciphertext))
	out = append(out, magic[:]...)
	out = append(out, make([]byte, ReservedSize)...)
	out = append(out, iv[:]...)
	out = append(out, hash[:]...)
	out = append(out, ciphertext...)
	return out, nil
}

func pkcs7Pad(data []byte, size int) []byte {
	pad := size - len(data)%size
	if pad == 0 {
		pad = size
	}
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(pad)}, pad)...)
}

// ParseMagic converts the configured magic-tag string into the fixed
// 8-byte array Header.MagicValid compares against. The string must be
// exactly 8 bytes.
func ParseMagic(s string) ([8]byte, error) {
	var magic [8]byte
	if len(s) != MagicSize {
		return magic, fmt.Errorf("expected magic must be exactly %d bytes, got %d", MagicSize, len(s))
	}
	copy(magic[:], s)
	return magic, nil
}

// DecodeKeyHex decodes a 64 hex-character string into a 32-byte AES key, the
// configured-key format named in the blob engine's external interface.
func DecodeKeyHex(hexKey string) ([32]byte, error) {
	var key [32]byte
	decoded, err := hex.DecodeString(hexKey)
	if err != nil {
		return key, fmt.Errorf("invalid aes key hex: %w", err)
	}
	if len(decoded) != len(key) {
		return key, fmt.Errorf("invalid aes key hex: got %d bytes, need %d", len(decoded), len(key))
	}
	copy(key[:], decoded)
	return key, nil
}
