// Package integrity signs and encrypts hosted payment gateway fields.
//
// Digests are lower-case hex SHA-256 over the fields joined with "|" and the
// secret key appended with no delimiter. Ciphertexts are AES-256-CBC with
// PKCS7 padding, hex encoded. Every operation fails closed: a missing or
// placeholder key, or a key/IV of the wrong length, yields an error and no output.
package integrity

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Delimiter joins protocol fields before hashing
const Delimiter = "|"

// Required AES-256-CBC key and IV sizes in bytes
const (
	KeySize = 32
	IVSize  = aes.BlockSize
)

var (
	// ErrKeyNotConfigured indicates the secret key is unset or a sample value
	ErrKeyNotConfigured = errors.New("integrity key is not configured")

	// ErrInvalidKeyLength indicates the AES key is not exactly 32 bytes
	ErrInvalidKeyLength = errors.New("AES key must be exactly 32 bytes")

	// ErrInvalidIVLength indicates the AES IV is not exactly 16 bytes
	ErrInvalidIVLength = errors.New("AES IV must be exactly 16 bytes")

	// ErrMalformedCiphertext indicates ciphertext that is not valid hex, block aligned and padded
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

var placeholderKeys = []string{
	"YOUR_SECURE_HASH_KEY_FROM_BANK",
	"YOUR_AES_KEY",
	"YOUR_AES_IV",
	"changeme",
}

func isPlaceholder(key string) bool {
	k := strings.TrimSpace(key)
	if k == "" {
		return true
	}
	for _, p := range placeholderKeys {
		if k == p {
			return true
		}
	}
	return false
}

// Signer computes and verifies keyed digests
type Signer struct {
	key string
}

// NewSigner creates a signer. An unusable key is accepted here and rejected on use,
// so a misconfigured process still starts.
func NewSigner(key string) *Signer {
	return &Signer{key: key}
}

// Configured reports whether the signer holds a usable key
func (s *Signer) Configured() bool {
	return s != nil && !isPlaceholder(s.key)
}

// Sign returns the hex digest of the fields
func (s *Signer) Sign(fields ...string) (string, error) {
	if !s.Configured() {
		return "", ErrKeyNotConfigured
	}
	return digest(s.key, fields), nil
}

// Verify recomputes the digest and compares it case-insensitively in constant time.
// An empty digest never verifies.
func (s *Signer) Verify(received string, fields ...string) (bool, error) {
	if !s.Configured() {
		return false, ErrKeyNotConfigured
	}

	expected := digest(s.key, fields)
	got := strings.ToLower(strings.TrimSpace(received))
	if got == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1, nil
}

func digest(key string, fields []string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, Delimiter) + key))
	return hex.EncodeToString(sum[:])
}

// Cipher encrypts and decrypts gateway payloads with a fixed key and IV
type Cipher struct {
	block cipher.Block
	iv    []byte
}

// NewCipher validates the key and IV lengths before building the block cipher
func NewCipher(key, iv string) (*Cipher, error) {
	if isPlaceholder(key) {
		return nil, ErrKeyNotConfigured
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIVLength, len(iv))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &Cipher{block: block, iv: []byte(iv)}, nil
}

// EncryptHex encrypts plaintext and returns lower-case hex
func (c *Cipher) EncryptHex(plaintext string) (string, error) {
	if c == nil {
		return "", ErrKeyNotConfigured
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)

	return hex.EncodeToString(out), nil
}

// DecryptHex reverses EncryptHex. Hex case is ignored.
func (c *Cipher) DecryptHex(ciphertext string) (string, error) {
	if c == nil {
		return "", ErrKeyNotConfigured
	}

	raw, err := hex.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: not hex", ErrMalformedCiphertext)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of the block size", ErrMalformedCiphertext, len(raw))
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedCiphertext)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformedCiphertext)
		}
	}
	return data[:len(data)-n], nil
}
