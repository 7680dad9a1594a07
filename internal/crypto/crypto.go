// Package crypto implements the client-side file encryption contract:
// AES-256-GCM with a fresh 12-byte nonce prepended to the ciphertext, and
// base64 key export so the key travels through the escrow channel as an
// opaque string. The server stores only what Encrypt produces; it never
// holds a usable key next to the bytes.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	KeySize   = 32
	NonceSize = 12
)

var (
	// ErrUnsupportedEnvironment means the runtime has no secure randomness
	// source. Callers must refuse to encrypt rather than fall back.
	ErrUnsupportedEnvironment = errors.New("secure random source unavailable")

	// ErrMalformedKey means an exported key string failed to decode or has
	// the wrong length.
	ErrMalformedKey = errors.New("malformed exported key")

	// ErrCiphertextTooShort means the payload is shorter than a nonce.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Engine is a stateless encrypt/decrypt service. Every call takes its key
// material explicitly; there is no hidden key state.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// GenerateKey returns a fresh 256-bit key, or ErrUnsupportedEnvironment if
// the secure RNG is unavailable.
func (e *Engine) GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err)
	}
	return key, nil
}

// Encrypt encrypts plaintext under a freshly generated key and returns the
// payload as nonce || authenticated ciphertext, plus the exported key.
func (e *Engine) Encrypt(plaintext []byte) (ciphertext []byte, exportedKey string, err error) {
	key, err := e.GenerateKey()
	if err != nil {
		return nil, "", err
	}

	ciphertext, err = e.EncryptWithKey(plaintext, key)
	if err != nil {
		return nil, "", err
	}
	return ciphertext, ExportKey(key), nil
}

// EncryptWithKey encrypts plaintext under the given raw key with a fresh
// random nonce. The nonce is prepended so the payload is self-contained.
func (e *Engine) EncryptWithKey(plaintext, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err)
	}

	out := make([]byte, 0, NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Decrypt opens a nonce-prefixed payload with an exported key string.
// Tampered ciphertext or a wrong key fails authentication; altered
// plaintext is never returned.
func (e *Engine) Decrypt(ciphertext []byte, exportedKey string) ([]byte, error) {
	key, err := ImportKey(exportedKey)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < NonceSize {
		return nil, ErrCiphertextTooShort
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:NonceSize]
	return aead.Open(nil, nonce, ciphertext[NonceSize:], nil)
}

// ExportKey encodes raw key bytes for transport as an opaque string.
func ExportKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportKey is the inverse of ExportKey. Malformed input gets a decode
// error, not a panic.
func ImportKey(exported string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(exported)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(key), KeySize)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedKey, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
