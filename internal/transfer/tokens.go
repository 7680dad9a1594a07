package transfer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenLength is the length of public share and request identifiers.
const TokenLength = 12

// URL-safe alphabet without - and _ to avoid copy/paste confusion.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewShareID returns a 12-character public share token.
func NewShareID() (string, error) {
	return newToken(TokenLength)
}

// NewRequestID returns a 12-character access request token.
func NewRequestID() (string, error) {
	return newToken(TokenLength)
}

// NewSessionKey returns the single-use upload session key.
func NewSessionKey() (string, error) {
	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashIP hashes a requester's address with a service-wide salt. Only the
// hash is ever stored.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])
}

// ChunkDigest fingerprints chunk bytes for duplicate/conflict detection.
func ChunkDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newToken(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	out := make([]byte, length)
	for i, b := range raw {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}
