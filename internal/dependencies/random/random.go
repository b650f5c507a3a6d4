package random

import (
	"crypto/rand"
	"encoding/base64"
)

// Random provides random value generation that can be mocked for testing.
// World tokens come from here, so they must be unpredictable in production.
type Random interface {
	// Token generates an opaque random identifier from length random bytes,
	// URL-safe base64 encoded.
	Token(length int) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Token generates a random identifier from length random bytes.
func (r *CryptoRandom) Token(length int) string {
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
