// Package helpers provides small crypto utilities shared across the
// engine.
package helpers

import (
	"crypto/rand"
	"crypto/subtle"
)

// GenerateSecureRandom returns n cryptographically secure random bytes.
func GenerateSecureRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// where they diverge through timing. Use it for every secret/hash
// comparison.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
