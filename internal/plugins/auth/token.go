package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a session token: 32 bytes = 256 bits.
const tokenBytes = 32

// IssueToken returns a new opaque bearer token: 32 random bytes from
// crypto/rand, URL-safe base64 without padding (43 characters).
func IssueToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint is the storage and lookup key for a token: the hex SHA-256
// digest. Only fingerprints are persisted, so a leaked sessions table
// cannot be replayed.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
