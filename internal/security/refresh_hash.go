package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// RefreshTokenBytes is the amount of randomness in every raw refresh token.
const RefreshTokenBytes = 48

// GenerateRefreshToken returns a new opaque refresh token: RefreshTokenBytes of
// crypto/rand output, hex-encoded. The raw value must only be returned to the client.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshToken returns a SHA-256 hash of the refresh token string, hex-encoded.
// Only this value is persisted; lookups are by hash.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
