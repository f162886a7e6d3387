package security

import "time"

// TestSecret is a 32-byte HS256 key for unit tests only. Do not use in production.
const TestSecret = "test-secret-0123456789abcdefghij"

// NewTestTokenIssuer returns a TokenIssuer with the test secret and a 15 minute TTL.
// For unit tests only.
func NewTestTokenIssuer() *TokenIssuer {
	return NewTokenIssuer([]byte(TestSecret), "test-issuer", "test-audience", 15*time.Minute)
}

// NewTestHasher returns a Hasher with cheap Argon2id parameters so tests do not spend
// 64 MiB per hash. For unit tests only.
func NewTestHasher() *Hasher {
	return NewHasher(PasswordParams{MemoryKB: 8 * 1024, Time: 1, Parallelism: 1}, 4)
}
