package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	argon2ID          = "argon2id"
	defaultSaltLength = 16
	defaultKeyLength  = 32
)

var errMalformedHash = errors.New("malformed password hash")

// PasswordParams are the Argon2id cost parameters embedded in every new hash.
type PasswordParams struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultPasswordParams is the production cost floor: 64 MiB, 3 passes, 4 lanes.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  defaultSaltLength,
		KeyLength:   defaultKeyLength,
	}
}

// Hasher hashes and verifies passwords using Argon2id in PHC string form
// ($argon2id$v=19$m=..,t=..,p=..$salt$hash). Legacy bcrypt hashes still verify.
// At most concurrency hash computations run at once; callers beyond that wait
// on ctx. Callers must not log or persist plaintext passwords.
type Hasher struct {
	params PasswordParams
	sem    *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher with the given parameters. Zero salt/key lengths take defaults;
// concurrency below 1 is treated as 1.
func NewHasher(params PasswordParams, concurrency int) *Hasher {
	if params.SaltLength == 0 {
		params.SaltLength = defaultSaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = defaultKeyLength
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Hasher{params: params, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Hash returns a PHC-encoded Argon2id hash of password with a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password salt: %w", err)
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)
	h.sem.Release(1)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed or unsupported hashes,
// and a cancelled ctx, yield false; Verify never returns an error.
func (h *Hasher) Verify(ctx context.Context, encoded, password string) bool {
	if isBcrypt(encoded) {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false
		}
		defer h.sem.Release(1)
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}

	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	h.sem.Release(1)
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

// VerifyDummy runs one verification against a fixed internal hash and discards the
// result, so login paths without a stored hash cost the same as a wrong password.
func (h *Hasher) VerifyDummy(ctx context.Context, password string) {
	h.dummyOnce.Do(func() {
		var buf [24]byte
		_, _ = io.ReadFull(rand.Reader, buf[:])
		h.dummy, _ = h.Hash(context.Background(), base64.RawStdEncoding.EncodeToString(buf[:]))
	})
	_ = h.Verify(ctx, h.dummy, password)
}

// NeedsRehash reports whether a stored hash is a legacy bcrypt hash or an Argon2id hash
// weaker than the current parameters. Malformed hashes report false.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	return p.memory < h.params.MemoryKB ||
		p.time < h.params.Time ||
		p.parallelism < h.params.Parallelism ||
		uint32(len(p.key)) != h.params.KeyLength
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2ID {
		return nil, errMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, errMalformedHash
	}

	var p phc
	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errMalformedHash
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n == 0 {
				return nil, errMalformedHash
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n == 0 {
				return nil, errMalformedHash
			}
			p.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n == 0 {
				return nil, errMalformedHash
			}
			p.parallelism = uint8(n)
		default:
			return nil, errMalformedHash
		}
		seen++
	}
	if seen != 3 {
		return nil, errMalformedHash
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return nil, errMalformedHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, errMalformedHash
	}
	return &p, nil
}
