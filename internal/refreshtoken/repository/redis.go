package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
)

// expiredGrace keeps expired tokens readable for a while so Validate can still report
// "expired" instead of "invalid" before Redis evicts the key.
const expiredGrace = 24 * time.Hour

const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[2], "id", ARGV[2], "sid", ARGV[3], "exp", ARGV[4], "created", ARGV[5])
redis.call("PEXPIRE", KEYS[2], ARGV[6])
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[6])
return 1
`

const rotateScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
if redis.call("DEL", KEYS[2]) == 0 then
  return 0
end
redis.call("HSET", KEYS[3], "id", ARGV[3], "sid", ARGV[4], "exp", ARGV[5], "created", ARGV[6])
redis.call("PEXPIRE", KEYS[3], ARGV[7])
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[7])
return 1
`

const deleteScript = `
redis.call("DEL", KEYS[2])
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("DEL", KEYS[1])
end
return 1
`

const deleteBySessionScript = `
local cur = redis.call("GET", KEYS[1])
if cur then
  redis.call("DEL", ARGV[1] .. cur)
end
redis.call("DEL", KEYS[1])
return 1
`

var (
	createLua          = redis.NewScript(createScript)
	rotateLua          = redis.NewScript(rotateScript)
	deleteLua          = redis.NewScript(deleteScript)
	deleteBySessionLua = redis.NewScript(deleteBySessionScript)
)

// RedisRepository stores refresh tokens in Redis: a hash per token under <prefix>hash:<token hash>
// and a pointer <prefix>session:<session id> to the session's current token hash. Every
// multi-key change runs as one Lua script. Redis does not share the session store's cascade,
// so the session manager calls DeleteBySession explicitly.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRepository returns a Redis-backed refresh-token repository. An empty prefix
// defaults to "rt:".
func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "rt:"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) tokenKey(hash string) string { return r.prefix + "hash:" + hash }
func (r *RedisRepository) sessionKey(sessionID string) string { return r.prefix + "session:" + sessionID }

func (r *RedisRepository) ttlMillis(expiresAt time.Time) int64 {
	ms := expiresAt.Add(expiredGrace).Sub(r.now()).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}

// Create stores t unless its session already points at a token.
func (r *RedisRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	ok, err := createLua.Run(ctx, r.rdb,
		[]string{r.sessionKey(t.SessionID), r.tokenKey(t.TokenHash)},
		t.TokenHash, t.ID, t.SessionID, t.ExpiresAt.UnixMilli(), t.CreatedAt.UnixMilli(), r.ttlMillis(t.ExpiresAt),
	).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrSessionHasToken
	}
	return nil
}

// GetByHash returns the token with hash, or nil if not found.
func (r *RedisRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.tokenKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	exp, err := strconv.ParseInt(fields["exp"], 10, 64)
	if err != nil {
		return nil, errors.New("refresh token record corrupt: exp")
	}
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, errors.New("refresh token record corrupt: created")
	}
	return &domain.RefreshToken{
		ID:        fields["id"],
		SessionID: fields["sid"],
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(exp).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}

// Delete removes t and clears its session pointer when it still points at t.
func (r *RedisRepository) Delete(ctx context.Context, t *domain.RefreshToken) error {
	return deleteLua.Run(ctx, r.rdb,
		[]string{r.sessionKey(t.SessionID), r.tokenKey(t.TokenHash)}, t.TokenHash,
	).Err()
}

// Rotate swaps the session's token from oldHash to next in one script. The compare on the
// session pointer makes a second concurrent rotation of the same token fail.
func (r *RedisRepository) Rotate(ctx context.Context, sessionID, oldHash string, next *domain.RefreshToken) error {
	ok, err := rotateLua.Run(ctx, r.rdb,
		[]string{r.sessionKey(sessionID), r.tokenKey(oldHash), r.tokenKey(next.TokenHash)},
		oldHash, next.TokenHash, next.ID, next.SessionID,
		next.ExpiresAt.UnixMilli(), next.CreatedAt.UnixMilli(), r.ttlMillis(next.ExpiresAt),
	).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteBySession removes the session's token and pointer.
func (r *RedisRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	return deleteBySessionLua.Run(ctx, r.rdb, []string{r.sessionKey(sessionID)}, r.prefix+"hash:").Err()
}
