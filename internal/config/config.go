// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by STORAGE_BACKEND and REFRESH_TOKEN_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Argon2id cost floor; lower values are rejected at startup.
const (
	MinArgon2MemoryKB    = 64 * 1024
	MinArgon2Time        = 3
	MinArgon2Parallelism = 4
)

const minJWTSecretLen = 32

// MaxImpersonationTTL is the longest an admin impersonation session may live.
const MaxImpersonationTTL = time.Hour

// ConfigurationError reports an invalid or missing setting. The process must not serve traffic
// when Load returns one.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC listener serving grpc.health.v1.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// APIPrefix is the versioned API root all routes are mounted under.
	APIPrefix string `mapstructure:"API_PREFIX"`
	// DatabaseURL is the Postgres DSN. Required when either backend is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// StorageBackend selects where users and sessions live: postgres or memory.
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	// RefreshTokenBackend selects where refresh-token hashes live: postgres, redis or memory.
	RefreshTokenBackend string `mapstructure:"REFRESH_TOKEN_BACKEND"`
	// RedisURL is a redis:// URL; required when RefreshTokenBackend is redis.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTSecret is the HS256 key shared by access-token issuance and verification.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime in {number}{s|m|h|d} form (e.g. "900s").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "7d").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SessionTTLRaw is the absolute session lifetime (e.g. "7d").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// ImpersonationTTLRaw bounds admin impersonation sessions and both of their tokens.
	// It may be shortened but never exceed MaxImpersonationTTL.
	ImpersonationTTLRaw string `mapstructure:"IMPERSONATION_TTL"`

	Argon2MemoryKB          int `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time              int `mapstructure:"ARGON2_TIME"`
	Argon2Parallelism       int `mapstructure:"ARGON2_PARALLELISM"`
	PasswordHashConcurrency int `mapstructure:"PASSWORD_HASH_CONCURRENCY"`

	// ClientDashboardURL is where impersonation of CLIENT/CLIENT_ADMIN users redirects.
	ClientDashboardURL string `mapstructure:"CLIENT_DASHBOARD_URL"`
	// PublicSiteURL is where impersonation of every other role redirects.
	PublicSiteURL string `mapstructure:"PUBLIC_SITE_URL"`

	// KafkaBrokers is a comma-separated list of brokers for the audit stream; empty disables it.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the topic audit events are written to and the worker consumes.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the worker pushes audit events to.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC collector; empty yields no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment. "production" forbids the memory backends.
	Env string `mapstructure:"APP_ENV"`

	// Parsed durations, filled by Load.
	AccessTTL        time.Duration `mapstructure:"-"`
	RefreshTTL       time.Duration `mapstructure:"-"`
	SessionTTL       time.Duration `mapstructure:"-"`
	ImpersonationTTL time.Duration `mapstructure:"-"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Any invalid value is returned as
// a *ConfigurationError.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTooling reads the same sources as Load but skips the auth-server checks. Used by the
// migrate, seed and worker binaries, which never issue tokens.
func LoadTooling() (*Config, error) {
	return read()
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORAGE_BACKEND", BackendPostgres)
	v.SetDefault("REFRESH_TOKEN_BACKEND", BackendPostgres)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "jobboard-auth")
	v.SetDefault("JWT_AUDIENCE", "jobboard-api")
	v.SetDefault("JWT_ACCESS_TTL", "900s")
	v.SetDefault("JWT_REFRESH_TTL", "7d")
	v.SetDefault("SESSION_TTL", "7d")
	v.SetDefault("IMPERSONATION_TTL", "1h")
	v.SetDefault("ARGON2_MEMORY_KB", MinArgon2MemoryKB)
	v.SetDefault("ARGON2_TIME", MinArgon2Time)
	v.SetDefault("ARGON2_PARALLELISM", MinArgon2Parallelism)
	v.SetDefault("PASSWORD_HASH_CONCURRENCY", 4)
	v.SetDefault("CLIENT_DASHBOARD_URL", "/dashboard")
	v.SetDefault("PUBLIC_SITE_URL", "/")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "jobboard-auth-audit")
	v.SetDefault("KAFKA_GROUP_ID", "jobboard-audit-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Key: "env", Reason: "could not be decoded", Err: err}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return &ConfigurationError{Key: "HTTP_ADDR", Reason: "must be set"}
	}
	if c.JWTSecret == "" {
		return &ConfigurationError{Key: "JWT_SECRET", Reason: "must be set"}
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return &ConfigurationError{Key: "JWT_SECRET", Reason: fmt.Sprintf("must be at least %d bytes", minJWTSecretLen)}
	}

	var err error
	if c.AccessTTL, err = parseKey("JWT_ACCESS_TTL", c.JWTAccessTTL); err != nil {
		return err
	}
	if c.RefreshTTL, err = parseKey("JWT_REFRESH_TTL", c.JWTRefreshTTL); err != nil {
		return err
	}
	if c.SessionTTL, err = parseKey("SESSION_TTL", c.SessionTTLRaw); err != nil {
		return err
	}
	if c.ImpersonationTTL, err = parseKey("IMPERSONATION_TTL", c.ImpersonationTTLRaw); err != nil {
		return err
	}
	if c.ImpersonationTTL > MaxImpersonationTTL {
		return &ConfigurationError{Key: "IMPERSONATION_TTL", Reason: fmt.Sprintf("must not exceed %s", MaxImpersonationTTL)}
	}
	if c.RefreshTTL <= c.AccessTTL {
		return &ConfigurationError{Key: "JWT_REFRESH_TTL", Reason: "must be longer than JWT_ACCESS_TTL"}
	}

	if c.Argon2MemoryKB < MinArgon2MemoryKB {
		return &ConfigurationError{Key: "ARGON2_MEMORY_KB", Reason: fmt.Sprintf("must be >= %d", MinArgon2MemoryKB)}
	}
	if c.Argon2Time < MinArgon2Time {
		return &ConfigurationError{Key: "ARGON2_TIME", Reason: fmt.Sprintf("must be >= %d", MinArgon2Time)}
	}
	if c.Argon2Parallelism < MinArgon2Parallelism || c.Argon2Parallelism > 255 {
		return &ConfigurationError{Key: "ARGON2_PARALLELISM", Reason: fmt.Sprintf("must be between %d and 255", MinArgon2Parallelism)}
	}
	if c.PasswordHashConcurrency < 1 {
		return &ConfigurationError{Key: "PASSWORD_HASH_CONCURRENCY", Reason: "must be >= 1"}
	}

	return c.validateBackends()
}

func (c *Config) validateBackends() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.RefreshTokenBackend = strings.ToLower(strings.TrimSpace(c.RefreshTokenBackend))

	switch c.StorageBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return &ConfigurationError{Key: "DATABASE_URL", Reason: "must be set when STORAGE_BACKEND=postgres"}
		}
	case BackendMemory:
	default:
		return &ConfigurationError{Key: "STORAGE_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.StorageBackend)}
	}

	// The refresh-token backend must either share the session store's cascade (same backend) or be
	// redis, where session deletion purges tokens explicitly.
	switch c.RefreshTokenBackend {
	case BackendPostgres, BackendMemory:
		if c.RefreshTokenBackend != c.StorageBackend {
			return &ConfigurationError{Key: "REFRESH_TOKEN_BACKEND", Reason: "must match STORAGE_BACKEND unless it is redis"}
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return &ConfigurationError{Key: "REDIS_URL", Reason: "must be set when REFRESH_TOKEN_BACKEND=redis"}
		}
	default:
		return &ConfigurationError{Key: "REFRESH_TOKEN_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.RefreshTokenBackend)}
	}

	if c.IsProduction() && (c.StorageBackend == BackendMemory || c.RefreshTokenBackend == BackendMemory) {
		return &ConfigurationError{Key: "STORAGE_BACKEND", Reason: "memory backends are not allowed when APP_ENV=production"}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka audit sink.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses the {number}{s|m|h|d} pattern used by every TTL setting.
// Zero and values with any other shape are rejected.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: want {number}{s|m|h|d}", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", s)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	const maxSeconds = int64(1<<63-1) / int64(time.Second)
	if n > maxSeconds/int64(unit/time.Second) {
		return 0, fmt.Errorf("invalid duration %q: too large", s)
	}
	return time.Duration(n) * unit, nil
}

func parseKey(key, raw string) (time.Duration, error) {
	d, err := ParseDuration(raw)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Reason: "is not a valid duration", Err: err}
	}
	return d, nil
}
