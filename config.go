package shopcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shopcore/password"
)

// Config is the complete engine configuration. Start from DefaultConfig
// and override fields; Build validates and copies it.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Catalog  CatalogConfig
	Login    LoginConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls bearer token signing and the session lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis session store. It is ignored when a
// store is injected with Builder.WithSessionStore.
type SessionConfig struct {
	RedisPrefix string
	// Retention, when positive, lets Redis drop a record this long after
	// its refresh window closes. Zero keeps records until deleted.
	Retention time.Duration
}

/*
====================================
CATALOG CONFIG
====================================
*/

// CatalogConfig controls the product cache.
type CatalogConfig struct {
	Namespace string
	// CacheTTL bounds the life of a cached page. Zero stores without expiry;
	// writes still clear the namespace.
	CacheTTL time.Duration
	// CacheTimeout bounds each cache read and write. Zero disables it.
	CacheTimeout time.Duration
	// ClearTimeout bounds a namespace purge, which scans the whole
	// namespace. Zero leaves it to the caller's context.
	ClearTimeout time.Duration
	// LoadTimeout bounds a source load shared by coalesced readers.
	// Zero disables it.
	LoadTimeout time.Duration
	// LRUSize is the entry capacity of the in-process cache used when no
	// Redis client is configured.
	LRUSize int
}

// PasswordConfig holds Argon2id parameters for hashes produced by
// Engine.HashPassword.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig throttles repeated failed logins. It needs a Redis client
// (Builder.WithRedis); MaxAttempts zero disables it.
type LoginConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
	ThrottleIP  bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with one-hour bearer tokens, one-day
// refresh windows and Ed25519 signing. Key material must still be set.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RedisPrefix: "shop",
		},
		Catalog: CatalogConfig{
			Namespace:    "catalog:products",
			CacheTTL:     0,
			CacheTimeout: 250 * time.Millisecond,
			ClearTimeout: 5 * time.Second,
			LoadTimeout:  10 * time.Second,
			LRUSize:      1024,
		},
		Login: LoginConfig{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      pw.Memory,
			Time:        pw.Time,
			Parallelism: pw.Parallelism,
			SaltLength:  pw.SaltLength,
			KeyLength:   pw.KeyLength,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return fmt.Errorf("JWT SigningMethod %q is not supported", c.JWT.SigningMethod)
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if strings.Contains(c.Session.RedisPrefix, "*") {
		return errors.New("Session RedisPrefix must not contain '*'")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}

	// Catalog
	if strings.TrimSpace(c.Catalog.Namespace) == "" {
		return errors.New("Catalog Namespace must not be empty")
	}
	if strings.ContainsAny(c.Catalog.Namespace, "*?[") {
		return errors.New("Catalog Namespace must not contain glob characters")
	}
	if c.Catalog.CacheTTL < 0 || c.Catalog.CacheTimeout < 0 ||
		c.Catalog.ClearTimeout < 0 || c.Catalog.LoadTimeout < 0 {
		return errors.New("Catalog TTL and timeouts must be >= 0")
	}
	if keyspacesOverlap(c.Catalog.Namespace, c.Session.RedisPrefix) {
		return errors.New("Catalog Namespace must not overlap Session RedisPrefix")
	}
	if c.Catalog.LRUSize <= 0 {
		return errors.New("Catalog LRUSize must be > 0")
	}

	// Login
	if c.Login.MaxAttempts < 0 {
		return errors.New("Login MaxAttempts must be >= 0")
	}
	if c.Login.MaxAttempts > 0 && c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0 when throttling is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

// keyspacesOverlap reports whether a purge of one Redis keyspace could
// reach keys of the other.
func keyspacesOverlap(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+":") || strings.HasPrefix(b, a+":")
}
