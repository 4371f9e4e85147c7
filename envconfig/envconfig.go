// Package envconfig loads process settings from the environment and an
// optional .env file using Viper, and converts them to a shopcore.Config.
package envconfig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when Load is given an empty path. A missing
// default file is ignored.
const DefaultEnvFile = ".env"

// Settings holds everything a shopcore process reads from its environment.
type Settings struct {
	// RedisAddr is host:port; empty selects an in-process miniredis in
	// the CLI.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// DatabaseURL is a postgres:// URL or a sqlite path.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSigningMethod string `mapstructure:"JWT_SIGNING_METHOD"`
	// JWTSecret is the raw HS256 key.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey and JWTPublicKey are base64 Ed25519 keys.
	JWTPrivateKey string        `mapstructure:"JWT_PRIVATE_KEY"`
	JWTPublicKey  string        `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	JWTAudience   string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL  time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	JWTLeeway     time.Duration `mapstructure:"JWT_LEEWAY"`

	SessionPrefix    string        `mapstructure:"SESSION_PREFIX"`
	SessionRetention time.Duration `mapstructure:"SESSION_RETENTION"`

	CatalogNamespace    string        `mapstructure:"CATALOG_NAMESPACE"`
	CatalogCacheTTL     time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	CatalogCacheTimeout time.Duration `mapstructure:"CATALOG_CACHE_TIMEOUT"`
	CatalogClearTimeout time.Duration `mapstructure:"CATALOG_CLEAR_TIMEOUT"`
	CatalogLoadTimeout  time.Duration `mapstructure:"CATALOG_LOAD_TIMEOUT"`
	CatalogLRUSize      int           `mapstructure:"CATALOG_LRU_SIZE"`

	// LoginMaxAttempts zero disables the failed-login throttle.
	LoginMaxAttempts int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginCooldown    time.Duration `mapstructure:"LOGIN_COOLDOWN"`
	LoginThrottleIP  bool          `mapstructure:"LOGIN_THROTTLE_IP"`

	AuditEnabled      bool `mapstructure:"AUDIT_ENABLED"`
	AuditBufferSize   int  `mapstructure:"AUDIT_BUFFER_SIZE"`
	MetricsEnabled    bool `mapstructure:"METRICS_ENABLED"`
	MetricsHistograms bool `mapstructure:"METRICS_HISTOGRAMS"`
}

// Load reads envFile (DefaultEnvFile when empty), then overlays the
// process environment. Environment variables win over the file.
func Load(envFile string) (*Settings, error) {
	v := viper.New()

	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && envFile != "" {
		return nil, fmt.Errorf("envconfig: read %s: %w", envFile, err)
	}

	v.AutomaticEnv()

	def := shopcore.DefaultConfig()
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SIGNING_METHOD", "hs256")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "shopcore")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_ACCESS_TTL", def.JWT.AccessTTL.String())
	v.SetDefault("JWT_REFRESH_TTL", def.JWT.RefreshTTL.String())
	v.SetDefault("JWT_LEEWAY", "0s")
	v.SetDefault("SESSION_PREFIX", def.Session.RedisPrefix)
	v.SetDefault("SESSION_RETENTION", "0s")
	v.SetDefault("CATALOG_NAMESPACE", def.Catalog.Namespace)
	v.SetDefault("CATALOG_CACHE_TTL", "0s")
	v.SetDefault("CATALOG_CACHE_TIMEOUT", def.Catalog.CacheTimeout.String())
	v.SetDefault("CATALOG_CLEAR_TIMEOUT", def.Catalog.ClearTimeout.String())
	v.SetDefault("CATALOG_LOAD_TIMEOUT", def.Catalog.LoadTimeout.String())
	v.SetDefault("CATALOG_LRU_SIZE", def.Catalog.LRUSize)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", def.Login.MaxAttempts)
	v.SetDefault("LOGIN_COOLDOWN", def.Login.Cooldown.String())
	v.SetDefault("LOGIN_THROTTLE_IP", false)
	v.SetDefault("AUDIT_ENABLED", false)
	v.SetDefault("AUDIT_BUFFER_SIZE", def.Audit.BufferSize)
	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_HISTOGRAMS", false)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("envconfig: %w", err)
	}
	return &s, nil
}

// EngineConfig converts s to a validated shopcore.Config.
func (s *Settings) EngineConfig() (shopcore.Config, error) {
	cfg := shopcore.DefaultConfig()
	if s == nil {
		return cfg, errors.New("envconfig: nil settings")
	}

	cfg.JWT.SigningMethod = strings.ToLower(s.JWTSigningMethod)
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience
	cfg.JWT.AccessTTL = s.JWTAccessTTL
	cfg.JWT.RefreshTTL = s.JWTRefreshTTL
	cfg.JWT.Leeway = s.JWTLeeway

	switch cfg.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(s.JWTSecret)
	case "ed25519":
		priv, err := decodeKey("JWT_PRIVATE_KEY", s.JWTPrivateKey)
		if err != nil {
			return cfg, err
		}
		pub, err := decodeKey("JWT_PUBLIC_KEY", s.JWTPublicKey)
		if err != nil {
			return cfg, err
		}
		cfg.JWT.PrivateKey, cfg.JWT.PublicKey = priv, pub
	}

	cfg.Session.RedisPrefix = s.SessionPrefix
	cfg.Session.Retention = s.SessionRetention

	cfg.Catalog.Namespace = s.CatalogNamespace
	cfg.Catalog.CacheTTL = s.CatalogCacheTTL
	cfg.Catalog.CacheTimeout = s.CatalogCacheTimeout
	cfg.Catalog.ClearTimeout = s.CatalogClearTimeout
	cfg.Catalog.LoadTimeout = s.CatalogLoadTimeout
	cfg.Catalog.LRUSize = s.CatalogLRUSize

	cfg.Login.MaxAttempts = s.LoginMaxAttempts
	cfg.Login.Cooldown = s.LoginCooldown
	cfg.Login.ThrottleIP = s.LoginThrottleIP

	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Audit.BufferSize = s.AuditBufferSize
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsHistograms

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("envconfig: %w", err)
	}
	return cfg, nil
}

func decodeKey(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("envconfig: %s must be set for ed25519", name)
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("envconfig: %s is not base64: %w", name, err)
	}
	return b, nil
}
