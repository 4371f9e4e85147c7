package envconfig

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeEnvFile(t, "JWT_SECRET="+testSecret+"\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hs256", s.JWTSigningMethod)
	assert.Equal(t, time.Hour, s.JWTAccessTTL)
	assert.Equal(t, 24*time.Hour, s.JWTRefreshTTL)
	assert.Equal(t, "shop", s.SessionPrefix)
	assert.Equal(t, "catalog:products", s.CatalogNamespace)
	assert.Equal(t, 250*time.Millisecond, s.CatalogCacheTimeout)
	assert.Equal(t, 5*time.Second, s.CatalogClearTimeout)
	assert.Equal(t, 10*time.Second, s.CatalogLoadTimeout)

	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte(testSecret), cfg.JWT.PrivateKey)
	assert.Equal(t, "shopcore", cfg.JWT.Issuer)
	assert.Equal(t, 5, cfg.Login.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Login.Cooldown)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "JWT_SECRET="+testSecret+"\nJWT_ACCESS_TTL=30m\nSESSION_PREFIX=file\n")
	t.Setenv("SESSION_PREFIX", "env")
	t.Setenv("CATALOG_LRU_SIZE", "64")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "localhost:6380")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, s.JWTAccessTTL)
	assert.Equal(t, "env", s.SessionPrefix)
	assert.Equal(t, 64, s.CatalogLRUSize)
	assert.True(t, s.MetricsEnabled)
	assert.Equal(t, "localhost:6380", s.RedisAddr)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestEngineConfig_Ed25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	t.Setenv("JWT_SIGNING_METHOD", "ED25519")
	t.Setenv("JWT_PRIVATE_KEY", base64.StdEncoding.EncodeToString(priv))
	t.Setenv("JWT_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))

	s, err := Load(writeEnvFile(t, ""))
	require.NoError(t, err)
	cfg, err := s.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, "ed25519", cfg.JWT.SigningMethod)
	assert.Equal(t, []byte(priv), cfg.JWT.PrivateKey)
	assert.Equal(t, []byte(pub), cfg.JWT.PublicKey)
}

func TestEngineConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"refresh shorter than access", map[string]string{
			"JWT_SECRET":      testSecret,
			"JWT_ACCESS_TTL":  "2h",
			"JWT_REFRESH_TTL": "1h",
		}},
		{"ed25519 without keys", map[string]string{"JWT_SIGNING_METHOD": "ed25519"}},
		{"ed25519 bad base64", map[string]string{
			"JWT_SIGNING_METHOD": "ed25519",
			"JWT_PRIVATE_KEY":    "%%%",
			"JWT_PUBLIC_KEY":     "%%%",
		}},
		{"glob prefix", map[string]string{"JWT_SECRET": testSecret, "SESSION_PREFIX": "a*"}},
		{"throttle without cooldown", map[string]string{"JWT_SECRET": testSecret, "LOGIN_COOLDOWN": "0s"}},
		{"catalog namespace under session prefix", map[string]string{"JWT_SECRET": testSecret, "SESSION_PREFIX": "catalog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			s, err := Load(writeEnvFile(t, ""))
			require.NoError(t, err)
			_, err = s.EngineConfig()
			assert.Error(t, err)
		})
	}
}
