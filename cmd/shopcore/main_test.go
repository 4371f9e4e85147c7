package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/shopcore/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadtestAgainstMiniredis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("JWT_SECRET", "")

	out, err := execute(t, "loadtest",
		"--env-file", "",
		"--sessions", "20",
		"--concurrency", "4",
		"--ops", "200",
		"--pages", "5",
		"--load-delay", "0s",
		"--metrics",
	)
	require.NoError(t, err, out)

	assert.Contains(t, out, "using miniredis")
	assert.Contains(t, out, "refresh: ops=200 failures=0")
	assert.Contains(t, out, "catalog: ops=200 failures=0")
	assert.Contains(t, out, "shopcore_catalog_hit_total")
}

func TestLoadtestRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "loadtest", "--sessions", "0")
	assert.Error(t, err)
}

func TestMigrateUpCreatesSQLiteTables(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "shop.db")
	t.Setenv("DATABASE_URL", dsn)

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err, out)
	assert.True(t, strings.Contains(out, "sqlite tables ready"), out)

	db, err := database.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, table := range []string{"tokens", "products", "users"} {
		var n int
		err := db.NewRaw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(context.Background(), &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	_, err = execute(t, "migrate", "down")
	assert.Error(t, err, "down is postgres only")
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "migrate", "up")
	assert.Error(t, err)
}
