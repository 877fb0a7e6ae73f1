package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.Cache.MessageTTL)
	assert.Equal(t, "/api/v1", cfg.Route.BasePath)
}

func TestLoadConfigFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/pm-test.db
cache:
  messageTTL: 5m
`)

	cfg := LoadConfigFrom(path)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/pm-test.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Cache.MessageTTL)
	assert.Equal(t, "pm-system", cfg.JWT.Issuer)
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadConfigFrom_InvalidYAMLFallsBack(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")

	cfg := LoadConfigFrom(path)

	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REDIS_DB", "0")
	t.Setenv("CACHE_MESSAGE_TTL", "90s")
	t.Setenv("ROUTE_BASE_PATH", "/pm")
	t.Setenv("DB_LOG_SQL", "true")

	cfg := LoadConfigFrom(writeConfig(t, "redis:\n  db: 3\n"))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 90*time.Second, cfg.Cache.MessageTTL)
	assert.Equal(t, "/pm", cfg.Route.BasePath)
	assert.True(t, cfg.Database.LogSQL)
}

func TestGetEnvHelpers_IgnoreMalformedValues(t *testing.T) {
	t.Setenv("PM_TEST_INT", "abc")
	t.Setenv("PM_TEST_DURATION", "soon")
	t.Setenv("PM_TEST_BOOL", "maybe")

	assert.Equal(t, 7, getEnvInt("PM_TEST_INT", 7))
	assert.Equal(t, time.Second, getEnvDuration("PM_TEST_DURATION", time.Second))
	assert.True(t, getEnvBool("PM_TEST_BOOL", true))
}
