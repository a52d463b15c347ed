package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "SNAPSHOT_ENABLED", "SNAPSHOT_INTERVAL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "studio-finance.db", cfg.DBPath)
	assert.Equal(t, time.Hour, cfg.SnapshotInterval)
	assert.True(t, cfg.SnapshotEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EnvThenFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SNAPSHOT_INTERVAL", "15m")
	t.Setenv("SNAPSHOT_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load([]string{"-port", "3000"})
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port, "flag overrides env")
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.SnapshotInterval)
	assert.False(t, cfg.SnapshotEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	t.Run("bad port env", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Load(nil)
		assert.ErrorContains(t, err, "PORT")
	})

	t.Run("unknown log format", func(t *testing.T) {
		_, err := Load([]string{"-log-format", "xml"})
		assert.ErrorContains(t, err, "invalid configuration")
	})

	t.Run("interval too short", func(t *testing.T) {
		_, err := Load([]string{"-snapshot-interval", "10ms"})
		assert.Error(t, err)
	})
}
