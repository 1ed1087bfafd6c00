package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meikuraledutech/botflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
storage:
  driver: sqlite
  path: /tmp/flows.db
cache:
  ttl: 30s
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/flows.db", cfg.Storage.Path)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Std())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\n"), 0o644))

	t.Setenv("BOTFLOW_ADDR", ":7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/botflow")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Driver, "DATABASE_URL implies the postgres driver")
	assert.Equal(t, "postgres://localhost/botflow", cfg.Storage.DSN)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttl: soon\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
