package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "localhost", cfg.Metadata.Host)
	assert.Equal(t, 5432, cfg.Metadata.Port)
	assert.Equal(t, "disable", cfg.Metadata.SSLMode)
	assert.Equal(t, 5*time.Second, cfg.Metadata.ConnectTimeout())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: DEBUG
metadata:
  host: db.internal
  port: 5433
  database: models
  connect_timeout_seconds: 30
source:
  mongo_database: ops
  mongo_collection: events
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Metadata.Host)
	assert.Equal(t, 5433, cfg.Metadata.Port)
	assert.Equal(t, "models", cfg.Metadata.Database)
	assert.Equal(t, 30*time.Second, cfg.Metadata.ConnectTimeout())
	assert.Equal(t, "ops", cfg.Source.MongoDatabase)
	assert.Equal(t, "events", cfg.Source.MongoCollection)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "vaultforge", cfg.Metadata.User)
	assert.Equal(t, int32(10), cfg.Metadata.MaxConnections)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAULTFORGE_METADATA_HOST", "pg.prod")
	t.Setenv("VAULTFORGE_METADATA_PASSWORD", "secret")
	t.Setenv("VAULTFORGE_LOG_LEVEL", "WARN")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pg.prod", cfg.Metadata.Host)
	assert.Equal(t, "secret", cfg.Metadata.Password)
	assert.Equal(t, "WARN", cfg.LogLevel)
}
