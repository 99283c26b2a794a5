package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TROVE_AUTH_TOKEN_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/trove.db", cfg.Database.Path)
	require.Equal(t, "filesystem", cfg.Storage.Backend)
	require.Equal(t, int64(5*1024*1024), cfg.Storage.MaxImageSize)
	require.Equal(t, "/uploads", cfg.Storage.PublicPath)
	require.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 5000, cfg.Server.Port)
	require.False(t, cfg.Redis.Enabled)
	require.True(t, cfg.Sweeper.Enabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8080
auth:
  token_secret: file-secret
  token_ttl: 1h
storage:
  backend: s3
  s3:
    bucket: trove-images
    region: eu-west-1
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("TROVE_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env beats file
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "file-secret", cfg.Auth.TokenSecret)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "s3", cfg.Storage.Backend)
	require.Equal(t, "trove-images", cfg.Storage.S3.Bucket)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("TROVE_AUTH_TOKEN_SECRET", "secret")
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("missing token secret", func(t *testing.T) {
		cfg := base()
		cfg.Auth.TokenSecret = ""
		require.ErrorContains(t, cfg.Validate(), "auth.token_secret")
	})

	t.Run("bad driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mongo"
		require.ErrorContains(t, cfg.Validate(), "database.driver")
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Backend = "s3"
		require.ErrorContains(t, cfg.Validate(), "storage.s3.bucket")
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.Logging.Level = "verbose"
		require.ErrorContains(t, cfg.Validate(), "logging.level")
	})
}
