package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxConns)

	assert.Equal(t, int64(32<<20), cfg.Content.MaxFileBytes)
	assert.Empty(t, cfg.Content.AllowedOrigins)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 200, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 400, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"WEBPANE_HOST":            "127.0.0.2",
		"WEBPANE_PORT":            "9000",
		"WEBPANE_MAX_FILE_BYTES":  "1024",
		"WEBPANE_ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"WEBPANE_LOG_LEVEL":       "debug",
		"WEBPANE_LOG_DEV":         "true",
	}
	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.2", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Content.MaxFileBytes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Content.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webpane.yaml")
	body := []byte("server:\n  port: 7777\ncontent:\n  not_found_body: gone\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "gone", cfg.Content.NotFoundBody)
	// Untouched values keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()
	assert.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}
