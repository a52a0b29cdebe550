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
	settings, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "./data/geocaching.db", settings.Database.Path)
	assert.Equal(t, 8080, settings.Server.Port)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, "text", settings.Log.Format)
	assert.InDelta(t, 57.719021, settings.Map.Latitude, 1e-9)
	assert.InDelta(t, 11.991202, settings.Map.Longitude, 1e-9)
	assert.Equal(t, 12, settings.Map.Zoom)
	assert.Equal(t, 30*time.Minute, settings.Session.TTL)
	assert.Empty(t, settings.Auth.Secret)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GEOCACHING_SERVER_PORT", "9090")
	t.Setenv("GEOCACHING_SESSION_TTL", "5m")
	t.Setenv("GEOCACHING_AUTH_SECRET", "s3cret")

	settings, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, 9090, settings.Server.Port)
	assert.Equal(t, 5*time.Minute, settings.Session.TTL)
	assert.Equal(t, "s3cret", settings.Auth.Secret)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocaching.yaml")
	content := "database:\n  path: /tmp/other.db\nmap:\n  zoom: 15\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", settings.Database.Path)
	assert.Equal(t, 15, settings.Map.Zoom)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, 8080, settings.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("GEOCACHING_SERVER_PORT", "70000")
	t.Setenv("GEOCACHING_LOG_LEVEL", "loud")
	t.Setenv("GEOCACHING_LOG_FORMAT", "xml")

	_, err := Load(New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
