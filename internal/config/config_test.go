package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvBackend, EnvPath, EnvSQLiteDriver, EnvHost, EnvPort, EnvDBName, EnvUser,
		EnvPassword, EnvSSLMode, EnvConnectTimeout, EnvLogLevel, EnvLogFormat,
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, store.BackendEmbedded, cfg.Store.Backend)
	assert.Equal(t, "internal_db.db", cfg.Store.Path)
	assert.Equal(t, store.DriverMattn, cfg.Store.Driver)
	assert.Equal(t, 5432, cfg.Store.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.Store.Validate())
}

func TestLoad_LegacyFileSelectsNetworked(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("testdata", "legacy_db_config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, store.BackendNetworked, cfg.Store.Backend)
	assert.Equal(t, "classifications", cfg.Store.DBName)
	assert.Equal(t, "extractor", cfg.Store.User)
	assert.Equal(t, "db.example.org", cfg.Store.Host)
	assert.Equal(t, "s3cr3t", cfg.Store.Password)
	assert.Equal(t, 5433, cfg.Store.Port)
	assert.Equal(t, store.DefaultSSLMode, cfg.Store.SSLMode)
	assert.NoError(t, cfg.Store.Validate())
}

func TestLoad_EmbeddedFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("testdata", "embedded.yaml"))
	require.NoError(t, err)

	assert.Equal(t, store.BackendEmbedded, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/noun-cache/cache.db", cfg.Store.Path)
	assert.Equal(t, store.DriverModernc, cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHost, "pg.internal")
	t.Setenv(EnvPort, "6432")
	t.Setenv(EnvConnectTimeout, "2")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(filepath.Join("testdata", "legacy_db_config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pg.internal", cfg.Store.Host)
	assert.Equal(t, 6432, cfg.Store.Port)
	assert.Equal(t, 2*time.Second, cfg.Store.ConnectTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	// Untouched file values survive.
	assert.Equal(t, "classifications", cfg.Store.DBName)
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvBackend, "embedded")
	t.Setenv(EnvPath, "/tmp/cache.db")
	t.Setenv(EnvSQLiteDriver, "sqlite")
	t.Setenv(EnvConnectTimeout, "1500ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cache.db", cfg.Store.Path)
	assert.Equal(t, store.DriverModernc, cfg.Store.Driver)
	assert.Equal(t, 1500*time.Millisecond, cfg.Store.ConnectTimeout)
}

func TestLoad_MissingFileIsBackendUnavailable(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "db_config.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrBackendUnavailable)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		env  map[string]string
	}{
		{name: "unknown key", path: filepath.Join("testdata", "typo.yaml")},
		{name: "bad port", env: map[string]string{EnvPort: "five"}},
		{name: "bad timeout", env: map[string]string{EnvConnectTimeout: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.NotErrorIs(t, err, store.ErrBackendUnavailable)
		})
	}
}
