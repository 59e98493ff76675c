package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NEKOS_DB_DRIVER", "sqlite3")
	t.Setenv("NEKOS_DB_DSN", "file:nekos.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "2.0.0-alpha", cfg.API.Version)
	assert.Equal(t, 3, cfg.RateLimit.API.Rate)
	assert.Equal(t, time.Second, cfg.RateLimit.API.Window)
	assert.Equal(t, "api", cfg.RateLimit.API.Group)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.CleanupInterval)
	assert.Equal(t, time.Hour, cfg.RateLimit.IdleTTL)
	assert.Equal(t, []string{"https://nekosapi.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Apply.OnStart)
	assert.Equal(t, 100, cfg.Registry.PageSize)
	assert.Equal(t, cfg.DB, cfg.Target)
	assert.True(t, cfg.SameDatabase())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: postgres
  dsn: postgres://localhost/registry
target:
  driver: pgx
  dsn: postgres://localhost/app
ratelimit:
  api: 100/m
apply:
  on_start: true
`), 0o600))
	// Environment wins over the file.
	t.Setenv("NEKOS_HTTP_ADDR", ":9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, Database{Driver: "pgx", DSN: "postgres://localhost/app"}, cfg.Target)
	assert.False(t, cfg.SameDatabase())
	assert.Equal(t, 100, cfg.RateLimit.API.Rate)
	assert.Equal(t, time.Minute, cfg.RateLimit.API.Window)
	assert.True(t, cfg.Apply.OnStart)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing driver", map[string]string{"NEKOS_DB_DSN": "x"}},
		{"unknown driver", map[string]string{"NEKOS_DB_DRIVER": "oracle", "NEKOS_DB_DSN": "x"}},
		{"missing dsn", map[string]string{"NEKOS_DB_DRIVER": "sqlite3"}},
		{"bad rate", map[string]string{"NEKOS_DB_DRIVER": "sqlite3", "NEKOS_DB_DSN": "x", "NEKOS_RATELIMIT_API": "fast"}},
		{"bad duration", map[string]string{"NEKOS_DB_DRIVER": "sqlite3", "NEKOS_DB_DSN": "x", "NEKOS_RATELIMIT_IDLE_TTL": "soon"}},
		{"target without dsn", map[string]string{"NEKOS_DB_DRIVER": "sqlite3", "NEKOS_DB_DSN": "x", "NEKOS_TARGET_DRIVER": "mysql"}},
		{"bad page size", map[string]string{"NEKOS_DB_DRIVER": "sqlite3", "NEKOS_DB_DSN": "x", "NEKOS_REGISTRY_PAGE_SIZE": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
