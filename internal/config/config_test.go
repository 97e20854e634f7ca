package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tablefit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoad_FileAndDefaults verifies that a YAML file overrides defaults
// and unset keys keep them.
func TestLoad_FileAndDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
server:
  addr: ":9090"
postgres:
  dsn: postgres://localhost/tablefit
places:
  google:
    api_key: g-key
llm:
  enabled: true
  provider: anthropic
  api_key: a-key
  model: claude-3-5-haiku-latest
  timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres://localhost/tablefit", cfg.Postgres.DSN)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, "default", cfg.Plan.Builtin)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Redis.Addr, "the cache is off by default.")
}

// TestLoad_EnvOverrides verifies TABLEFIT_* variables beat the file.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
postgres:
  dsn: postgres://file/db
places:
  google:
    api_key: g-key
`)
	t.Setenv("TABLEFIT_POSTGRES_DSN", "postgres://env/db")
	t.Setenv("TABLEFIT_REDIS_ADDR", "localhost:6379")
	t.Setenv("TABLEFIT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Postgres.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoad_DotEnv verifies that a .env file in the working directory is
// read.
func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("TABLEFIT_POSTGRES_DSN=postgres://dotenv/db\nTABLEFIT_PLACES_GOOGLE_API_KEY=dotenv-key\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("TABLEFIT_POSTGRES_DSN")
		_ = os.Unsetenv("TABLEFIT_PLACES_GOOGLE_API_KEY")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.Postgres.DSN)
	assert.Equal(t, "dotenv-key", cfg.Places.Google.APIKey)
}

// TestLoad_Invalid verifies that validation failures are config errors.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing dsn", body: "places:\n  google:\n    api_key: k\n"},
		{name: "missing google key", body: "postgres:\n  dsn: postgres://x\n"},
		{
			name: "llm enabled without key",
			body: "postgres:\n  dsn: postgres://x\nplaces:\n  google:\n    api_key: k\nllm:\n  enabled: true\n",
		},
		{
			name: "bad log format",
			body: "postgres:\n  dsn: postgres://x\nplaces:\n  google:\n    api_key: k\nlog:\n  format: xml\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := Load(writeConfig(t, tt.body))
			var cfgErr *ports.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}
}

// TestLoad_MissingFile verifies that an explicit path must exist.
func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	var cfgErr *ports.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
