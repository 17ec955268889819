package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":11000", cfg.Gate.Address)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, access.SecretBirthDate, cfg.Protocol.Secret)
	assert.Equal(t, 2, cfg.Protocol.MaxAttempts)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envMap(map[string]string{
		"GATE_ADDR":         ":12000",
		"STORE_BACKEND":     "postgres",
		"DB_HOST":           "db.internal",
		"DB_PASSWORD":       "hunter2",
		"REDIS_URL":         "redis://cache:6379/1",
		"SECRET_MODE":       "password",
		"TEAM_BINDING":      "false",
		"MAX_ATTEMPTS":      "3",
		"GATE_IDLE_TIMEOUT": "45s",
		"WINDOW_POLICY":     "asymmetric",
		"WINDOW_BEFORE":     "1h",
		"LOG_LEVEL":         "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":12000", cfg.Gate.Address)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, access.SecretPassword, cfg.Protocol.Secret)
	assert.False(t, cfg.Protocol.TeamBinding)
	assert.Equal(t, 3, cfg.Protocol.MaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.Gate.IdleTimeout)
	assert.Equal(t, "asymmetric", cfg.Ticket.Window.Policy)
	assert.Equal(t, time.Hour, cfg.Ticket.Window.Before)
	assert.Equal(t, 15*time.Minute, cfg.Ticket.Window.After)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	assert.Error(t, applyEnv(&cfg, envMap(map[string]string{"MAX_ATTEMPTS": "two"})))

	cfg = Default()
	assert.Error(t, applyEnv(&cfg, envMap(map[string]string{"WINDOW_TOLERANCE": "fifteen"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown secret mode", mutate: func(c *Config) { c.Protocol.Secret = "pin" }},
		{name: "zero attempts", mutate: func(c *Config) { c.Protocol.MaxAttempts = 0 }},
		{name: "unknown ticket policy", mutate: func(c *Config) { c.Ticket.Policy = "fuzzy" }},
		{name: "unknown window", mutate: func(c *Config) { c.Ticket.Window.Policy = "sliding" }},
		{name: "negative tolerance", mutate: func(c *Config) { c.Ticket.Window.Tolerance = -time.Minute }},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "sqlite" }},
		{name: "empty gate address", mutate: func(c *Config) { c.Gate.Address = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("GATE_ADDR", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("WINDOW_POLICY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gate:
  address: ":13000"
  idle_timeout: 30s
protocol:
  secret: password
  max_attempts: 3
ticket:
  policy: direct
  window:
    policy: asymmetric
    before: 45m
store:
  backend: redis
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":13000", cfg.Gate.Address)
	assert.Equal(t, 30*time.Second, cfg.Gate.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Gate.WriteTimeout)
	assert.Equal(t, access.SecretPassword, cfg.Protocol.Secret)
	assert.True(t, cfg.Protocol.TeamBinding)
	assert.Equal(t, "direct", cfg.Ticket.Policy)
	assert.Equal(t, 45*time.Minute, cfg.Ticket.Window.Before)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [backend"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
