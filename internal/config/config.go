// Package config loads the gate configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/database"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/gate"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/logging"
	redisstore "github.com/Shivanand-hulikatti/stadium-gate/internal/repository/redis"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full deployment configuration.
type Config struct {
	Gate     gate.Config       `yaml:"gate"`
	Protocol access.Config     `yaml:"protocol"`
	Ticket   TicketConfig      `yaml:"ticket"`
	Store    StoreConfig       `yaml:"store"`
	Postgres database.Config   `yaml:"postgres"`
	Redis    redisstore.Config `yaml:"redis"`
	Admin    AdminConfig       `yaml:"admin"`
	Log      logging.Config    `yaml:"log"`
}

// TicketConfig selects the code policy and admission window.
type TicketConfig struct {
	Policy string              `yaml:"policy"`
	Window ticket.WindowConfig `yaml:"window"`
}

// StoreConfig selects the identity store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Fixtures is loaded into the store at startup when set.
	Fixtures string `yaml:"fixtures"`
}

// AdminConfig holds the HTTP admin listener settings. An empty address
// disables it.
type AdminConfig struct {
	Address string `yaml:"address"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Gate:     gate.DefaultConfig(),
		Protocol: access.DefaultConfig(),
		Ticket: TicketConfig{
			Policy: string(ticket.PolicyStructured),
			Window: ticket.DefaultWindowConfig(),
		},
		Store:    StoreConfig{Backend: BackendMemory},
		Postgres: database.DefaultConfig(),
		Redis:    redisstore.DefaultConfig(),
		Admin:    AdminConfig{Address: ":8080"},
		Log:      logging.DefaultConfig(),
	}
}

// Load reads filename over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides settings from the environment. The DB_* names match
// the ones the database tooling already uses.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("GATE_ADDR", &cfg.Gate.Address)
	str("ADMIN_ADDR", &cfg.Admin.Address)
	str("STORE_BACKEND", &cfg.Store.Backend)
	str("STORE_FIXTURES", &cfg.Store.Fixtures)
	str("TICKET_POLICY", &cfg.Ticket.Policy)
	str("WINDOW_POLICY", &cfg.Ticket.Window.Policy)
	str("REDIS_URL", &cfg.Redis.URL)
	str("DB_HOST", &cfg.Postgres.Host)
	str("DB_PORT", &cfg.Postgres.Port)
	str("DB_USER", &cfg.Postgres.User)
	str("DB_PASSWORD", &cfg.Postgres.Password)
	str("DB_NAME", &cfg.Postgres.DBName)
	str("DB_SSLMODE", &cfg.Postgres.SSLMode)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)

	if v := getenv("SECRET_MODE"); v != "" {
		cfg.Protocol.Secret = access.SecretMode(v)
	}
	if v := getenv("TEAM_BINDING"); v != "" {
		cfg.Protocol.TeamBinding = v == "true"
	}
	if v := getenv("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_ATTEMPTS: %w", err)
		}
		cfg.Protocol.MaxAttempts = n
	}

	for key, dst := range map[string]*time.Duration{
		"GATE_IDLE_TIMEOUT": &cfg.Gate.IdleTimeout,
		"WINDOW_TOLERANCE":  &cfg.Ticket.Window.Tolerance,
		"WINDOW_BEFORE":     &cfg.Ticket.Window.Before,
		"WINDOW_AFTER":      &cfg.Ticket.Window.After,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if err := c.Protocol.Validate(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if _, err := ticket.ParsePolicy(c.Ticket.Policy); err != nil {
		return fmt.Errorf("ticket: %w", err)
	}
	if _, err := ticket.NewWindow(c.Ticket.Window); err != nil {
		return fmt.Errorf("ticket window: %w", err)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Gate.Address == "" {
		return errors.New("gate: address is required")
	}
	return nil
}
