package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/config"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/database"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/logging"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/repository/memory"
	redisstore "github.com/Shivanand-hulikatti/stadium-gate/internal/repository/redis"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

// loadConfig reads the config file and builds the process logger.
func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresStore(pool), nil
	case config.BackendRedis:
		return redisstore.New(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// seedStore loads a fixtures file into store, issuing codes for tickets
// that have none.
func seedStore(ctx context.Context, store repository.Store, path string) (*repository.Fixtures, error) {
	seeder, ok := store.(repository.Seeder)
	if !ok {
		return nil, errors.New("store backend does not support seeding")
	}
	fixtures, err := repository.LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	if err := ticket.IssueMissing(fixtures.Tickets); err != nil {
		return nil, fmt.Errorf("issue tickets: %w", err)
	}
	if err := fixtures.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	if err := seeder.Seed(ctx, fixtures); err != nil {
		return nil, err
	}
	return fixtures, nil
}
