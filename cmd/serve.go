package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/clock"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/gate"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/handler"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/metrics"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/service"
	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept gate terminal connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── 1. Connect the identity store ────────────────────────────────────
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	logger.Info("identity store ready", zap.String("backend", cfg.Store.Backend))

	if cfg.Store.Fixtures != "" {
		f, err := seedStore(ctx, store, cfg.Store.Fixtures)
		if err != nil {
			return err
		}
		logger.Info("fixtures loaded",
			zap.String("path", cfg.Store.Fixtures),
			zap.Int("players", len(f.Players)),
			zap.Int("tickets", len(f.Tickets)),
		)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	policy, err := ticket.ParsePolicy(cfg.Ticket.Policy)
	if err != nil {
		return err
	}
	window, err := ticket.NewWindow(cfg.Ticket.Window)
	if err != nil {
		return err
	}
	clk := clock.New()
	validator := ticket.NewValidator(store, policy, window, clk, logger.Named("ticket"))

	protocol, err := access.New(cfg.Protocol, store, validator, clk, logger.Named("access"), m)
	if err != nil {
		return err
	}
	logger.Info("access protocol configured",
		zap.String("secret", string(cfg.Protocol.Secret)),
		zap.Bool("team_binding", cfg.Protocol.TeamBinding),
		zap.Int("max_attempts", cfg.Protocol.MaxAttempts),
		zap.String("ticket_policy", string(policy)),
		zap.Stringer("window", window),
	)

	gateServer := gate.NewServer(cfg.Gate, protocol, logger.Named("gate"), m)

	// ── 3. Run gate and admin listeners until a signal arrives ───────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gateServer.ListenAndServe(gctx)
	})

	if cfg.Admin.Address != "" {
		adminHandler := handler.NewAdminHandler(service.NewAdminService(store))
		srv := &http.Server{
			Addr:         cfg.Admin.Address,
			Handler:      handler.NewRouter(adminHandler, registry, logger.Named("admin")),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			logger.Info("admin listening", zap.String("addr", cfg.Admin.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
