package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/sqlgym/internal/api"
	"github.com/terra-clan/sqlgym/internal/auth"
	"github.com/terra-clan/sqlgym/internal/cache"
	"github.com/terra-clan/sqlgym/internal/catalog"
	"github.com/terra-clan/sqlgym/internal/cleanup"
	"github.com/terra-clan/sqlgym/internal/config"
	"github.com/terra-clan/sqlgym/internal/filestore"
	"github.com/terra-clan/sqlgym/internal/sandbox"
	"github.com/terra-clan/sqlgym/internal/solving"
	"github.com/terra-clan/sqlgym/internal/storage"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run database migrations
	slog.Info("running migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	// Optional Redis cache; a nil cache degrades to direct lookups
	var cacheClient *cache.Cache
	if cfg.Redis.Enabled {
		cacheClient, err = cache.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer cacheClient.Close()
	}

	templates, err := filestore.NewDir(cfg.Storage.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to open templates dir: %w", err)
	}
	sandboxDir, err := filestore.NewDir(cfg.Storage.SandboxDir)
	if err != nil {
		return fmt.Errorf("failed to open sandbox dir: %w", err)
	}
	avatars, err := filestore.NewDir(cfg.Storage.AvatarsDir)
	if err != nil {
		return fmt.Errorf("failed to open avatars dir: %w", err)
	}

	cat := catalog.New(repo, templates, cacheClient)
	if cfg.Seed.Dir != "" {
		if err := cat.SeedFromDir(ctx, cfg.Seed.Dir); err != nil {
			slog.Warn("task seeding failed", "dir", cfg.Seed.Dir, "error", err)
		}
	}

	sandboxes := sandbox.NewStore(templates, sandboxDir)
	solver := solving.NewManager(repo, cat, sandboxes, cacheClient)
	authService := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	cleaner := cleanup.New(repo, sandboxes, cfg.Cleanup.Interval, cfg.Cleanup.Retention)
	cleaner.Start(ctx)
	defer cleaner.Stop()

	server := api.NewServer(cfg.Server, repo, cat, solver, authService, avatars)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
