// Command urnpatch parses the region map of every configured worldspace,
// allocates region form IDs and stores the result in PostgreSQL (and,
// optionally, a Redis cell cache).
//
// Config path: config/urnpatch.yaml, overridable with URN_CONFIG
// (a .env file in the working directory is loaded first).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/udisondev/urnpatch/internal/cellcache"
	"github.com/udisondev/urnpatch/internal/config"
	"github.com/udisondev/urnpatch/internal/db"
	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/patcher"
	"github.com/udisondev/urnpatch/internal/world"
)

const ConfigPath = "config/urnpatch.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// .env необязателен
	_ = godotenv.Load(".env")

	cfgPath := ConfigPath
	if p := os.Getenv("URN_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadPatcher(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	slog.Info("urnpatch starting", "config", cfgPath, "plugin", cfg.PluginName, "worldspaces", len(cfg.Worldspaces))

	// Connect to database
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	repo := db.NewRegionRepository(database.Pool())
	sinks := []patcher.Sink{repo}

	if cfg.Redis.Enabled() {
		cache, err := cellcache.Open(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to cell cache: %w", err)
		}
		defer cache.Close() //nolint:errcheck
		sinks = append(sinks, cache)
		slog.Info("cell cache enabled", "addr", cfg.Redis.Addr)
	}

	// Регионы из прошлых прогонов сохраняют свои FormKey.
	alloc := world.NewFormIDAllocator(cfg.PluginName, 0)
	reserved, err := repo.ReserveFormKeys(ctx, alloc)
	if err != nil {
		return fmt.Errorf("reserving stored form keys: %w", err)
	}
	slog.Info("stored form keys reserved", "count", reserved, "next_form_id", fmt.Sprintf("%06X", alloc.Peek()))

	handlers, err := patcher.LoadHandlers(ctx, cfg.Worldspaces, alloc)
	if err != nil {
		return fmt.Errorf("loading region maps: %w", err)
	}

	registry := patcher.NewRegistry(sinks...)
	worldspaces := make([]model.FormKey, 0, len(handlers))
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return err
		}
		worldspaces = append(worldspaces, h.Worldspace())

		if cfg.Verbose {
			if err := patcher.WriteReport(os.Stdout, h); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
		}
	}

	processed, err := registry.Run(ctx, worldspaces)
	slog.Info("patch finished",
		"processed", processed,
		"worldspaces", len(worldspaces),
		"next_form_id", fmt.Sprintf("%06X", alloc.Peek()),
	)
	if err != nil {
		return fmt.Errorf("processing worldspaces: %w", err)
	}

	return nil
}
