package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/mhartmann/sortier/internal/audit"
	"github.com/mhartmann/sortier/internal/cache"
	"github.com/mhartmann/sortier/internal/common"
	"github.com/mhartmann/sortier/internal/config"
	"github.com/mhartmann/sortier/internal/engine"
	"github.com/mhartmann/sortier/internal/extract"
	"github.com/mhartmann/sortier/internal/fallback"
	"github.com/mhartmann/sortier/internal/storage"
)

// loadConfig builds the typed configuration from viper state.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openHistory opens and migrates the history database.
func openHistory(ctx context.Context, cfg *config.Config) (*storage.HistoryStore, error) {
	store, err := storage.NewHistoryStore(cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// buildPipeline assembles the full processing pipeline. The returned cleanup
// closes everything the pipeline opened.
func buildPipeline(ctx context.Context, cfg *config.Config) (*engine.Pipeline, func(), error) {
	patterns, err := config.LoadPatterns(cfg.PatternsPath)
	if err != nil {
		return nil, nil, common.NewUserError(
			fmt.Sprintf("failed to load extraction patterns from %s", cfg.PatternsPath), err)
	}

	history, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := history.Close(); err != nil {
			slog.Error("Failed to close history database", "error", err)
		}
	}

	deps := engine.Deps{
		Acquirer: extract.NewFileAcquirer(),
		Cache:    cache.NewStore(cfg.CacheDir),
		Stamper:  nil, // default copy stamper
		Audit:    audit.NewLogger(cfg.AuditCSVPath),
		History:  history,
	}

	if cfg.Fallback.Enabled {
		client, err := fallback.NewClient(cfg.Fallback)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create fallback client: %w", err)
		}
		deps.Fallback = fallback.NewMerger(client, cfg.Fallback)
	}

	return engine.New(cfg, patterns, deps), cleanup, nil
}
