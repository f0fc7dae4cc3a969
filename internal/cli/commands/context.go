// Package commands implements the reportal subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reportal-io/reportal/internal/catalog"
	"github.com/reportal-io/reportal/internal/config"
	"github.com/reportal-io/reportal/internal/interpret"
	"github.com/reportal-io/reportal/internal/llm"
	"github.com/reportal-io/reportal/internal/nl2sql"
	"github.com/reportal-io/reportal/internal/query"
	"github.com/reportal-io/reportal/internal/source"
	"github.com/reportal-io/reportal/internal/state"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom retrieves the loaded config from the context.
func ConfigFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return nil
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger from the context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// requireConfig returns the config from the context or an error when the
// root command did not load one.
func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFrom(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// services bundles the wired collaborators a command needs.
type services struct {
	Source  source.Source
	Catalog *catalog.Catalog
	Query   *query.Service
	Store   *state.SQLiteStore
}

// Close releases held connections.
func (s *services) Close() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
	if s.Source != nil {
		_ = s.Source.Close()
	}
}

// buildServices connects the data source, migrates the report store, and
// wires the query pipeline. The interpreter is attached only when an LLM api
// key is configured so queries keep working without one.
func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	srcCfg := cfg.Source
	if srcCfg.MaxRows == 0 {
		srcCfg.MaxRows = cfg.MaxResultSize
	}
	src, err := source.Open(ctx, srcCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data source: %w", err)
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		_ = src.Close()
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		_ = src.Close()
		return nil, err
	}

	cat := catalog.New(src, logger)

	client, err := llm.New(cfg.LLM)
	if err != nil {
		_ = store.Close()
		_ = src.Close()
		return nil, err
	}
	translator := nl2sql.New(client, cat, logger)

	var interpreter query.Interpreter
	if cfg.LLM.APIKey != "" {
		interpreter = interpret.New(client, logger)
	}

	svc := query.New(src, translator, interpreter, cfg.MaxResultSize, logger)
	return &services{Source: src, Catalog: cat, Query: svc, Store: store}, nil
}
