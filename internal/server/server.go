// Package server provides the HTTP API for queries, reports, and builder
// sessions.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/reportal-io/reportal/internal/catalog"
	"github.com/reportal-io/reportal/internal/query"
	"github.com/reportal-io/reportal/internal/report"
)

// Server is the HTTP API server.
type Server struct {
	query        *query.Service
	catalog      *catalog.Catalog
	store        report.Store
	sessionStore *sessions.CookieStore
	builders     *builderRegistry
	host         string
	port         int
	logger       *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Query         *query.Service
	Catalog       *catalog.Catalog
	Store         report.Store
	Host          string
	Port          int
	SessionSecret string
	Logger        *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		query:        cfg.Query,
		catalog:      cfg.Catalog,
		store:        cfg.Store,
		sessionStore: sessionStore,
		builders:     newBuilderRegistry(),
		host:         cfg.Host,
		port:         cfg.Port,
		logger:       logger,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{table}/columns", s.handleListColumns)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Post("/", s.handleCreateReport)
			r.Post("/execute", s.handleExecuteReport)
			r.Get("/{id}", s.handleGetReport)
			r.Put("/{id}", s.handleUpdateReport)
			r.Delete("/{id}", s.handleDeleteReport)
		})

		r.Post("/charts/evaluate", s.handleEvaluateChart)

		r.Route("/builder", func(r chi.Router) {
			r.Get("/", s.handleBuilderState)
			r.Post("/actions", s.handleBuilderAction)
			r.Post("/preview", s.handleBuilderPreview)
			r.Post("/save", s.handleBuilderSave)
			r.Post("/load/{id}", s.handleBuilderLoad)
			r.Delete("/", s.handleBuilderClose)
		})
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting api server", "addr", fmt.Sprintf("http://%s", addr))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down api server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
