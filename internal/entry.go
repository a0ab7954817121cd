// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/runeport/internal/api"
	"github.com/starford/runeport/internal/assets"
	"github.com/starford/runeport/internal/catalog"
	"github.com/starford/runeport/internal/convert"
	"github.com/starford/runeport/internal/mcpserver"
	"github.com/starford/runeport/internal/source"
	"github.com/starford/runeport/internal/sse"
	"github.com/starford/runeport/internal/storage"
)

// environment bundles everything a run mode needs.
type environment struct {
	cfg    *Config
	logger *slog.Logger
	srcFS  *storage.FS
	destFS *storage.FS
	cat    catalog.Catalog
	runner *convert.Runner
}

func (e *environment) close() {
	if e.cat != nil {
		if err := e.cat.Close(); err != nil {
			e.logger.Warn("close catalog", slog.String("error", err.Error()))
		}
	}
}

func newEnvironment(opts ...Option) (*environment, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source_path", cfg.Source.Path),
		slog.String("vault_path", cfg.Dest.Path),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Dest.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	srcFS, err := storage.NewFS(cfg.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("init source tree: %w", err)
	}
	destFS, err := storage.NewFS(cfg.Dest.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	var cat catalog.Catalog
	if cfg.Catalog.Path != "" {
		db, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w", err)
		}
		cat = db
	}

	// Index every non-document file in the export tree for image lookup.
	paths, err := srcFS.List("")
	if err != nil {
		return nil, fmt.Errorf("scan source tree: %w", err)
	}
	locator := source.NewAssetLocator(paths)

	var fetcher *assets.Fetcher
	if cfg.Assets.DownloadRemote {
		fetcher = assets.NewFetcher(cfg.Assets.BaseURL)
	}

	store, err := assets.NewStore(srcFS, destFS, locator, cfg.Dest.ResourceDir, cfg.Source.ImageSearchPattern, fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("init asset store: %w", err)
	}

	loader := source.NewLoader(srcFS, logger)

	runner := convert.NewRunner(convert.Options{
		ContentTags:   cfg.Convert.ContentTags,
		Fields:        cfg.Convert.Fields,
		AttemptBBCode: cfg.Convert.AttemptBBCode,
		Flatten:       cfg.Dest.Flatten,
		Workers:       cfg.Convert.Workers,
	}, srcFS, destFS, loader, store, cat, logger)

	return &environment{
		cfg:    cfg,
		logger: logger,
		srcFS:  srcFS,
		destFS: destFS,
		cat:    cat,
		runner: runner,
	}, nil
}

// RunConvert performs a single conversion pass and exits.
func RunConvert(ctx context.Context, opts ...Option) error {
	env, err := newEnvironment(opts...)
	if err != nil {
		return err
	}
	defer env.close()

	report, err := env.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("conversion finished with %d failed documents", len(report.Failed))
	}
	return nil
}

// RunMCP exposes the converted vault and its catalog to MCP clients over
// stdio. The vault must have been converted beforehand.
func RunMCP(ctx context.Context, opts ...Option) error {
	env, err := newEnvironment(opts...)
	if err != nil {
		return err
	}
	defer env.close()

	if env.cat == nil {
		return fmt.Errorf("mcp mode requires a catalog path")
	}

	srv := mcpserver.New(env.destFS, env.cat)
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// RunServe performs an initial conversion, then watches the export tree and
// serves the preview API until the context is cancelled or a shutdown signal
// arrives.
func RunServe(ctx context.Context, opts ...Option) error {
	env, err := newEnvironment(opts...)
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	logger := env.logger

	if env.cat == nil {
		return fmt.Errorf("serve mode requires a catalog path")
	}

	// SSE broker for live vault reloads.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API service and router.
	svc := api.NewService(env.destFS, env.cat)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		http.HandlerFunc(broker.ServeHTTP), env.destFS.Root(), cfg.Dest.ResourceDir)

	// Initial conversion before the server comes up.
	report, err := env.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("initial conversion failed: %w", err)
	}
	svc.SetReport(report)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the export tree and reconvert on changes.
	g.Go(func() error {
		err := env.runner.Watch(gCtx, env.srcFS.Root(), func(rep *convert.Report) {
			svc.SetReport(rep)
			broker.PublishRun(rep.Converted, len(rep.Failed))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
