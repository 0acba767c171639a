// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/zap/internal/api"
	"github.com/starford/zap/internal/index"
	"github.com/starford/zap/internal/mcpserver"
	"github.com/starford/zap/internal/noteservice"
	"github.com/starford/zap/internal/reminder"
	"github.com/starford/zap/internal/session"
	"github.com/starford/zap/internal/sse"
	"github.com/starford/zap/internal/storage"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("reminders", cfg.Reminders.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	sched := reminder.New(reminder.NotifierFunc(func(ctx context.Context, n reminder.Notification) error {
		logger.Info("reminder fired",
			slog.String("note_id", n.NoteID),
			slog.String("body", n.Body))
		return broker.Notify(ctx, n)
	}),
		reminder.WithTitle(cfg.Reminders.Title),
		reminder.WithEnabled(cfg.Reminders.Enabled),
		reminder.WithLogger(logger),
	)
	defer sched.Close()

	var sessions *session.Manager
	svc := noteservice.NewService(store, db,
		noteservice.WithReminders(sched),
		noteservice.WithLogger(logger),
		noteservice.WithHook(broker.PublishNoteEvent),
		noteservice.WithHook(func(kind, id string) { sessions.NoteChanged(kind, id) }),
	)
	sessions = session.NewManager(svc,
		session.WithScheduler(sched),
		session.WithLogger(logger),
	)

	if cfg.Daily.AutoCreate {
		ensureDaily(ctx, svc, logger)
	}

	apiRouter := api.NewRouter(svc, sessions, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// External edits to vault files reach SSE clients, open sessions and
	// pending reminders.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, id string) {
			broker.PublishNoteEvent(kind, id)
			sessions.NoteChanged(kind, id)
			if kind == index.EventDeleted {
				sched.CancelNote(id)
			}
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams end when the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	store, db, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(watchCtx, db, store, cfg.Vault.Path, logger, nil); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	svc := noteservice.NewService(store, db, noteservice.WithLogger(logger))
	logger.Info("MCP server starting", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(svc).ServeStdio()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openVault prepares the vault directory and brings the index up to date.
func openVault(cfg *Config, logger *slog.Logger) (storage.Provider, *index.DB, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

func ensureDaily(ctx context.Context, svc *noteservice.Service, logger *slog.Logger) {
	n, created, err := svc.Daily(ctx, time.Now())
	if err != nil {
		logger.Warn("daily note", slog.String("error", err.Error()))
		return
	}
	if created {
		logger.Info("daily note created", slog.String("note_id", n.ID))
	}
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
