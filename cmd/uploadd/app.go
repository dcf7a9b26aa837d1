package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/uploadq/internal/api"
	"github.com/phrazzld/uploadq/internal/auth"
	"github.com/phrazzld/uploadq/internal/config"
	"github.com/phrazzld/uploadq/internal/events"
	"github.com/phrazzld/uploadq/internal/history"
	"github.com/phrazzld/uploadq/internal/notify"
	"github.com/phrazzld/uploadq/internal/transport/httpupload"
	"github.com/phrazzld/uploadq/internal/upload"
	"github.com/phrazzld/uploadq/internal/watch"
)

// brokerDialTimeout bounds how long startup waits for the broker
const brokerDialTimeout = 30 * time.Second

// application holds the daemon's dependencies so they can be shut down together.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when history is kept in memory
	db *sql.DB

	queue     *upload.Queue
	tokens    *auth.TokenSource
	transport *httpupload.Client
	emitter   *events.InMemoryEventEmitter
	history   history.Store
	bridge    *events.Bridge

	// Optional components, nil when not configured
	publisher *notify.Publisher
	watcher   *watch.Watcher
}

// newApplication wires the queue, transport, event handlers and optional
// integrations described by cfg.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.tokens, err = auth.NewTokenSource(cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token source: %w", err)
	}

	app.transport, err = httpupload.NewClient(logger, cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload transport: %w", err)
	}

	app.queue = upload.NewQueue(upload.QueueConfig{
		AbortPolicy: upload.AbortPolicy(cfg.Queue.AbortPolicy),
	}, logger)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(events.NewLogHandler(logger))

	if err := app.setupHistory(ctx); err != nil {
		app.cleanup()
		return nil, err
	}
	app.emitter.RegisterHandler(history.NewRecorder(app.history))

	if cfg.Broker.URL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, brokerDialTimeout)
		app.publisher, err = notify.Dial(dialCtx, cfg.Broker, logger)
		cancel()
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to connect to broker: %w", err)
		}
		app.emitter.RegisterHandler(app.publisher)
		logger.Info("Broker notifications enabled", "exchange", cfg.Broker.Exchange)
	}

	app.bridge = events.NewBridge(app.queue, app.emitter, app.transport.Upload, logger,
		events.WithBeforeUpload(app.tokens.BeforeUpload))

	if cfg.Watch.Dir != "" {
		app.watcher, err = watch.New(cfg.Watch.Dir, app.bridge, cfg.Watch.Debounce, logger)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize spool watcher: %w", err)
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupHistory opens and migrates the history database when one is
// configured and falls back to an in-memory store otherwise.
func (app *application) setupHistory(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.history = history.NewMemoryStore(history.MaxListLimit)
		app.logger.Info("Upload history kept in memory")
		return nil
	}

	db, err := history.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	app.db = db

	if err := history.Migrate(ctx, db, app.logger); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}

	app.history = history.NewPostgresStore(db, app.logger)
	app.logger.Info("Upload history stored in database")
	return nil
}

// uploadHandler builds the control API handler
func (app *application) uploadHandler() *api.UploadHandler {
	return api.NewUploadHandler(app.bridge, app.queue, app.history, app.logger)
}

// Run starts the optional spool watcher and serves the control API until
// shutdown.
func (app *application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.watcher != nil {
		go func() {
			if err := app.watcher.Run(ctx); err != nil {
				app.logger.Error("Spool watcher failed", "error", err)
			}
		}()
	}

	handler := api.NewRouter(app.uploadHandler(), app.tokens, app.logger)
	if err := app.startHTTPServer(ctx, handler); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup aborts outstanding uploads and releases external resources.
func (app *application) cleanup() {
	if app.queue != nil {
		pending := app.queue.Snapshot()
		for _, info := range pending {
			app.queue.Abort(info.ID)
		}
		if len(pending) > 0 {
			app.logger.Info("Aborted outstanding uploads", "task_count", len(pending))
		}
	}

	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("Error closing broker connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
