package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/maestro-api/maestro/internal/config"
	"github.com/maestro-api/maestro/internal/events"
	"github.com/maestro-api/maestro/internal/interpreter"
	"github.com/maestro-api/maestro/internal/orchestrator"
	"github.com/maestro-api/maestro/internal/platform/gemini"
	"github.com/maestro-api/maestro/internal/platform/postgres"
	"github.com/maestro-api/maestro/internal/router"
	"github.com/maestro-api/maestro/internal/store"
	"github.com/maestro-api/maestro/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore         store.TaskStore
	conversationStore store.ConversationStore

	// Pipeline components
	interpreter   interpreter.Interpreter
	serviceRouter *router.ServiceRouter
	queue         *task.PriorityQueue
	pool          *task.DispatchPool
	eventEmitter  events.EventEmitter
	orchestrator  *orchestrator.Orchestrator
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.conversationStore = postgres.NewPostgresConversationStore(db, logger)

	// Create the command interpreter
	var err error
	app.interpreter, err = gemini.NewCommandInterpreter(
		ctx,
		logger.With("component", "command_interpreter"),
		cfg.Interpreter,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize command interpreter: %w", err)
	}
	logger.Info("Command interpreter initialized",
		"model", cfg.Interpreter.ModelName)

	// Initialize the service router over the configured downstream services
	app.serviceRouter = router.NewServiceRouter(cfg.Services, logger)

	// Initialize the queue and dispatch pool
	app.queue = task.NewPriorityQueue(app.taskStore, logger)
	app.pool = task.NewDispatchPool(app.queue, app.taskStore, app.serviceRouter, task.DispatchPoolConfig{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		PollInterval:  time.Duration(cfg.Queue.PollIntervalMillis) * time.Millisecond,
	}, logger)

	// Initialize the event emitter and register the conversation audit handler
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewConversationLogHandler(app.conversationStore, logger))
	app.eventEmitter = emitter

	// Wire the orchestrator over the assembled components
	app.orchestrator = orchestrator.New(
		app.interpreter,
		app.taskStore,
		app.conversationStore,
		app.queue,
		app.pool,
		app.serviceRouter,
		app.eventEmitter,
		orchestrator.Config{MinConfidence: cfg.Interpreter.MinConfidence},
		logger,
	)

	if err := app.orchestrator.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start orchestrator: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.orchestrator != nil {
		if err := app.orchestrator.Stop(); err != nil {
			app.logger.Error("Error stopping orchestrator", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
