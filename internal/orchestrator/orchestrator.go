// Package orchestrator wires command interpretation, task persistence,
// priority queueing, and the dispatch pool into one pipeline and exposes the
// operations the API surface needs: submit, status, cancel, queue status,
// service health, and task listing.
//
// An Orchestrator is constructed once at process start and passed by
// reference to request handlers; there is no package-level instance.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/events"
	"github.com/maestro-api/maestro/internal/interpreter"
	"github.com/maestro-api/maestro/internal/store"
	"github.com/maestro-api/maestro/internal/task"
)

// serviceCompatibility pins each task type to the downstream service allowed
// to execute it. TaskTypeGeneral is absent: it may target any service.
var serviceCompatibility = map[domain.TaskType]string{
	domain.TaskTypeBrowserAutomation:  "browser_service",
	domain.TaskTypeDocumentManagement: "document_service",
	domain.TaskTypeCommunication:      "communication_service",
	domain.TaskTypeMediaProcessing:    "media_service",
	domain.TaskTypeBotBuilder:         "bot_builder_service",
}

// HealthProber is the slice of the service router the orchestrator needs for
// the per-service health map.
type HealthProber interface {
	AvailableServices(ctx context.Context) map[string]bool
}

// SubmitRequest carries one natural-language command into the pipeline.
type SubmitRequest struct {
	Command        string
	UserID         *uuid.UUID
	ConversationID *uuid.UUID
	Context        map[string]any
}

// SubmitResult is returned to the caller after a command is accepted.
type SubmitResult struct {
	TaskID              uuid.UUID `json:"task_id"`
	Status              string    `json:"status"`
	Message             string    `json:"message"`
	EstimatedCompletion string    `json:"estimated_completion"`
}

// QueueStatus aggregates queue and store counters. The total_* counts come
// from the store, the source of truth, regardless of in-memory queue
// staleness.
type QueueStatus struct {
	QueueSize          int `json:"queue_size"`
	ActiveTasks        int `json:"active_tasks"`
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	TotalPending       int `json:"total_pending"`
	TotalProcessing    int `json:"total_processing"`
	TotalCompleted     int `json:"total_completed"`
	TotalFailed        int `json:"total_failed"`
}

// Config holds orchestrator-level tuning.
type Config struct {
	// MinConfidence is the interpreter confidence below which a command is
	// rejected. Zero falls back to 0.5.
	MinConfidence float64
}

// Orchestrator coordinates the full task pipeline.
type Orchestrator struct {
	interp        interpreter.Interpreter
	tasks         store.TaskStore
	conversations store.ConversationStore
	queue         *task.PriorityQueue
	pool          *task.DispatchPool
	prober        HealthProber
	emitter       events.EventEmitter
	config        Config
	logger        *slog.Logger
	running       bool
}

// New creates an Orchestrator over the given collaborators.
func New(
	interp interpreter.Interpreter,
	tasks store.TaskStore,
	conversations store.ConversationStore,
	queue *task.PriorityQueue,
	pool *task.DispatchPool,
	prober HealthProber,
	emitter events.EventEmitter,
	config Config,
	logger *slog.Logger,
) *Orchestrator {
	if config.MinConfidence <= 0 {
		config.MinConfidence = 0.5
	}

	return &Orchestrator{
		interp:        interp,
		tasks:         tasks,
		conversations: conversations,
		queue:         queue,
		pool:          pool,
		prober:        prober,
		emitter:       emitter,
		config:        config,
		logger:        logger.With("component", "orchestrator"),
	}
}

// Start reconciles the queue against the store and launches the dispatch
// pool's background loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if _, err := o.queue.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to reconcile queue: %w", err)
	}

	o.pool.Start()
	o.running = true
	o.logger.Info("orchestrator started")
	return nil
}

// Stop cancels the dispatch loop and waits for in-flight work to drain.
func (o *Orchestrator) Stop() error {
	if !o.running {
		return ErrNotRunning
	}

	o.pool.Stop()
	o.running = false
	o.logger.Info("orchestrator stopped")
	return nil
}

// SubmitCommand runs the submission pipeline: interpret, validate, persist,
// enqueue. Failures at any stage propagate synchronously and leave no task
// behind; in particular a task is never enqueued without being persisted.
func (o *Orchestrator) SubmitCommand(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	logger := o.logger.With("command", req.Command)
	logger.Info("processing command")

	cmd, err := o.interp.Interpret(ctx, req.Command, req.Context)
	if err != nil {
		logger.Error("command interpretation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInterpretation, err)
	}

	if err := o.validateCommand(cmd); err != nil {
		logger.Warn("interpreted command rejected", "error", err)
		return nil, err
	}

	newTask, err := domain.NewTask(
		cmd.Title,
		cmd.Description,
		req.Command,
		cmd.TaskType,
		cmd.Priority,
		cmd.TargetService,
		cmd.ServiceEndpoint,
		cmd.Parameters,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	newTask.UserID = req.UserID
	newTask.ConversationID = req.ConversationID

	if err := o.tasks.Create(ctx, newTask); err != nil {
		logger.Error("failed to persist task", "error", err)
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	o.queue.Enqueue(newTask)

	// Audit side effects ride on the event emitter; their failure never
	// fails a submission that is already persisted and enqueued.
	event := events.NewTaskSubmittedEvent(newTask.ID, req.Command, req.ConversationID)
	if err := o.emitter.EmitEvent(ctx, event); err != nil {
		logger.Warn("submit event handling failed", "error", err, "task_id", newTask.ID)
	}

	logger.Info("command accepted", "task_id", newTask.ID, "priority", newTask.Priority)

	return &SubmitResult{
		TaskID:              newTask.ID,
		Status:              "queued",
		Message:             fmt.Sprintf("Task '%s' has been queued for processing", cmd.Title),
		EstimatedCompletion: "2-5 minutes",
	}, nil
}

// validateCommand applies the semantic checks an interpreted command must
// pass before a task is created.
func (o *Orchestrator) validateCommand(cmd *interpreter.InterpretedCommand) error {
	if cmd.Title == "" || cmd.Description == "" {
		return fmt.Errorf("%w: title and description are required", ErrValidation)
	}

	if cmd.Confidence < o.config.MinConfidence {
		return fmt.Errorf("%w: confidence %.2f below minimum %.2f",
			ErrValidation, cmd.Confidence, o.config.MinConfidence)
	}

	if cmd.TargetService == "" {
		return fmt.Errorf("%w: target service is required", ErrValidation)
	}

	if expected, ok := serviceCompatibility[cmd.TaskType]; ok && cmd.TargetService != expected {
		return fmt.Errorf("%w: task type %s cannot target service %s",
			ErrValidation, cmd.TaskType, cmd.TargetService)
	}

	return nil
}

// TaskStatus reads a task straight through from the store.
// Returns store.ErrTaskNotFound for unknown ids.
func (o *Orchestrator) TaskStatus(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return o.tasks.GetByID(ctx, id)
}

// CancelTask cancels a pending task. Returns true when cancellation took
// effect; false when the task had already been claimed or finished. The
// store's status is the arbiter: a worker that persisted the processing
// transition first wins the race.
func (o *Orchestrator) CancelTask(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := o.tasks.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if err := current.MarkCancelled(); err != nil {
		o.logger.Debug("cancellation rejected", "task_id", id, "status", current.Status)
		return false, nil
	}

	if err := o.tasks.Update(ctx, current); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			o.logger.Debug("cancellation lost race to a worker claim", "task_id", id)
			return false, nil
		}
		return false, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	o.logger.Info("task cancelled", "task_id", id)
	return true, nil
}

// QueueStatus reports queue and execution counters, with per-status totals
// read from the store.
func (o *Orchestrator) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	status := &QueueStatus{
		QueueSize:          o.queue.Len(),
		ActiveTasks:        o.pool.ActiveCount(),
		MaxConcurrentTasks: o.pool.MaxConcurrent(),
	}

	counts := []struct {
		status domain.TaskStatus
		dest   *int
	}{
		{domain.TaskStatusPending, &status.TotalPending},
		{domain.TaskStatusProcessing, &status.TotalProcessing},
		{domain.TaskStatusCompleted, &status.TotalCompleted},
		{domain.TaskStatusFailed, &status.TotalFailed},
	}
	for _, c := range counts {
		n, err := o.tasks.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s tasks: %w", c.status, err)
		}
		*c.dest = n
	}

	return status, nil
}

// ListTasks returns tasks ordered by creation time descending, optionally
// filtered by status.
func (o *Orchestrator) ListTasks(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error) {
	return o.tasks.List(ctx, status, limit)
}

// ServiceHealth returns the per-service health map from a live probe sweep.
func (o *Orchestrator) ServiceHealth(ctx context.Context) map[string]bool {
	return o.prober.AvailableServices(ctx)
}

// CreateConversation starts a new conversation session.
func (o *Orchestrator) CreateConversation(ctx context.Context, userID *uuid.UUID, title string) (*domain.Conversation, error) {
	conversation := domain.NewConversation(userID, title)
	if err := o.conversations.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	o.logger.Info("conversation created", "conversation_id", conversation.ID)
	return conversation, nil
}

// ConversationHistory returns a conversation and its messages in order.
// Returns store.ErrConversationNotFound for unknown ids.
func (o *Orchestrator) ConversationHistory(ctx context.Context, id uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error) {
	conversation, err := o.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	messages, err := o.conversations.GetMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation messages: %w", err)
	}

	return conversation, messages, nil
}
