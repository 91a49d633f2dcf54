package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

// Router defines the interface the dispatch pool uses to execute a claimed
// task against its downstream service. Implementations live in
// internal/router; the pool only needs the single call.
type Router interface {
	// Route resolves the task's target service, performs the downstream
	// call, and returns the service's result payload or an error.
	Route(ctx context.Context, task *domain.Task) (domain.Result, error)
}

// DispatchPoolConfig holds configuration options for the dispatch pool.
type DispatchPoolConfig struct {
	// MaxConcurrent is the global ceiling on tasks executing at once.
	// If zero or negative, defaults to 5.
	MaxConcurrent int

	// PollInterval is how long the scheduling loop sleeps when the queue is
	// empty or the pool is at capacity. If zero, defaults to one second.
	PollInterval time.Duration
}

// DefaultDispatchPoolConfig returns a DispatchPoolConfig with reasonable defaults.
func DefaultDispatchPoolConfig() DispatchPoolConfig {
	return DispatchPoolConfig{
		MaxConcurrent: 5,
		PollInterval:  time.Second,
	}
}

// DispatchPool claims pending tasks from the priority queue and executes them
// through the router, enforcing a global concurrency ceiling. A single
// background loop schedules work; each claimed task runs in its own
// goroutine. Errors inside one task never terminate the loop.
type DispatchPool struct {
	queue  *PriorityQueue
	store  store.TaskStore
	router Router
	config DispatchPoolConfig

	// active counts tasks currently handed to the router.
	active atomic.Int64

	// ctx is used for cancellation and shutdown signaling
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the scheduling loop and all in-flight task goroutines
	// for clean shutdown.
	wg sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	logger *slog.Logger
}

// NewDispatchPool creates a new dispatch pool. The pool is idle until Start
// is called.
func NewDispatchPool(
	queue *PriorityQueue,
	taskStore store.TaskStore,
	router Router,
	config DispatchPoolConfig,
	logger *slog.Logger,
) *DispatchPool {
	if config.MaxConcurrent <= 0 {
		logger.Warn("invalid max concurrent specified, using default",
			"specified", config.MaxConcurrent,
			"default", 5)
		config.MaxConcurrent = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &DispatchPool{
		queue:  queue,
		store:  taskStore,
		router: router,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "dispatch_pool"),
	}
}

// Start launches the background scheduling loop. Calling Start more than
// once has no effect.
func (p *DispatchPool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.scheduleLoop()
		p.logger.Info("dispatch pool started",
			"max_concurrent", p.config.MaxConcurrent,
			"poll_interval", p.config.PollInterval)
	})
}

// Stop cancels the scheduling loop and waits for it and any in-flight tasks
// to finish. Tasks already handed to the router run to completion; only the
// claiming of new work is cut off.
func (p *DispatchPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.logger.Info("dispatch pool stopped")
	})
}

// ActiveCount returns the number of tasks currently executing.
func (p *DispatchPool) ActiveCount() int {
	return int(p.active.Load())
}

// MaxConcurrent returns the configured concurrency ceiling.
func (p *DispatchPool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// scheduleLoop claims tasks while capacity allows, idling between attempts
// when the queue is empty or the pool is saturated.
func (p *DispatchPool) scheduleLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("scheduling loop stopping")
			return
		default:
		}

		if p.active.Load() >= int64(p.config.MaxConcurrent) {
			p.waitTick(ticker)
			continue
		}

		task, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			p.logger.Error("failed to dequeue task", "error", err)
			p.waitTick(ticker)
			continue
		}
		if task == nil {
			p.waitTick(ticker)
			continue
		}

		// Claim: the processing transition is persisted before the router
		// sees the task. The store update is a compare-and-set against
		// pending, so a cancellation persisted after Dequeue's revalidation
		// still makes the claim miss and the task never reaches the router.
		if err := p.claim(task); err != nil {
			if errors.Is(err, store.ErrStatusConflict) {
				p.logger.Debug("task no longer pending, skipping claim",
					"task_id", task.ID)
				continue
			}
			p.logger.Error("failed to claim task", "task_id", task.ID, "error", err)
			continue
		}

		p.active.Add(1)
		p.wg.Add(1)
		go p.execute(task)
	}
}

// waitTick blocks until the next poll tick or shutdown.
func (p *DispatchPool) waitTick(ticker *time.Ticker) {
	select {
	case <-p.ctx.Done():
	case <-ticker.C:
	}
}

// claim transitions the task to processing and persists the transition.
func (p *DispatchPool) claim(task *domain.Task) error {
	if err := task.MarkProcessing(); err != nil {
		return fmt.Errorf("cannot claim task in status %s: %w", task.Status, err)
	}
	if err := p.store.Update(p.ctx, task); err != nil {
		return fmt.Errorf("failed to persist processing status: %w", err)
	}
	return nil
}

// execute runs one claimed task to completion. Every failure mode, including
// a panicking router, is converted into a failed task update; nothing
// escapes to the scheduling loop.
func (p *DispatchPool) execute(task *domain.Task) {
	defer p.wg.Done()
	defer p.active.Add(-1)

	logger := p.logger.With("task_id", task.ID, "task_type", task.TaskType)

	// In-flight tasks run to completion even during shutdown, so execution
	// uses a fresh context rather than the pool's cancellable one.
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during task execution", "panic", r)
			p.finishFailed(ctx, task, fmt.Sprintf("panic during execution: %v", r), logger)
		}
	}()

	logger.Info("processing task", "target_service", task.TargetService)

	result, err := p.router.Route(ctx, task)
	if err != nil {
		logger.Error("task execution failed", "error", err)
		p.finishFailed(ctx, task, err.Error(), logger)
		return
	}

	if err := task.MarkCompleted(result); err != nil {
		logger.Error("failed to mark task completed", "error", err)
		return
	}
	if err := p.store.Update(ctx, task); err != nil {
		logger.Error("failed to persist completed status", "error", err)
		return
	}

	logger.Info("task completed successfully")
}

// finishFailed records a failure outcome, logging rather than propagating
// any persistence error.
func (p *DispatchPool) finishFailed(ctx context.Context, task *domain.Task, message string, logger *slog.Logger) {
	if err := task.MarkFailed(message); err != nil {
		logger.Error("failed to mark task failed", "error", err)
		return
	}
	if err := p.store.Update(ctx, task); err != nil {
		logger.Error("failed to persist failed status", "error", err)
	}
}
