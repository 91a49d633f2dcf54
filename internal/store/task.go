package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
)

// TaskStore defines the interface for task data persistence. The persisted
// status column is the authoritative record of a task's lifecycle; in-memory
// structures such as the dispatch queue are only indexes over it.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update saves changes to an existing task, including status, result,
	// error message, and execution timestamps. Status transitions are
	// persisted as compare-and-set updates conditioned on the transition's
	// source status; Update returns ErrStatusConflict when a concurrent
	// transition was persisted first.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// List retrieves tasks ordered by creation time descending. When status
	// is non-nil only tasks in that status are returned. Limit bounds the
	// result set; non-positive values fall back to a server-side default.
	List(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error)

	// CountByStatus returns the number of tasks currently in the given status.
	CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
