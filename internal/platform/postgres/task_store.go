package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/platform/logger"
	"github.com/maestro-api/maestro/internal/store"
)

// defaultListLimit bounds List results when the caller passes a non-positive limit.
const defaultListLimit = 50

// taskColumns is the shared column list for task SELECT statements. The scan
// order in scanTask must match.
const taskColumns = `id, title, description, command, task_type, status, priority,
		target_service, service_endpoint, parameters, result, error_message,
		created_at, started_at, completed_at, user_id, conversation_id`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	parameters, result, err := marshalPayloads(task)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, title, description, command, task_type, status, priority,
			target_service, service_endpoint, parameters, result, error_message,
			created_at, started_at, completed_at, user_id, conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.Command,
		task.TaskType,
		task.Status,
		task.Priority,
		task.TargetService,
		nullString(task.ServiceEndpoint),
		parameters,
		result,
		nullString(task.ErrorMessage),
		task.CreatedAt,
		task.StartedAt,
		task.CompletedAt,
		task.UserID,
		task.ConversationID,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("target_service", task.TargetService),
		slog.String("priority", string(task.Priority)))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// Update implements store.TaskStore.Update
// It persists status, result, error message, and execution timestamps. A
// status entered by transition is written as a compare-and-set conditioned on
// the transition's source status, so of two racing transitions only the first
// to persist wins; the loser gets store.ErrStatusConflict.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	parameters, result, err := marshalPayloads(task)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET status = $1, result = $2, error_message = $3, started_at = $4, completed_at = $5,
			parameters = $6
		WHERE id = $7
	`
	args := []any{
		task.Status,
		result,
		nullString(task.ErrorMessage),
		task.StartedAt,
		task.CompletedAt,
		parameters,
		task.ID,
	}

	source, isTransition := domain.TransitionSource(task.Status)
	if isTransition {
		query += ` AND status = $8`
		args = append(args, source)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(res, "task"); err != nil {
		if isTransition {
			// Rows are never deleted, so a missed conditional update means a
			// concurrent transition got there first.
			log.Debug("task status transition lost race",
				slog.String("task_id", task.ID.String()),
				slog.String("attempted_status", string(task.Status)))
			return fmt.Errorf("%w: task %s no longer %s",
				store.ErrStatusConflict, task.ID, source)
		}
		log.Debug("task not found for update", slog.String("task_id", task.ID.String()))
		return store.ErrTaskNotFound
	}

	log.Info("task updated successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// List implements store.TaskStore.List
// It retrieves tasks ordered by creation time descending, optionally
// filtered by status. Returns an empty slice when no tasks match.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	status *domain.TaskStatus,
	limit int,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = defaultListLimit
	}

	var query string
	var args []any

	if status != nil {
		query = fmt.Sprintf(`
			SELECT %s FROM tasks
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, taskColumns)
		args = []any{*status, limit}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM tasks
			ORDER BY created_at DESC
			LIMIT $1
		`, taskColumns)
		args = []any{limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning task rows", slog.String("error", err.Error()))
		return nil, err
	}

	return tasks, nil
}

// CountByStatus implements store.TaskStore.CountByStatus
func (s *PostgresTaskStore) CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status = $1`, status).Scan(&count)
	if err != nil {
		log.Error("failed to count tasks by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return 0, MapError(err)
	}

	return count, nil
}

// WithTx implements store.TaskStore.WithTx
// It returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order and reconstructs the
// domain object, decoding the JSONB payload columns.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var serviceEndpoint sql.NullString
	var errorMessage sql.NullString
	var parameters []byte
	var result []byte

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Command,
		&task.TaskType,
		&task.Status,
		&task.Priority,
		&task.TargetService,
		&serviceEndpoint,
		&parameters,
		&result,
		&errorMessage,
		&task.CreatedAt,
		&task.StartedAt,
		&task.CompletedAt,
		&task.UserID,
		&task.ConversationID,
	)
	if err != nil {
		return nil, err
	}

	task.ServiceEndpoint = serviceEndpoint.String
	task.ErrorMessage = errorMessage.String

	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &task.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode task parameters: %w", err)
		}
	}

	if len(result) > 0 {
		if err := json.Unmarshal(result, &task.Result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
	}

	return &task, nil
}

// marshalPayloads encodes the JSONB payload columns. A nil map is stored as
// SQL NULL rather than the JSON literal null.
func marshalPayloads(task *domain.Task) (parameters, result []byte, err error) {
	if task.Parameters != nil {
		parameters, err = json.Marshal(task.Parameters)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode task parameters: %w", err)
		}
	}

	if task.Result != nil {
		result, err = json.Marshal(task.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode task result: %w", err)
		}
	}

	return parameters, result, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
