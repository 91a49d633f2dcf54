package task

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

// mockTaskStore is a thread-safe in-memory implementation of store.TaskStore
// for exercising the queue and pool without a database.
type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// getErr, when set, is returned by GetByID to simulate store failures.
	getErr error
	// updateErr, when set, is returned by Update.
	updateErr error
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *mockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

func (m *mockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (m *mockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	// Mirror the compare-and-set transition semantics of the real store.
	if source, isTransition := domain.TransitionSource(task.Status); isTransition &&
		existing.Status != source {
		return store.ErrStatusConflict
	}
	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

func (m *mockTaskStore) List(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, task := range m.tasks {
		if status != nil && task.Status != *status {
			continue
		}
		clone := *task
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockTaskStore) CountByStatus(ctx context.Context, status domain.TaskStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, task := range m.tasks {
		if task.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// statusOf reads a task's persisted status directly.
func (m *mockTaskStore) statusOf(t *testing.T, id uuid.UUID) domain.TaskStatus {
	t.Helper()
	task, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("task %s not found in store: %v", id, err)
	}
	return task.Status
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newStoredTask creates a pending task persisted in the store.
func newStoredTask(t *testing.T, s *mockTaskStore, priority domain.TaskPriority) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(
		"test task", "a task used in tests", "do the thing",
		domain.TaskTypeGeneral, priority, "browser_service", "", nil,
	)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}
	if err := s.Create(context.Background(), task); err != nil {
		t.Fatalf("failed to store task: %v", err)
	}
	return task
}
