package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

// mockDBTX records the queries issued against it and returns canned results.
type mockDBTX struct {
	execCalls  int
	execQuery  string
	execArgs   []any
	execError  error
	execResult sql.Result
	queryError error
}

func (m *mockDBTX) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	m.execCalls++
	m.execQuery = query
	m.execArgs = args
	if m.execError != nil {
		return nil, m.execError
	}
	if m.execResult != nil {
		return m.execResult, nil
	}
	return mockResult{rowsAffected: 1}, nil
}

func (m *mockDBTX) PrepareContext(_ context.Context, _ string) (*sql.Stmt, error) {
	return nil, errors.New("prepare not implemented in mock")
}

func (m *mockDBTX) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	if m.queryError != nil {
		return nil, m.queryError
	}
	return nil, errors.New("query not implemented in mock")
}

func (m *mockDBTX) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return &sql.Row{}
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(
		"Find flight prices",
		"Search for flights from NYC to London",
		"find me flight prices to London",
		domain.TaskTypeBrowserAutomation,
		domain.TaskPriorityHigh,
		"browser_service",
		"",
		domain.Params{"origin": "NYC"},
	)
	require.NoError(t, err)
	return task
}

func TestNewPostgresTaskStore(t *testing.T) {
	t.Run("valid_db", func(t *testing.T) {
		s := NewPostgresTaskStore(&mockDBTX{}, silentLogger())
		assert.NotNil(t, s)
		assert.NotNil(t, s.db)
	})

	t.Run("nil_db_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewPostgresTaskStore(nil, silentLogger())
		})
	})

	t.Run("nil_logger_uses_default", func(t *testing.T) {
		s := NewPostgresTaskStore(&mockDBTX{}, nil)
		assert.NotNil(t, s.logger)
	})
}

func TestTaskStoreCreateValidatesBeforeInsert(t *testing.T) {
	mock := &mockDBTX{}
	s := NewPostgresTaskStore(mock, silentLogger())

	invalid := validTask(t)
	invalid.Title = ""

	err := s.Create(context.Background(), invalid)
	assert.ErrorIs(t, err, domain.ErrEmptyTaskTitle)
	assert.Zero(t, mock.execCalls, "no insert for an invalid task")
}

func TestTaskStoreCreateMapsExecError(t *testing.T) {
	mock := &mockDBTX{execError: errors.New("connection refused")}
	s := NewPostgresTaskStore(mock, silentLogger())

	err := s.Create(context.Background(), validTask(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTaskStoreUpdateNotFound(t *testing.T) {
	mock := &mockDBTX{execResult: mockResult{rowsAffected: 0}}
	s := NewPostgresTaskStore(mock, silentLogger())

	err := s.Update(context.Background(), validTask(t))
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStoreUpdateTransitionIsCompareAndSet(t *testing.T) {
	t.Run("update is conditioned on the source status", func(t *testing.T) {
		mock := &mockDBTX{}
		s := NewPostgresTaskStore(mock, silentLogger())

		claimed := validTask(t)
		require.NoError(t, claimed.MarkProcessing())

		require.NoError(t, s.Update(context.Background(), claimed))
		assert.Contains(t, mock.execQuery, "AND status = $8")
		require.NotEmpty(t, mock.execArgs)
		assert.Equal(t, domain.TaskStatusPending, mock.execArgs[len(mock.execArgs)-1])
	})

	t.Run("zero rows means the transition lost a race", func(t *testing.T) {
		mock := &mockDBTX{execResult: mockResult{rowsAffected: 0}}
		s := NewPostgresTaskStore(mock, silentLogger())

		cancelled := validTask(t)
		require.NoError(t, cancelled.MarkCancelled())

		err := s.Update(context.Background(), cancelled)
		assert.ErrorIs(t, err, store.ErrStatusConflict)
	})
}

func TestTaskStoreListMapsQueryError(t *testing.T) {
	mock := &mockDBTX{queryError: errors.New("relation does not exist")}
	s := NewPostgresTaskStore(mock, silentLogger())

	_, err := s.List(context.Background(), nil, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestTaskStoreWithTxPreservesLogger(t *testing.T) {
	s := NewPostgresTaskStore(&mockDBTX{}, silentLogger())

	// A nil *sql.Tx still satisfies DBTX wiring; the transaction itself is
	// exercised in integration tests.
	txStore := s.WithTx(nil)
	assert.NotNil(t, txStore)
	assert.NotSame(t, store.TaskStore(s), txStore)
}

func TestMarshalPayloads(t *testing.T) {
	t.Run("nil maps stay null", func(t *testing.T) {
		task := validTask(t)
		task.Parameters = nil
		task.Result = nil

		parameters, result, err := marshalPayloads(task)
		require.NoError(t, err)
		assert.Nil(t, parameters)
		assert.Nil(t, result)
	})

	t.Run("populated maps encode to JSON", func(t *testing.T) {
		task := validTask(t)
		task.Result = domain.Result{"status": "done"}

		parameters, result, err := marshalPayloads(task)
		require.NoError(t, err)
		assert.JSONEq(t, `{"origin":"NYC"}`, string(parameters))
		assert.JSONEq(t, `{"status":"done"}`, string(result))
	})
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("execute").Valid)
	assert.Equal(t, "execute", nullString("execute").String)
}
