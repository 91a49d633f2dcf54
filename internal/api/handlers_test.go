package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/orchestrator"
	"github.com/maestro-api/maestro/internal/store"
)

// MockOrchestrator is a function-field mock of OrchestratorService.
type MockOrchestrator struct {
	SubmitCommandFn       func(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error)
	TaskStatusFn          func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CancelTaskFn          func(ctx context.Context, id uuid.UUID) (bool, error)
	QueueStatusFn         func(ctx context.Context) (*orchestrator.QueueStatus, error)
	ListTasksFn           func(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error)
	ServiceHealthFn       func(ctx context.Context) map[string]bool
	CreateConversationFn  func(ctx context.Context, userID *uuid.UUID, title string) (*domain.Conversation, error)
	ConversationHistoryFn func(ctx context.Context, id uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error)
}

func (m *MockOrchestrator) SubmitCommand(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
	if m.SubmitCommandFn != nil {
		return m.SubmitCommandFn(ctx, req)
	}
	return nil, nil
}

func (m *MockOrchestrator) TaskStatus(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.TaskStatusFn != nil {
		return m.TaskStatusFn(ctx, id)
	}
	return nil, nil
}

func (m *MockOrchestrator) CancelTask(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.CancelTaskFn != nil {
		return m.CancelTaskFn(ctx, id)
	}
	return false, nil
}

func (m *MockOrchestrator) QueueStatus(ctx context.Context) (*orchestrator.QueueStatus, error) {
	if m.QueueStatusFn != nil {
		return m.QueueStatusFn(ctx)
	}
	return &orchestrator.QueueStatus{}, nil
}

func (m *MockOrchestrator) ListTasks(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error) {
	if m.ListTasksFn != nil {
		return m.ListTasksFn(ctx, status, limit)
	}
	return nil, nil
}

func (m *MockOrchestrator) ServiceHealth(ctx context.Context) map[string]bool {
	if m.ServiceHealthFn != nil {
		return m.ServiceHealthFn(ctx)
	}
	return map[string]bool{}
}

func (m *MockOrchestrator) CreateConversation(ctx context.Context, userID *uuid.UUID, title string) (*domain.Conversation, error) {
	if m.CreateConversationFn != nil {
		return m.CreateConversationFn(ctx, userID, title)
	}
	return nil, nil
}

func (m *MockOrchestrator) ConversationHistory(ctx context.Context, id uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error) {
	if m.ConversationHistoryFn != nil {
		return m.ConversationHistoryFn(ctx, id)
	}
	return nil, nil, nil
}

// withURLParam builds a request carrying a chi route parameter.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func sampleTask(t *testing.T) *domain.Task {
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

func TestCommandHandler_SubmitCommand(t *testing.T) {
	fixedTaskID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name           string
		requestBody    any
		rawBody        string
		setupMock      func(*MockOrchestrator)
		expectedStatus int
		check          func(t *testing.T, body []byte)
	}{
		{
			name:        "successful_submission",
			requestBody: CommandRequest{Command: "find me flight prices to London"},
			setupMock: func(m *MockOrchestrator) {
				m.SubmitCommandFn = func(_ context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
					assert.Equal(t, "find me flight prices to London", req.Command)
					return &orchestrator.SubmitResult{
						TaskID:              fixedTaskID,
						Status:              "queued",
						Message:             "Task 'Find flight prices' has been queued for processing",
						EstimatedCompletion: "2-5 minutes",
					}, nil
				}
			},
			expectedStatus: http.StatusAccepted,
			check: func(t *testing.T, body []byte) {
				var resp CommandResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, fixedTaskID, resp.TaskID)
				assert.Equal(t, "queued", resp.Status)
				assert.Equal(t, "2-5 minutes", resp.EstimatedCompletion)
			},
		},
		{
			name:           "missing_command",
			requestBody:    CommandRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed_json",
			rawBody:        "{not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "interpretation_failure",
			requestBody: CommandRequest{Command: "asdfgh"},
			setupMock: func(m *MockOrchestrator) {
				m.SubmitCommandFn = func(_ context.Context, _ orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
					return nil, fmt.Errorf("%w: model returned garbage", orchestrator.ErrInterpretation)
				}
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "Could not interpret the command")
			},
		},
		{
			name:        "validation_failure_surfaces_reason",
			requestBody: CommandRequest{Command: "do something"},
			setupMock: func(m *MockOrchestrator) {
				m.SubmitCommandFn = func(_ context.Context, _ orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
					return nil, fmt.Errorf("%w: confidence 0.30 below minimum 0.50", orchestrator.ErrValidation)
				}
			},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "confidence")
			},
		},
		{
			name:        "internal_error_is_sanitized",
			requestBody: CommandRequest{Command: "find flights"},
			setupMock: func(m *MockOrchestrator) {
				m.SubmitCommandFn = func(_ context.Context, _ orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error) {
					return nil, errors.New("pq: connection to postgres://u:p@db:5432 refused")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body []byte) {
				assert.NotContains(t, string(body), "postgres://")
				assert.Contains(t, string(body), "An unexpected error occurred")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockOrchestrator{}
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}
			handler := NewCommandHandler(mock)

			var body []byte
			if tt.rawBody != "" {
				body = []byte(tt.rawBody)
			} else {
				var err error
				body, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			handler.SubmitCommand(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

func TestTaskHandler_GetTask(t *testing.T) {
	task := sampleTask(t)

	t.Run("found", func(t *testing.T) {
		mock := &MockOrchestrator{
			TaskStatusFn: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
				assert.Equal(t, task.ID, id)
				return task, nil
			},
		}
		handler := NewTaskHandler(mock)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/task/"+task.ID.String(), nil), "id", task.ID.String())
		rec := httptest.NewRecorder()
		handler.GetTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, task.ID.String(), resp.ID)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("not_found", func(t *testing.T) {
		mock := &MockOrchestrator{
			TaskStatusFn: func(_ context.Context, _ uuid.UUID) (*domain.Task, error) {
				return nil, store.ErrTaskNotFound
			},
		}
		handler := NewTaskHandler(mock)

		id := uuid.New().String()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/task/"+id, nil), "id", id)
		rec := httptest.NewRecorder()
		handler.GetTask(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Task not found")
	})

	t.Run("invalid_id", func(t *testing.T) {
		handler := NewTaskHandler(&MockOrchestrator{})

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/task/not-a-uuid", nil), "id", "not-a-uuid")
		rec := httptest.NewRecorder()
		handler.GetTask(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandler_CancelTask(t *testing.T) {
	id := uuid.New()

	t.Run("cancelled", func(t *testing.T) {
		mock := &MockOrchestrator{
			CancelTaskFn: func(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil },
		}
		handler := NewTaskHandler(mock)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/task/"+id.String(), nil), "id", id.String())
		rec := httptest.NewRecorder()
		handler.CancelTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp CancelResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Cancelled)
	})

	t.Run("not_cancellable", func(t *testing.T) {
		mock := &MockOrchestrator{
			CancelTaskFn: func(_ context.Context, _ uuid.UUID) (bool, error) { return false, nil },
		}
		handler := NewTaskHandler(mock)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/task/"+id.String(), nil), "id", id.String())
		rec := httptest.NewRecorder()
		handler.CancelTask(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp CancelResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Cancelled)
		assert.Contains(t, resp.Message, "could not be cancelled")
	})

	t.Run("unknown_task", func(t *testing.T) {
		mock := &MockOrchestrator{
			CancelTaskFn: func(_ context.Context, _ uuid.UUID) (bool, error) {
				return false, store.ErrTaskNotFound
			},
		}
		handler := NewTaskHandler(mock)

		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/task/"+id.String(), nil), "id", id.String())
		rec := httptest.NewRecorder()
		handler.CancelTask(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTaskHandler_ListTasks(t *testing.T) {
	t.Run("status_filter_is_forwarded", func(t *testing.T) {
		task := sampleTask(t)
		mock := &MockOrchestrator{
			ListTasksFn: func(_ context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error) {
				require.NotNil(t, status)
				assert.Equal(t, domain.TaskStatusPending, *status)
				assert.Equal(t, 5, limit)
				return []*domain.Task{task}, nil
			},
		}
		handler := NewTaskHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=pending&limit=5", nil)
		rec := httptest.NewRecorder()
		handler.ListTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp TaskListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("invalid_status", func(t *testing.T) {
		handler := NewTaskHandler(&MockOrchestrator{})

		req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=bogus", nil)
		rec := httptest.NewRecorder()
		handler.ListTasks(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid_limit", func(t *testing.T) {
		handler := NewTaskHandler(&MockOrchestrator{})

		req := httptest.NewRequest(http.MethodGet, "/api/tasks?limit=-1", nil)
		rec := httptest.NewRecorder()
		handler.ListTasks(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty_result_is_an_empty_list", func(t *testing.T) {
		handler := NewTaskHandler(&MockOrchestrator{})

		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		rec := httptest.NewRecorder()
		handler.ListTasks(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tasks":[]`)
	})
}

func TestTaskHandler_QueueStatus(t *testing.T) {
	mock := &MockOrchestrator{
		QueueStatusFn: func(_ context.Context) (*orchestrator.QueueStatus, error) {
			return &orchestrator.QueueStatus{
				QueueSize:          2,
				ActiveTasks:        1,
				MaxConcurrentTasks: 5,
				TotalPending:       2,
				TotalProcessing:    1,
				TotalCompleted:     10,
			}, nil
		},
	}
	handler := NewTaskHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/queue/status", nil)
	rec := httptest.NewRecorder()
	handler.QueueStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp orchestrator.QueueStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.QueueSize)
	assert.Equal(t, 5, resp.MaxConcurrentTasks)
	assert.Equal(t, 10, resp.TotalCompleted)
}

func TestTaskHandler_ServicesHealth(t *testing.T) {
	mock := &MockOrchestrator{
		ServiceHealthFn: func(_ context.Context) map[string]bool {
			return map[string]bool{"browser_service": true, "media_service": false}
		},
	}
	handler := NewTaskHandler(mock)

	req := httptest.NewRequest(http.MethodGet, "/api/services/health", nil)
	rec := httptest.NewRecorder()
	handler.ServicesHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ServicesHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Services["browser_service"])
	assert.False(t, resp.Services["media_service"])
}

func TestConversationHandler(t *testing.T) {
	fixedTime := time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)
	conversation := &domain.Conversation{
		ID:        uuid.New(),
		Title:     "New Conversation",
		CreatedAt: fixedTime,
		UpdatedAt: fixedTime,
	}

	t.Run("create", func(t *testing.T) {
		mock := &MockOrchestrator{
			CreateConversationFn: func(_ context.Context, _ *uuid.UUID, title string) (*domain.Conversation, error) {
				assert.Equal(t, "Trip planning", title)
				return conversation, nil
			},
		}
		handler := NewConversationHandler(mock)

		body, err := json.Marshal(CreateConversationRequest{Title: "Trip planning"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/conversation", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.CreateConversation(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, conversation.ID, resp.ID)
	})

	t.Run("history", func(t *testing.T) {
		message := &domain.ConversationMessage{
			ID:             uuid.New(),
			ConversationID: conversation.ID,
			Content:        "find flights",
			Role:           domain.MessageRoleUser,
			CreatedAt:      fixedTime,
		}
		mock := &MockOrchestrator{
			ConversationHistoryFn: func(_ context.Context, id uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error) {
				assert.Equal(t, conversation.ID, id)
				return conversation, []*domain.ConversationMessage{message}, nil
			},
		}
		handler := NewConversationHandler(mock)

		req := withURLParam(
			httptest.NewRequest(http.MethodGet, "/api/conversation/"+conversation.ID.String(), nil),
			"id", conversation.ID.String())
		rec := httptest.NewRecorder()
		handler.GetConversation(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp ConversationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 1)
		assert.Equal(t, "find flights", resp.Messages[0].Content)
		assert.Equal(t, "user", resp.Messages[0].Role)
	})

	t.Run("history_not_found", func(t *testing.T) {
		mock := &MockOrchestrator{
			ConversationHistoryFn: func(_ context.Context, _ uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error) {
				return nil, nil, store.ErrConversationNotFound
			},
		}
		handler := NewConversationHandler(mock)

		id := uuid.New().String()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/conversation/"+id, nil), "id", id)
		rec := httptest.NewRecorder()
		handler.GetConversation(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
