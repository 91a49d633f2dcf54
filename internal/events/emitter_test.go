package events

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recordingHandler captures every event it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*TaskSubmittedEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *TaskSubmittedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func TestEmitEventReachesAllHandlers(t *testing.T) {
	emitter := NewInMemoryEventEmitter(testLogger())

	first := &recordingHandler{}
	failing := &recordingHandler{err: errors.New("handler broke")}
	last := &recordingHandler{}

	emitter.RegisterHandler(first)
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(last)

	event := NewTaskSubmittedEvent(uuid.New(), "do something", nil)
	err := emitter.EmitEvent(context.Background(), event)

	// First error is returned, but every handler still saw the event.
	assert.EqualError(t, err, "handler broke")
	assert.Len(t, first.events, 1)
	assert.Len(t, failing.events, 1)
	assert.Len(t, last.events, 1)
	assert.Equal(t, event.ID, last.events[0].ID)
}

func TestEmitEventNoHandlers(t *testing.T) {
	emitter := NewInMemoryEventEmitter(testLogger())
	err := emitter.EmitEvent(context.Background(), NewTaskSubmittedEvent(uuid.New(), "cmd", nil))
	assert.NoError(t, err)
}

// mockConversationStore implements store.ConversationStore in memory.
type mockConversationStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]*domain.ConversationMessage
}

func newMockConversationStore() *mockConversationStore {
	return &mockConversationStore{messages: make(map[uuid.UUID][]*domain.ConversationMessage)}
}

func (m *mockConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	return nil
}

func (m *mockConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return nil, store.ErrConversationNotFound
}

func (m *mockConversationStore) AppendMessage(ctx context.Context, msg *domain.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *mockConversationStore) GetMessages(ctx context.Context, id uuid.UUID) ([]*domain.ConversationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id], nil
}

func (m *mockConversationStore) WithTx(tx *sql.Tx) store.ConversationStore {
	return m
}

func TestConversationLogHandlerRecordsCommand(t *testing.T) {
	conversations := newMockConversationStore()
	handler := NewConversationLogHandler(conversations, testLogger())

	conversationID := uuid.New()
	event := NewTaskSubmittedEvent(uuid.New(), "summarize this video", &conversationID)

	require.NoError(t, handler.HandleEvent(context.Background(), event))

	msgs, err := conversations.GetMessages(context.Background(), conversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "summarize this video", msgs[0].Content)
	assert.Equal(t, domain.MessageRoleUser, msgs[0].Role)
}

func TestConversationLogHandlerIgnoresDetachedEvents(t *testing.T) {
	conversations := newMockConversationStore()
	handler := NewConversationLogHandler(conversations, testLogger())

	event := NewTaskSubmittedEvent(uuid.New(), "no conversation here", nil)
	assert.NoError(t, handler.HandleEvent(context.Background(), event))
	assert.Empty(t, conversations.messages)
}
