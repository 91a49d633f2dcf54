package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

// ConversationLogHandler appends submitted commands to their conversation's
// message history. Events without a conversation ID are ignored.
type ConversationLogHandler struct {
	conversations store.ConversationStore
	logger        *slog.Logger
}

// NewConversationLogHandler creates a handler writing to the given store.
func NewConversationLogHandler(conversations store.ConversationStore, logger *slog.Logger) *ConversationLogHandler {
	return &ConversationLogHandler{
		conversations: conversations,
		logger:        logger.With("component", "conversation_log_handler"),
	}
}

// HandleEvent records the command as a user message in the conversation.
func (h *ConversationLogHandler) HandleEvent(ctx context.Context, event *TaskSubmittedEvent) error {
	if event.ConversationID == nil {
		return nil
	}

	msg, err := domain.NewConversationMessage(*event.ConversationID, event.Command, domain.MessageRoleUser)
	if err != nil {
		return fmt.Errorf("failed to build conversation message: %w", err)
	}

	if err := h.conversations.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to append conversation message: %w", err)
	}

	h.logger.Debug("logged command to conversation",
		"conversation_id", *event.ConversationID,
		"task_id", event.TaskID)
	return nil
}
