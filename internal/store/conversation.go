package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
)

// ConversationStore defines the interface for conversation data persistence.
// Version: 1.0
type ConversationStore interface {
	// Create saves a new conversation to the store.
	Create(ctx context.Context, conversation *domain.Conversation) error

	// GetByID retrieves a conversation by its unique ID.
	// Returns ErrConversationNotFound if the conversation does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)

	// AppendMessage adds a message to a conversation's history.
	// Returns ErrConversationNotFound if the conversation does not exist.
	AppendMessage(ctx context.Context, message *domain.ConversationMessage) error

	// GetMessages retrieves a conversation's messages ordered by creation
	// time ascending.
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.ConversationMessage, error)

	// WithTx returns a new ConversationStore instance that uses the provided
	// transaction. The transaction should be created and managed by the caller.
	WithTx(tx *sql.Tx) ConversationStore
}
