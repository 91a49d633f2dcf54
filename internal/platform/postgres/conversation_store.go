package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/platform/logger"
	"github.com/maestro-api/maestro/internal/store"
)

// PostgresConversationStore implements the store.ConversationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConversationStore creates a new PostgreSQL implementation of the
// ConversationStore interface. If logger is nil, a default logger will be used.
func NewPostgresConversationStore(db store.DBTX, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

// Ensure PostgresConversationStore implements store.ConversationStore interface
var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// Create implements store.ConversationStore.Create
func (s *PostgresConversationStore) Create(ctx context.Context, conversation *domain.Conversation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO conversations (id, title, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		conversation.ID,
		conversation.Title,
		conversation.UserID,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create conversation",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conversation.ID.String()))
		return MapError(err)
	}

	log.Info("conversation created successfully",
		slog.String("conversation_id", conversation.ID.String()))
	return nil
}

// GetByID implements store.ConversationStore.GetByID
// Returns store.ErrConversationNotFound if the conversation does not exist.
func (s *PostgresConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, user_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conversation domain.Conversation
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conversation.ID,
		&conversation.Title,
		&conversation.UserID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("conversation not found", slog.String("conversation_id", id.String()))
			return nil, store.ErrConversationNotFound
		}
		log.Error("failed to get conversation by ID",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return nil, MapError(err)
	}

	return &conversation, nil
}

// AppendMessage implements store.ConversationStore.AppendMessage
// It inserts the message and touches the conversation's updated_at in one
// logical operation. Returns store.ErrConversationNotFound when the message
// references a conversation that does not exist.
func (s *PostgresConversationStore) AppendMessage(ctx context.Context, message *domain.ConversationMessage) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := message.Validate(); err != nil {
		log.Warn("message validation failed during append",
			slog.String("error", err.Error()),
			slog.String("conversation_id", message.ConversationID.String()))
		return err
	}

	query := `
		INSERT INTO conversation_messages (id, conversation_id, content, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		message.ID,
		message.ConversationID,
		message.Content,
		message.Role,
		message.CreatedAt,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("message references unknown conversation",
				slog.String("conversation_id", message.ConversationID.String()))
			return fmt.Errorf("%w: conversation %s",
				store.ErrConversationNotFound, message.ConversationID)
		}
		log.Error("failed to append conversation message",
			slog.String("error", err.Error()),
			slog.String("conversation_id", message.ConversationID.String()))
		return MapError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), message.ConversationID)
	if err != nil {
		log.Error("failed to touch conversation timestamp",
			slog.String("error", err.Error()),
			slog.String("conversation_id", message.ConversationID.String()))
		return MapError(err)
	}

	log.Debug("message appended",
		slog.String("conversation_id", message.ConversationID.String()),
		slog.String("role", string(message.Role)))
	return nil
}

// GetMessages implements store.ConversationStore.GetMessages
// Messages are returned in creation order. Returns an empty slice for a
// conversation with no messages.
func (s *PostgresConversationStore) GetMessages(
	ctx context.Context,
	conversationID uuid.UUID,
) ([]*domain.ConversationMessage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, conversation_id, content, role, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		log.Error("failed to query conversation messages",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conversationID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	messages := []*domain.ConversationMessage{}
	for rows.Next() {
		var message domain.ConversationMessage
		err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.Content,
			&message.Role,
			&message.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan message row", slog.String("error", err.Error()))
			return nil, err
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning message rows", slog.String("error", err.Error()))
		return nil, err
	}

	return messages, nil
}

// WithTx implements store.ConversationStore.WithTx
func (s *PostgresConversationStore) WithTx(tx *sql.Tx) store.ConversationStore {
	return &PostgresConversationStore{
		db:     tx,
		logger: s.logger,
	}
}
