package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who authored a conversation message.
type MessageRole string

// Possible message role values
const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Common validation errors for Conversation and ConversationMessage
var (
	ErrEmptyConversationID    = errors.New("conversation ID cannot be empty")
	ErrEmptyMessageContent    = errors.New("message content cannot be empty")
	ErrInvalidMessageRole     = errors.New("invalid message role")
	ErrEmptyMessageConversant = errors.New("message conversation ID cannot be empty")
)

// Conversation groups the commands a user issued in one session so the
// audit trail can be replayed in order.
type Conversation struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewConversation creates a new Conversation with a generated ID. An empty
// title defaults to "New Conversation", matching the submission flow where
// conversations are often created before their purpose is known.
func NewConversation(userID *uuid.UUID, title string) *Conversation {
	if title == "" {
		title = "New Conversation"
	}

	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		Title:     title,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConversationMessage is a single entry in a conversation's history.
type ConversationMessage struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	Role           MessageRole `json:"role"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewConversationMessage creates a new message for the given conversation.
// Returns an error if validation fails.
func NewConversationMessage(
	conversationID uuid.UUID,
	content string,
	role MessageRole,
) (*ConversationMessage, error) {
	msg := &ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Content:        content,
		Role:           role,
		CreatedAt:      time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the ConversationMessage has valid data.
func (m *ConversationMessage) Validate() error {
	if m.ConversationID == uuid.Nil {
		return ErrEmptyMessageConversant
	}

	if m.Content == "" {
		return ErrEmptyMessageContent
	}

	switch m.Role {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
	default:
		return ErrInvalidMessageRole
	}

	return nil
}
