package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskSubmittedEvent is emitted after a command has been interpreted,
// validated, persisted, and enqueued. Handlers perform side effects whose
// failure must not fail the submission, such as appending the command to the
// conversation audit trail.
type TaskSubmittedEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task that was created
	TaskID uuid.UUID `json:"task_id"`

	// Command is the original natural-language command text
	Command string `json:"command"`

	// ConversationID, when present, links the submission to a conversation
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskSubmittedEvent creates a new TaskSubmittedEvent for the given task.
func NewTaskSubmittedEvent(taskID uuid.UUID, command string, conversationID *uuid.UUID) *TaskSubmittedEvent {
	return &TaskSubmittedEvent{
		ID:             uuid.New(),
		TaskID:         taskID,
		Command:        command,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskSubmittedEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the orchestrator to publish events without direct knowledge
// of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskSubmittedEvent) error
}
