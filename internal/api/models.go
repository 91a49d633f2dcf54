package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/maestro-api/maestro/internal/domain"
)

// Common request/response structures

// CommandRequest defines the payload for the command submission endpoint.
type CommandRequest struct {
	Command        string         `json:"command"                   validate:"required,min=1"`
	UserID         *uuid.UUID     `json:"user_id,omitempty"`
	ConversationID *uuid.UUID     `json:"conversation_id,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// CommandResponse defines the successful response for command submission.
type CommandResponse struct {
	TaskID              uuid.UUID `json:"task_id"`
	Status              string    `json:"status"`
	Message             string    `json:"message"`
	EstimatedCompletion string    `json:"estimated_completion"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Command         string         `json:"command"`
	TaskType        string         `json:"task_type"`
	Status          string         `json:"status"`
	Priority        string         `json:"priority"`
	TargetService   string         `json:"target_service"`
	ServiceEndpoint string         `json:"service_endpoint,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	TaskID    uuid.UUID `json:"task_id"`
	Cancelled bool      `json:"cancelled"`
	Message   string    `json:"message"`
}

// ServicesHealthResponse maps each downstream service to its probe result.
type ServicesHealthResponse struct {
	Services map[string]bool `json:"services"`
}

// CreateConversationRequest defines the payload for starting a conversation.
type CreateConversationRequest struct {
	Title  string     `json:"title,omitempty"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// ConversationResponse represents a conversation and, optionally, its messages.
type ConversationResponse struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []MessageResponse `json:"messages,omitempty"`
}

// MessageResponse represents a single conversation message.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:              task.ID.String(),
		Title:           task.Title,
		Description:     task.Description,
		Command:         task.Command,
		TaskType:        string(task.TaskType),
		Status:          string(task.Status),
		Priority:        string(task.Priority),
		TargetService:   task.TargetService,
		ServiceEndpoint: task.ServiceEndpoint,
		Parameters:      task.Parameters,
		Result:          task.Result,
		ErrorMessage:    task.ErrorMessage,
		CreatedAt:       task.CreatedAt,
		StartedAt:       task.StartedAt,
		CompletedAt:     task.CompletedAt,
	}
}
