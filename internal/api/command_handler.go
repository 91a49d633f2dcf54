package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maestro-api/maestro/internal/api/shared"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/orchestrator"
)

// OrchestratorService is the slice of the orchestrator the HTTP handlers
// depend on. Declared here so handlers can be tested against a mock.
type OrchestratorService interface {
	SubmitCommand(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.SubmitResult, error)
	TaskStatus(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	CancelTask(ctx context.Context, id uuid.UUID) (bool, error)
	QueueStatus(ctx context.Context) (*orchestrator.QueueStatus, error)
	ListTasks(ctx context.Context, status *domain.TaskStatus, limit int) ([]*domain.Task, error)
	ServiceHealth(ctx context.Context) map[string]bool
	CreateConversation(ctx context.Context, userID *uuid.UUID, title string) (*domain.Conversation, error)
	ConversationHistory(ctx context.Context, id uuid.UUID) (*domain.Conversation, []*domain.ConversationMessage, error)
}

// CommandHandler handles command submission HTTP requests.
type CommandHandler struct {
	orchestrator OrchestratorService
	validator    *validator.Validate
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(orch OrchestratorService) *CommandHandler {
	return &CommandHandler{
		orchestrator: orch,
		validator:    validator.New(),
	}
}

// SubmitCommand handles POST /api/command requests.
func (h *CommandHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	result, err := h.orchestrator.SubmitCommand(r.Context(), orchestrator.SubmitRequest{
		Command:        req.Command,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Context:        req.Context,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// 202: the task is queued, execution happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, CommandResponse{
		TaskID:              result.TaskID,
		Status:              result.Status,
		Message:             result.Message,
		EstimatedCompletion: result.EstimatedCompletion,
	})
}
