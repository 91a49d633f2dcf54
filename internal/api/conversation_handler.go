package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maestro-api/maestro/internal/api/shared"
	"github.com/maestro-api/maestro/internal/domain"
)

// ConversationHandler handles conversation HTTP requests.
type ConversationHandler struct {
	orchestrator OrchestratorService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(orch OrchestratorService) *ConversationHandler {
	return &ConversationHandler{orchestrator: orch}
}

// CreateConversation handles POST /api/conversation requests.
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength > 0 {
		if err := shared.DecodeJSON(r, &req); err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
	}

	conversation, err := h.orchestrator.CreateConversation(r.Context(), req.UserID, req.Title)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, conversationToResponse(conversation, nil))
}

// GetConversation handles GET /api/conversation/{id} requests, returning the
// conversation with its messages in order.
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	conversation, messages, err := h.orchestrator.ConversationHistory(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, conversationToResponse(conversation, messages))
}

// conversationToResponse converts a conversation and its messages to the
// response DTO.
func conversationToResponse(
	conversation *domain.Conversation,
	messages []*domain.ConversationMessage,
) ConversationResponse {
	resp := ConversationResponse{
		ID:        conversation.ID,
		Title:     conversation.Title,
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
	}

	for _, m := range messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	return resp
}
