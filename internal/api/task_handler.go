package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maestro-api/maestro/internal/api/shared"
	"github.com/maestro-api/maestro/internal/domain"
)

// TaskHandler handles task status, listing, cancellation, and queue
// inspection HTTP requests.
type TaskHandler struct {
	orchestrator OrchestratorService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(orch OrchestratorService) *TaskHandler {
	return &TaskHandler{orchestrator: orch}
}

// GetTask handles GET /api/task/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.orchestrator.TaskStatus(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// CancelTask handles DELETE /api/task/{id} requests. Cancellation applies
// only to tasks that have not been claimed; anything else reports
// cancelled=false with the task left untouched.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	cancelled, err := h.orchestrator.CancelTask(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	message := "Task cancelled"
	if !cancelled {
		message = "Task could not be cancelled in its current state"
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{
		TaskID:    id,
		Cancelled: cancelled,
		Message:   message,
	})
}

// ListTasks handles GET /api/tasks requests with optional status and limit
// query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var status *domain.TaskStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.TaskStatus(raw)
		if !domain.IsValidTaskStatus(s) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		status = &s
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	tasks, err := h.orchestrator.ListTasks(r.Context(), status, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks: responses,
		Count: len(responses),
	})
}

// QueueStatus handles GET /api/queue/status requests.
func (h *TaskHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.orchestrator.QueueStatus(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// ServicesHealth handles GET /api/services/health requests.
func (h *TaskHandler) ServicesHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, ServicesHealthResponse{
		Services: h.orchestrator.ServiceHealth(r.Context()),
	})
}

// parseTaskID extracts and validates the {id} route parameter, writing a 400
// response on failure.
func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
