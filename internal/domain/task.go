package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the execution state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority represents the scheduling priority of a task.
type TaskPriority string

// Possible task priority values, lowest to highest.
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskType classifies what kind of work a task represents.
type TaskType string

// Possible task type values
const (
	TaskTypeBrowserAutomation  TaskType = "browser_automation"
	TaskTypeDocumentManagement TaskType = "document_management"
	TaskTypeCommunication      TaskType = "communication"
	TaskTypeMediaProcessing    TaskType = "media_processing"
	TaskTypeBotBuilder         TaskType = "bot_builder"
	TaskTypeGeneral            TaskType = "general"
)

// Params is the schema-less key-value payload describing what a task should
// do. It is produced by the command interpreter and forwarded verbatim to the
// downstream service.
type Params map[string]any

// Result is the schema-less key-value payload returned by a downstream
// service on success.
type Result map[string]any

// Common validation and transition errors for Task
var (
	ErrEmptyTaskID          = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle       = errors.New("task title cannot be empty")
	ErrEmptyTaskCommand     = errors.New("task command cannot be empty")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrInvalidTaskPriority  = errors.New("invalid task priority")
	ErrInvalidTaskType      = errors.New("invalid task type")
	ErrInvalidTransition    = errors.New("invalid task status transition")
	ErrTaskNotCancellable   = errors.New("task is not in a cancellable state")
	ErrEmptyTargetService   = errors.New("task target service cannot be empty")
	ErrResultOnFailedTask   = errors.New("failed task cannot carry a result")
	ErrErrorOnCompletedTask = errors.New("completed task cannot carry an error message")
)

// Task is the unit of schedulable work produced from one interpreted command.
// A task is created in the pending state, claimed by a dispatch pool worker
// (processing), and ends in exactly one terminal state: completed, failed, or
// cancelled. Terminal tasks are retained for audit, never deleted.
type Task struct {
	ID              uuid.UUID    `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Command         string       `json:"command"`
	TaskType        TaskType     `json:"task_type"`
	Status          TaskStatus   `json:"status"`
	Priority        TaskPriority `json:"priority"`
	TargetService   string       `json:"target_service"`
	ServiceEndpoint string       `json:"service_endpoint,omitempty"`
	Parameters      Params       `json:"parameters,omitempty"`
	Result          Result       `json:"result,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	UserID          *uuid.UUID   `json:"user_id,omitempty"`
	ConversationID  *uuid.UUID   `json:"conversation_id,omitempty"`
}

// NewTask creates a new pending Task with a generated ID and creation
// timestamp. Returns an error if validation fails.
func NewTask(
	title, description, command string,
	taskType TaskType,
	priority TaskPriority,
	targetService, serviceEndpoint string,
	parameters Params,
) (*Task, error) {
	task := &Task{
		ID:              uuid.New(),
		Title:           title,
		Description:     description,
		Command:         command,
		TaskType:        taskType,
		Status:          TaskStatusPending,
		Priority:        priority,
		TargetService:   targetService,
		ServiceEndpoint: serviceEndpoint,
		Parameters:      parameters,
		CreatedAt:       time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if t.Command == "" {
		return ErrEmptyTaskCommand
	}

	if t.TargetService == "" {
		return ErrEmptyTargetService
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if !IsValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	if !IsValidTaskType(t.TaskType) {
		return ErrInvalidTaskType
	}

	return nil
}

// MarkProcessing transitions the task from pending to processing and records
// the start timestamp. Returns ErrInvalidTransition from any other state.
func (t *Task) MarkProcessing() error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	return nil
}

// MarkCompleted transitions the task from processing to completed, records
// the completion timestamp and the downstream result. The error message is
// cleared: result and error message are mutually exclusive at terminal states.
func (t *Task) MarkCompleted(result Result) error {
	if t.Status != TaskStatusProcessing {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.Result = result
	t.ErrorMessage = ""
	return nil
}

// MarkFailed transitions the task from processing to failed, records the
// completion timestamp and the error message, and clears any partial result.
func (t *Task) MarkFailed(errorMessage string) error {
	if t.Status != TaskStatusProcessing {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.ErrorMessage = errorMessage
	t.Result = nil
	return nil
}

// MarkCancelled transitions the task from pending to cancelled. A task that
// has already been claimed by a worker (processing) or reached a terminal
// state cannot be cancelled; the race between cancellation and a claiming
// worker is decided by whoever persists its transition first.
func (t *Task) MarkCancelled() error {
	if t.Status != TaskStatusPending {
		return ErrTaskNotCancellable
	}

	t.Status = TaskStatusCancelled
	return nil
}

// TransitionSource returns the only status a task may hold immediately before
// entering the given status. The second return is false for pending, which is
// the creation state and is never entered by transition. Stores use this to
// persist transitions as compare-and-set updates, so the first persisted
// transition wins any race.
func TransitionSource(status TaskStatus) (TaskStatus, bool) {
	switch status {
	case TaskStatusProcessing, TaskStatusCancelled:
		return TaskStatusPending, true
	case TaskStatusCompleted, TaskStatusFailed:
		return TaskStatusProcessing, true
	default:
		return "", false
	}
}

// IsTerminal reports whether the task has reached a state that permits no
// further transitions.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// PriorityScore returns the numeric rank used for dequeue ordering. The score
// is a pure function of the priority level; tasks are not re-weighted by age.
func (t *Task) PriorityScore() int {
	return PriorityScore(t.Priority)
}

// PriorityScore maps a priority level to its numeric rank, low=1 up to
// urgent=4. Unknown values rank as medium.
func PriorityScore(p TaskPriority) int {
	switch p {
	case TaskPriorityLow:
		return 1
	case TaskPriorityMedium:
		return 2
	case TaskPriorityHigh:
		return 3
	case TaskPriorityUrgent:
		return 4
	default:
		return 2
	}
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidTaskPriority checks if the given priority is a valid TaskPriority.
func IsValidTaskPriority(priority TaskPriority) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	default:
		return false
	}
}

// IsValidTaskType checks if the given task type is a valid TaskType.
func IsValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeBrowserAutomation, TaskTypeDocumentManagement,
		TaskTypeCommunication, TaskTypeMediaProcessing,
		TaskTypeBotBuilder, TaskTypeGeneral:
		return true
	default:
		return false
	}
}
