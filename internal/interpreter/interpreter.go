package interpreter

import (
	"context"

	"github.com/maestro-api/maestro/internal/domain"
)

// InterpretedCommand is the structured task specification produced from one
// natural-language command. It is the raw interpreter output; the
// orchestrator validates it before any task is created.
type InterpretedCommand struct {
	TaskType        domain.TaskType     `json:"task_type"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Priority        domain.TaskPriority `json:"priority"`
	TargetService   string              `json:"target_service"`
	ServiceEndpoint string              `json:"service_endpoint,omitempty"`
	Parameters      domain.Params       `json:"parameters,omitempty"`
	Confidence      float64             `json:"confidence"`
}

// Interpreter defines the interface for converting free-text commands into
// structured task specifications. This interface serves as a boundary between
// the application core and external AI/LLM services, following the hexagonal
// architecture pattern.
type Interpreter interface {
	// Interpret converts the command text, with optional conversational
	// context, into an InterpretedCommand.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - command: The natural-language command text
	//   - cmdContext: Optional key-value context from the conversation
	//
	// Returns:
	//   - The structured task specification
	//   - An error if interpretation fails (see errors.go for specific types)
	Interpret(ctx context.Context, command string, cmdContext map[string]any) (*InterpretedCommand, error)
}
