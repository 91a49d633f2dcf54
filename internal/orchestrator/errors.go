package orchestrator

import "errors"

// Common errors returned by the orchestrator. Interpretation and validation
// failures are distinct so the API layer can surface them differently; both
// mean no task was created.
var (
	// ErrInterpretation is returned when the command interpreter fails or
	// returns unusable data.
	ErrInterpretation = errors.New("command interpretation failed")

	// ErrValidation is returned when an interpreted command is structurally
	// valid but semantically unacceptable (missing fields, low confidence,
	// type/service mismatch).
	ErrValidation = errors.New("command validation failed")

	// ErrNotRunning is returned by Stop when the orchestrator was never
	// started.
	ErrNotRunning = errors.New("orchestrator is not running")
)
