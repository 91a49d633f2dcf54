package interpreter

import "errors"

// Common errors returned by the interpreter package
var (
	// ErrInterpretationFailed is returned when command interpretation fails
	// for any general reason.
	ErrInterpretationFailed = errors.New("failed to interpret command")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed
	// or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the command due to
	// safety filters.
	ErrContentBlocked = errors.New("command blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve
	// on retry.
	ErrTransientFailure = errors.New("transient error during command interpretation")

	// ErrInvalidConfig is returned when the interpreter configuration is invalid.
	ErrInvalidConfig = errors.New("invalid interpreter configuration")

	// ErrEmptyCommand is returned when the command text is empty.
	ErrEmptyCommand = errors.New("command text cannot be empty")
)
