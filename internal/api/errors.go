package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/maestro-api/maestro/internal/orchestrator"
	"github.com/maestro-api/maestro/internal/router"
	"github.com/maestro-api/maestro/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Interpretation and validation failures are client errors: the command
	// could not be turned into an executable task.
	case errors.Is(err, orchestrator.ErrValidation),
		errors.Is(err, orchestrator.ErrInterpretation):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Invalid entity data
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Downstream service unavailable
	case errors.Is(err, router.ErrServiceUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, orchestrator.ErrInterpretation):
		return "Could not interpret the command"

	case errors.Is(err, orchestrator.ErrValidation):
		// Validation messages are built from our own constants and carry no
		// internal details, so the concrete reason can be surfaced.
		return trimWrappedPrefix(err.Error())

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrConversationNotFound):
		return "Conversation not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, router.ErrServiceUnavailable):
		return "Target service is unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from struct validation
// errors and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format:
	// "Key: 'CommandRequest.Command' Error:Field validation for 'Command' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid identifier"
	default:
		return "validation failed"
	}
}

// trimWrappedPrefix drops the sentinel's own text from a wrapped error
// message, leaving the human-readable remainder.
func trimWrappedPrefix(msg string) string {
	if _, rest, found := strings.Cut(msg, ": "); found {
		return rest
	}
	return msg
}
