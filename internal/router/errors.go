package router

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable is returned when a task targets a service that is
// not configured or is marked inactive. No network I/O is attempted.
var ErrServiceUnavailable = errors.New("service is not available or inactive")

// RoutingError represents a non-2xx response from a downstream service.
type RoutingError struct {
	Service    string
	StatusCode int
	Body       string
}

// Error implements the error interface for RoutingError.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("service %s returned error: %d - %s", e.Service, e.StatusCode, e.Body)
}
