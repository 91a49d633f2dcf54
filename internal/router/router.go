// Package router maps tasks to downstream service calls. It resolves a
// task's target service to a configured base URL, performs the HTTP
// dispatch, and interprets the response. It also exposes health probes for
// individual services and the full configured set.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maestro-api/maestro/internal/config"
	"github.com/maestro-api/maestro/internal/domain"
)

// healthTimeout bounds the /health probe; it is deliberately much shorter
// than the dispatch timeout.
const healthTimeout = 5 * time.Second

// defaultEndpoints maps each service name to the operation used when a task
// carries no explicit service_endpoint.
var defaultEndpoints = map[string]string{
	"browser_service":       "execute",
	"document_service":      "process",
	"communication_service": "handle",
	"media_service":         "process",
	"bot_builder_service":   "create",
}

// fallbackEndpoint is used for service names absent from the table.
const fallbackEndpoint = "execute"

// dispatchRequest is the JSON body POSTed to a downstream service.
type dispatchRequest struct {
	TaskID     string        `json:"task_id"`
	Command    string        `json:"command"`
	Parameters domain.Params `json:"parameters"`
	Priority   string        `json:"priority"`
}

// ServiceRouter dispatches tasks to downstream services over HTTP.
type ServiceRouter struct {
	services config.ServicesConfig
	client   *http.Client
	logger   *slog.Logger
}

// NewServiceRouter creates a router over the given service configuration.
// The shared HTTP client carries no global timeout; per-call deadlines come
// from each service's configured timeout via the request context.
func NewServiceRouter(services config.ServicesConfig, logger *slog.Logger) *ServiceRouter {
	return &ServiceRouter{
		services: services,
		client:   &http.Client{},
		logger:   logger.With("component", "service_router"),
	}
}

// Route resolves the task's target service and endpoint, performs the
// downstream call, and returns the parsed result payload. An inactive or
// unknown service fails without any network I/O. Non-2xx responses become a
// RoutingError carrying the status code and response body.
func (r *ServiceRouter) Route(ctx context.Context, task *domain.Task) (domain.Result, error) {
	svc, ok := r.services[task.TargetService]
	if !ok || !svc.Active {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, task.TargetService)
	}

	endpoint := task.ServiceEndpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint(task.TargetService)
	}

	payload := dispatchRequest{
		TaskID:     task.ID.String(),
		Command:    task.Command,
		Parameters: task.Parameters,
		Priority:   string(task.Priority),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dispatch payload: %w", err)
	}

	timeout := time.Duration(svc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s", svc.BaseURL, endpoint)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.Debug("dispatching task",
		"task_id", task.ID,
		"service", task.TargetService,
		"endpoint", endpoint)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", task.TargetService, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Warn("failed to close response body", "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", task.TargetService, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RoutingError{
			Service:    task.TargetService,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var result domain.Result
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("invalid JSON response from %s: %w", task.TargetService, err)
		}
	}

	r.logger.Debug("task dispatched successfully",
		"task_id", task.ID,
		"service", task.TargetService,
		"status_code", resp.StatusCode)

	return result, nil
}

// CheckServiceHealth probes a service's /health endpoint with a short
// timeout. It never returns an error: timeouts, connection failures, and
// unknown service names all report unhealthy.
func (r *ServiceRouter) CheckServiceHealth(ctx context.Context, serviceName string) bool {
	svc, ok := r.services[serviceName]
	if !ok {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, svc.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("health probe failed", "service", serviceName, "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}

// AvailableServices probes every configured service in parallel and returns
// a name to healthy map.
func (r *ServiceRouter) AvailableServices(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(r.services))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name := range r.services {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			ok := r.CheckServiceHealth(ctx, name)
			mu.Lock()
			health[name] = ok
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return health
}

// DefaultEndpoint returns the default operation name for a service.
func DefaultEndpoint(serviceName string) string {
	if endpoint, ok := defaultEndpoints[serviceName]; ok {
		return endpoint
	}
	return fallbackEndpoint
}
