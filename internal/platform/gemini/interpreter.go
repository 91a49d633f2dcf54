// Package gemini implements the interpreter.Interpreter interface using
// Google's Gemini API to turn natural-language commands into structured task
// specifications.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/maestro-api/maestro/internal/config"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/interpreter"
)

// promptTemplate instructs the model to emit a single JSON object matching
// interpreter.InterpretedCommand. The service and task-type vocabulary here
// must stay in sync with the domain package.
const promptTemplate = `You are a task interpretation engine for an orchestration system.
Analyze the user's command and produce a JSON object describing the task to execute.

Available services and their purposes:
- browser_service: web browsing, scraping, searches, price checks
- document_service: document creation, summarization, conversion
- communication_service: email, messaging, notifications
- media_service: image, audio and video processing
- bot_builder_service: creating and configuring automation bots

Respond with ONLY a JSON object, no surrounding text, with these fields:
{
  "task_type": one of "browser_automation", "document_management", "communication", "media_processing", "bot_builder", "general",
  "title": short human-readable task title,
  "description": one or two sentences describing what will be done,
  "priority": one of "low", "medium", "high", "urgent",
  "target_service": the service that should execute the task,
  "service_endpoint": optional endpoint name, omit if unsure,
  "parameters": object with any extracted parameters,
  "confidence": number between 0 and 1 reflecting interpretation certainty
}

User command: {{.Command}}
{{- if .Context}}

Conversation context:
{{- range $key, $value := .Context}}
- {{$key}}: {{$value}}
{{- end}}
{{- end}}
`

// promptData is the template input for a single interpretation request.
type promptData struct {
	Command string
	Context map[string]any
}

// CommandInterpreter implements interpreter.Interpreter over the Gemini API.
type CommandInterpreter struct {
	logger *slog.Logger
	config config.InterpreterConfig
	tmpl   *template.Template
	client *genai.Client
	model  string
}

// NewCommandInterpreter creates a CommandInterpreter from the given
// configuration. The context is used for client initialization only.
func NewCommandInterpreter(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.InterpreterConfig,
) (*CommandInterpreter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", interpreter.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", interpreter.ErrInvalidConfig)
	}

	tmpl, err := template.New("interpret").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", interpreter.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", interpreter.ErrInvalidConfig, err)
	}

	return &CommandInterpreter{
		logger: logger.With("component", "gemini_interpreter"),
		config: cfg,
		tmpl:   tmpl,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Interpret converts the command text into a structured task specification.
func (c *CommandInterpreter) Interpret(
	ctx context.Context,
	command string,
	cmdContext map[string]any,
) (*interpreter.InterpretedCommand, error) {
	prompt, err := c.createPrompt(ctx, command, cmdContext)
	if err != nil {
		return nil, err
	}

	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cmd, err := parseCommandResponse(text)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to parse interpretation response",
			"error", err,
			"response_length", len(text))
		return nil, err
	}

	c.logger.InfoContext(ctx, "command interpreted",
		"task_type", cmd.TaskType,
		"target_service", cmd.TargetService,
		"confidence", cmd.Confidence)

	return cmd, nil
}

// createPrompt renders the prompt template with the command and optional
// conversation context.
func (c *CommandInterpreter) createPrompt(
	ctx context.Context,
	command string,
	cmdContext map[string]any,
) (string, error) {
	if command == "" {
		return "", interpreter.ErrEmptyCommand
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, promptData{Command: command, Context: cmdContext}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	c.logger.DebugContext(ctx, "prompt generated",
		"command_length", len(command),
		"prompt_length", buf.Len())

	return buf.String(), nil
}

// callWithRetry calls the Gemini API with exponential backoff and jitter.
// Transient failures (network, rate limits) are retried up to MaxRetries
// times; permanent failures (blocked content, malformed responses) are
// returned immediately.
func (c *CommandInterpreter) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := c.config.MaxRetries
	baseDelaySeconds := c.config.RetryDelaySeconds
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if maxRetries < 0 {
		c.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	if baseDelaySeconds < 1 {
		c.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		c.logger.InfoContext(ctx, "calling Gemini API",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})

		var text string
		transient := false
		switch {
		case err != nil:
			// API-level errors are assumed retryable.
			transient = true
		case resp == nil || len(resp.Candidates) == 0:
			err = fmt.Errorf("%w: no content generated", interpreter.ErrInvalidResponse)
		case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
			err = fmt.Errorf("%w: content blocked by safety filters", interpreter.ErrContentBlocked)
		case resp.Candidates[0].Content == nil:
			err = fmt.Errorf("%w: empty content in response", interpreter.ErrInvalidResponse)
		default:
			text = resp.Text()
		}

		if err == nil {
			c.logger.InfoContext(ctx, "Gemini API call succeeded", "attempt", attemptNum)
			return text, nil
		}

		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if !transient {
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				interpreter.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		c.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", interpreter.ErrTransientFailure, ctx.Err())
		}
	}
}

// parseCommandResponse decodes the model's JSON output into an
// InterpretedCommand and normalizes loosely specified fields. Unknown task
// types and priorities fall back to general and medium rather than failing
// the request; the submission-time validation still gates on confidence and
// service compatibility.
func parseCommandResponse(text string) (*interpreter.InterpretedCommand, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response body", interpreter.ErrInvalidResponse)
	}

	var cmd interpreter.InterpretedCommand
	if err := json.Unmarshal([]byte(cleaned), &cmd); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", interpreter.ErrInvalidResponse, err)
	}

	if !domain.IsValidTaskType(cmd.TaskType) {
		cmd.TaskType = domain.TaskTypeGeneral
	}

	if !domain.IsValidTaskPriority(cmd.Priority) {
		cmd.Priority = domain.TaskPriorityMedium
	}

	if cmd.Parameters == nil {
		cmd.Parameters = domain.Params{}
	}

	if cmd.Confidence < 0 || cmd.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", interpreter.ErrInvalidResponse, cmd.Confidence)
	}

	return &cmd, nil
}

// stripCodeFence removes a surrounding markdown code fence, which the model
// sometimes adds despite instructions.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
