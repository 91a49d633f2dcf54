// Package interpreter defines the boundary between the orchestration core
// and the external natural-language command interpreter. The core depends
// only on the Interpreter interface; concrete LLM-backed implementations
// live under internal/platform.
package interpreter
