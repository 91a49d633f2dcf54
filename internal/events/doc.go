// Package events provides a minimal in-process event system decoupling the
// submission pipeline from its side effects. The orchestrator emits an event
// per accepted command; handlers such as the conversation audit log react
// without being able to fail the submission itself.
package events
