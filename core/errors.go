package core

import (
	"errors"
	"fmt"
)

// Sentinel errors classified with errors.Is.
var (
	// ErrRuntimeNotRunning is returned by Send/Publish outside the Running state.
	ErrRuntimeNotRunning = errors.New("runtime is not running")

	// ErrCancelled is returned when a suspension point observes a signaled
	// CancellationToken. It always aborts the entire in-flight call chain.
	ErrCancelled = errors.New("operation cancelled")

	// ErrToolDenied marks a tool call rejected by policy (e.g. a human
	// reviewer) rather than by a genuine execution failure.
	ErrToolDenied = errors.New("tool call denied")
)

// UnhandledMessageError reports that a routed message reached an agent with
// no handler registered for the message's runtime type.
type UnhandledMessageError struct {
	Recipient AgentID
	Message   any
}

func (e *UnhandledMessageError) Error() string {
	return fmt.Sprintf("agent %s has no handler for message type %T", e.Recipient, e.Message)
}

// InterventionAbortedError wraps a failure raised by an intervention handler.
// It aborts delivery before the message reaches the recipient and is never
// recoverable locally.
type InterventionAbortedError struct {
	Hook string // "on_send", "on_publish" or "on_response"
	Err  error
}

func (e *InterventionAbortedError) Error() string {
	return fmt.Sprintf("intervention handler aborted %s: %v", e.Hook, e.Err)
}

func (e *InterventionAbortedError) Unwrap() error { return e.Err }

// ToolExecutionError is the named tool error carrying the failed call's
// identity. Inside the caller loop it is recoverable (folded into history as
// an error-flagged ToolResult) unless it wraps an InterventionAbortedError.
type ToolExecutionError struct {
	CallID string
	Tool   string
	Reason string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed (call %s): %s", e.Tool, e.CallID, e.Reason)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// HandlerError wraps a failure raised by a recipient agent's own handler. It
// propagates to the original Send caller.
type HandlerError struct {
	Recipient AgentID
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler of agent %s failed: %v", e.Recipient, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
