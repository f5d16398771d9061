package core

import (
	"context"

	"github.com/google/uuid"
)

// FunctionCall describes a tool/function invocation request emitted by a
// reasoning model. Arguments carries the serialized (JSON) argument payload.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult is the outcome of executing a FunctionCall, correlated back to
// its originating call by CallID. Consumers must match on CallID, never on
// position.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// NewCallID generates a unique identifier for a function call.
func NewCallID() string { return uuid.NewString() }

// MessageContext carries per-delivery metadata alongside a routed message:
// the ambient Context, the optional sender identity, the cancellation token
// for the current call chain and, for published messages, the topic.
//
// A MessageContext is created once per top-level call and threaded through
// nested sends so the whole chain shares one cancellation scope.
type MessageContext struct {
	Context      context.Context
	Sender       *AgentID
	Cancellation *CancellationToken
	Topic        string
}

// NewMessageContext builds a context for a top-level call. A nil token gets a
// fresh one so every call chain is individually cancellable.
func NewMessageContext(ctx context.Context, token *CancellationToken) *MessageContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if token == nil {
		token = NewCancellationToken()
	}
	return &MessageContext{Context: ctx, Cancellation: token}
}

// WithSender returns a shallow copy attributed to the given sender.
func (m *MessageContext) WithSender(id AgentID) *MessageContext {
	cp := *m
	cp.Sender = &id
	return &cp
}

// Err reports why the delivery chain can no longer proceed: a signaled
// cancellation token, a done ambient context, or nil.
func (m *MessageContext) Err() error {
	if m.Cancellation != nil && m.Cancellation.Cancelled() {
		return ErrCancelled
	}
	if m.Context != nil {
		if err := m.Context.Err(); err != nil {
			return err
		}
	}
	return nil
}
