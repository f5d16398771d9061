package core

import "reflect"

// Agent is an addressable unit of behavior. The runtime resolves an instance
// per AgentID (lazily, one per key) and delivers every routed message through
// OnMessage. Implementations are never called concurrently; the runtime's
// single-threaded delivery discipline makes unsynchronized instance state safe.
type Agent interface {
	// ID returns the identity this instance was constructed for.
	ID() AgentID

	// OnMessage handles one delivered message and returns the reply value
	// surfaced to the sender (may be nil for one-way messages).
	OnMessage(mctx *MessageContext, msg any) (any, error)
}

// HandlerFunc is a type-erased message handler bound into a dispatch table.
type HandlerFunc func(mctx *MessageContext, msg any) (any, error)

// BaseAgent implements Agent with a closed dispatch table mapping a message's
// runtime type to its handler. The table is populated at construction time
// via Handle and read-only afterwards. Embed it in concrete agents:
//
//	type EchoAgent struct{ *core.BaseAgent }
//
//	func NewEchoAgent(id core.AgentID) *EchoAgent {
//	    a := &EchoAgent{BaseAgent: core.NewBaseAgent(id)}
//	    core.Handle(a.BaseAgent, func(_ *core.MessageContext, msg Ping) (any, error) {
//	        return Pong{Text: msg.Text}, nil
//	    })
//	    return a
//	}
type BaseAgent struct {
	id       AgentID
	handlers map[reflect.Type]HandlerFunc
}

// NewBaseAgent constructs an agent shell with an empty dispatch table.
func NewBaseAgent(id AgentID) *BaseAgent {
	return &BaseAgent{id: id, handlers: make(map[reflect.Type]HandlerFunc)}
}

// ID implements Agent.
func (a *BaseAgent) ID() AgentID { return a.id }

// OnMessage looks up the handler registered for the message's exact runtime
// type and invokes it. A missing handler yields an UnhandledMessageError.
func (a *BaseAgent) OnMessage(mctx *MessageContext, msg any) (any, error) {
	h, ok := a.handlers[reflect.TypeOf(msg)]
	if !ok {
		return nil, &UnhandledMessageError{Recipient: a.id, Message: msg}
	}
	return h(mctx, msg)
}

// Handle registers fn as the handler for messages of type T. A second
// registration for the same type replaces the first; an agent may register
// any number of independent handlers for distinct types.
func Handle[T any](a *BaseAgent, fn func(mctx *MessageContext, msg T) (any, error)) {
	var zero T
	a.handlers[reflect.TypeOf(zero)] = func(mctx *MessageContext, msg any) (any, error) {
		return fn(mctx, msg.(T))
	}
}
