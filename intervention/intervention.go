package intervention

import "github.com/hupe1980/agentbus/core"

// Decision is the outcome of one intervention hook: forward a (possibly
// transformed) message, or drop it. An explicit two-variant result keeps
// drop-vs-error unambiguous at the type level.
type Decision struct {
	message any
	drop    bool
}

// Forward continues the chain with msg.
func Forward(msg any) Decision { return Decision{message: msg} }

// Drop suppresses delivery. Subsequent handlers are skipped and the operation
// completes as a no-op, observable to the caller only as "no effect".
func Drop() Decision { return Decision{drop: true} }

// Dropped reports whether the decision suppresses delivery.
func (d Decision) Dropped() bool { return d.drop }

// Message returns the message to continue with. Only meaningful when
// Dropped() is false.
func (d Decision) Message() any { return d.message }

// Handler intercepts messages in flight. All three hooks are invoked
// synchronously with respect to the operation they intercept; the operation
// does not proceed until the full chain has completed. Implementations
// needing only some hooks should embed PassthroughHandler.
type Handler interface {
	// OnSend runs before a message is routed to recipient.
	OnSend(mctx *core.MessageContext, msg any, recipient core.AgentID) (Decision, error)

	// OnPublish runs before each independent delivery of a published message.
	OnPublish(mctx *core.MessageContext, msg any, topic string) (Decision, error)

	// OnResponse runs on a handler's reply before it returns to the sender.
	OnResponse(mctx *core.MessageContext, msg any, sender core.AgentID) (Decision, error)
}

// PassthroughHandler forwards every message unchanged. Embed it so a handler
// only has to implement the hooks it cares about.
type PassthroughHandler struct{}

// OnSend forwards msg unchanged.
func (PassthroughHandler) OnSend(_ *core.MessageContext, msg any, _ core.AgentID) (Decision, error) {
	return Forward(msg), nil
}

// OnPublish forwards msg unchanged.
func (PassthroughHandler) OnPublish(_ *core.MessageContext, msg any, _ string) (Decision, error) {
	return Forward(msg), nil
}

// OnResponse forwards msg unchanged.
func (PassthroughHandler) OnResponse(_ *core.MessageContext, msg any, _ core.AgentID) (Decision, error) {
	return Forward(msg), nil
}

// Chain runs handlers strictly in registration order. A Drop short-circuits
// the remaining handlers; an error aborts the whole delivery.
type Chain struct {
	handlers []Handler
}

// NewChain builds a chain preserving handler order.
func NewChain(handlers ...Handler) *Chain {
	return &Chain{handlers: handlers}
}

// Append adds a handler to the end of the chain. Must only be called before
// the owning runtime starts.
func (c *Chain) Append(h Handler) { c.handlers = append(c.handlers, h) }

// Len returns the number of registered handlers.
func (c *Chain) Len() int { return len(c.handlers) }

// Send runs the on_send hook chain. It returns the final message, whether
// delivery was dropped, or an abort error.
func (c *Chain) Send(mctx *core.MessageContext, msg any, recipient core.AgentID) (any, bool, error) {
	return c.run("on_send", msg, func(h Handler, m any) (Decision, error) {
		return h.OnSend(mctx, m, recipient)
	})
}

// Publish runs the on_publish hook chain for one delivery.
func (c *Chain) Publish(mctx *core.MessageContext, msg any, topic string) (any, bool, error) {
	return c.run("on_publish", msg, func(h Handler, m any) (Decision, error) {
		return h.OnPublish(mctx, m, topic)
	})
}

// Response runs the on_response hook chain on a handler's reply.
func (c *Chain) Response(mctx *core.MessageContext, msg any, sender core.AgentID) (any, bool, error) {
	return c.run("on_response", msg, func(h Handler, m any) (Decision, error) {
		return h.OnResponse(mctx, m, sender)
	})
}

func (c *Chain) run(hook string, msg any, invoke func(Handler, any) (Decision, error)) (any, bool, error) {
	current := msg
	for _, h := range c.handlers {
		decision, err := invoke(h, current)
		if err != nil {
			return nil, false, &core.InterventionAbortedError{Hook: hook, Err: err}
		}
		if decision.Dropped() {
			return nil, true, nil
		}
		current = decision.Message()
	}
	return current, false, nil
}
