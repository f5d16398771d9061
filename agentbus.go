// Package agentbus provides a high-level façade over the message runtime and
// the tool-call loop, enabling rapid construction of agent systems. Most
// applications interact with this package by:
//  1. Creating an AgentBus via New() (optionally adding intervention handlers)
//  2. Registering agent factories and topic subscriptions
//  3. Starting the bus, then exchanging messages via Send and Publish or
//     running a model against tools via RunTools
//
// The façade delegates routing to runtime.Runtime while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a structured logger and a
// durable session store.
package agentbus

import (
	"context"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/flow"
	"github.com/hupe1980/agentbus/intervention"
	"github.com/hupe1980/agentbus/logging"
	"github.com/hupe1980/agentbus/model"
	"github.com/hupe1980/agentbus/runtime"
	"github.com/hupe1980/agentbus/session"
)

// Options configures the AgentBus instance.
type Options struct {
	// Handlers are intervention handlers applied to every send, publish
	// and response, in order.
	Handlers []intervention.Handler

	// MailboxSize sets the runtime's queue capacity.
	MailboxSize int

	// SessionStore persists conversation history for RunTools.
	// Defaults to an in-memory implementation.
	SessionStore session.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentBus is the high-level façade aggregating the runtime and session
// services.
type AgentBus struct {
	opts    Options
	runtime *runtime.Runtime
}

// New creates a new AgentBus with optional overrides.
func New(optFns ...func(o *Options)) *AgentBus {
	opts := Options{
		MailboxSize:  128,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	rt := runtime.New(func(o *runtime.Options) {
		o.Logger = opts.Logger
		o.MailboxSize = opts.MailboxSize
		o.Handlers = opts.Handlers
	})

	return &AgentBus{opts: opts, runtime: rt}
}

// Runtime exposes the underlying runtime for advanced use.
func (b *AgentBus) Runtime() *runtime.Runtime { return b.runtime }

// Register associates an agent type with its factory.
func (b *AgentBus) Register(t core.AgentType, factory runtime.Factory) error {
	return b.runtime.Register(t, factory)
}

// Subscribe routes messages published to topic to the given agent.
func (b *AgentBus) Subscribe(topic string, id core.AgentID) error {
	return b.runtime.Subscribe(topic, id)
}

// Start begins message processing.
func (b *AgentBus) Start() error { return b.runtime.Start() }

// Stop drains in-flight messages and halts processing.
func (b *AgentBus) Stop() error { return b.runtime.Stop() }

// Send routes msg to recipient and waits for the reply.
func (b *AgentBus) Send(ctx context.Context, msg any, recipient core.AgentID) (any, error) {
	return b.runtime.Send(msg, recipient, core.NewMessageContext(ctx, nil))
}

// Publish delivers msg to every subscriber of topic without waiting for
// replies.
func (b *AgentBus) Publish(ctx context.Context, msg any, topic string) error {
	return b.runtime.Publish(msg, topic, core.NewMessageContext(ctx, nil))
}

// RunTools runs a tool-call loop: the model's function calls are routed to
// the executor agent until the model produces a final text answer.
// Conversation history is kept in the configured session store under
// conversationID.
func (b *AgentBus) RunTools(ctx context.Context, m model.Model, executor core.AgentID, tools []model.ToolDefinition, conversationID string, messages ...model.Message) (*flow.Result, error) {
	loop := flow.NewToolCallLoop(b.runtime, m, executor, tools, func(o *flow.ToolCallLoopOptions) {
		o.Logger = b.opts.Logger
		o.History = b.opts.SessionStore
		o.ConversationID = conversationID
	})

	return loop.Run(ctx, nil, messages...)
}
