package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/intervention"
	"github.com/hupe1980/agentbus/logging"
)

// Factory constructs the agent instance for a concrete AgentID. It is called
// at most once per key; the returned instance is reused for the lifetime of
// the runtime.
type Factory func(id core.AgentID) (core.Agent, error)

// Options configures a Runtime instance.
type Options struct {
	// Logger receives structured runtime diagnostics. Defaults to NoOp.
	Logger logging.Logger

	// MailboxSize sets the buffer of the delivery queue. Senders block once
	// the buffer is full, providing backpressure.
	MailboxSize int

	// Handlers seeds the intervention chain in order. More can be appended
	// via Intervene before Start.
	Handlers []intervention.Handler
}

type runState int

const (
	stateStopped runState = iota
	stateRunning
)

type envelopeKind int

const (
	kindSend envelopeKind = iota
	kindPublish
)

type result struct {
	value any
	err   error
}

type envelope struct {
	kind      envelopeKind
	msg       any
	recipient core.AgentID
	topic     string
	mctx      *core.MessageContext
	reply     chan result // buffered(1); nil for publish deliveries
}

// Runtime routes typed messages between registered agents through the
// intervention chain. See the package documentation for the delivery model.
type Runtime struct {
	logger      logging.Logger
	mailboxSize int
	chain       *intervention.Chain

	// Registration tables; mutated only before Start, read-only afterwards.
	factories map[core.AgentType]Factory
	subs      map[string][]core.AgentID

	// Instance map; touched only from the loop goroutine.
	instances map[core.AgentID]core.Agent

	mu       sync.RWMutex // guards state and queue swap
	state    runState
	queue    chan envelope
	loopDone chan struct{}
	pending  sync.WaitGroup
}

// New constructs a stopped Runtime with the given options.
func New(optFns ...func(o *Options)) *Runtime {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		MailboxSize: 128,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runtime{
		logger:      opts.Logger,
		mailboxSize: opts.MailboxSize,
		chain:       intervention.NewChain(opts.Handlers...),
		factories:   make(map[core.AgentType]Factory),
		subs:        make(map[string][]core.AgentID),
		instances:   make(map[core.AgentID]core.Agent),
	}
}

// Register associates an agent type with its factory. Registering the same
// type twice is a deterministic error, and registration after Start is
// rejected so the routing tables stay immutable while the loop runs.
func (r *Runtime) Register(t core.AgentType, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register %q: nil factory", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateStopped {
		return fmt.Errorf("register %q: runtime already started", t)
	}

	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("agent type %q already registered", t)
	}

	r.factories[t] = factory

	return nil
}

// Subscribe adds an agent to a topic's broadcast list. Like Register it must
// be called before Start.
func (r *Runtime) Subscribe(topic string, id core.AgentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateStopped {
		return fmt.Errorf("subscribe %q: runtime already started", topic)
	}

	if _, exists := r.factories[id.Type]; !exists {
		return fmt.Errorf("subscribe %q: agent type %q not registered", topic, id.Type)
	}

	r.subs[topic] = append(r.subs[topic], id)

	return nil
}

// Intervene appends an intervention handler to the chain. Must be called
// before Start.
func (r *Runtime) Intervene(h intervention.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateStopped {
		return errors.New("intervene: runtime already started")
	}

	r.chain.Append(h)

	return nil
}

// Start transitions Stopped -> Running and launches the delivery loop.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateRunning {
		return errors.New("runtime already running")
	}

	r.queue = make(chan envelope, r.mailboxSize)
	r.loopDone = make(chan struct{})
	r.state = stateRunning

	go r.loop(r.queue, r.loopDone)

	r.logger.Info("runtime.started", "agent_types", len(r.factories), "interventions", r.chain.Len())

	return nil
}

// Stop transitions Running -> Stopped. New sends are rejected immediately;
// deliveries already accepted are drained before Stop returns.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	if r.state != stateRunning {
		r.mu.Unlock()
		return core.ErrRuntimeNotRunning
	}
	r.state = stateStopped
	queue, done := r.queue, r.loopDone
	r.mu.Unlock()

	r.pending.Wait()
	close(queue)
	<-done

	r.logger.Info("runtime.stopped")

	return nil
}

// Send routes msg to recipient and blocks until the recipient's handler (and
// the full intervention chain) has completed, returning the handler's reply.
//
// A nil mctx starts a fresh call chain with its own CancellationToken. When
// invoked from inside a handler body the delivery executes synchronously on
// the current call stack, preserving the single-threaded discipline.
//
// A dropped message returns (nil, nil): the defined no-op outcome, not an
// error.
func (r *Runtime) Send(msg any, recipient core.AgentID, mctx *core.MessageContext) (any, error) {
	if mctx == nil {
		mctx = core.NewMessageContext(context.Background(), nil)
	}

	if err := mctx.Err(); err != nil {
		return nil, err
	}

	// Re-entrant send from a handler: stay on the delivery call stack.
	if fromLoop(mctx.Context) {
		return r.deliver(mctx, msg, recipient)
	}

	env := envelope{
		kind:      kindSend,
		msg:       msg,
		recipient: recipient,
		mctx:      mctx,
		reply:     make(chan result, 1),
	}

	queue, err := r.admit(1)
	if err != nil {
		return nil, err
	}

	select {
	case queue <- env:
	case <-mctx.Cancellation.Done():
		r.pending.Done()
		return nil, core.ErrCancelled
	case <-mctx.Context.Done():
		r.pending.Done()
		return nil, mctx.Context.Err()
	}

	select {
	case res := <-env.reply:
		return res.value, res.err
	case <-mctx.Cancellation.Done():
		return nil, core.ErrCancelled
	case <-mctx.Context.Done():
		return nil, mctx.Context.Err()
	}
}

// Publish broadcasts msg to every agent subscribed to topic, fire-and-forget.
// Each delivery independently passes the on_publish chain; per-delivery
// failures are logged, never returned.
func (r *Runtime) Publish(msg any, topic string, mctx *core.MessageContext) error {
	if mctx == nil {
		mctx = core.NewMessageContext(context.Background(), nil)
	}

	if err := mctx.Err(); err != nil {
		return err
	}

	tctx := *mctx
	tctx.Topic = topic

	r.mu.RLock()
	recipients := r.subs[topic]
	r.mu.RUnlock()

	// Nested publish from a handler executes inline for causal ordering.
	if fromLoop(mctx.Context) {
		for _, id := range recipients {
			r.deliverPublish(&tctx, msg, topic, id)
		}
		return nil
	}

	queue, err := r.admit(len(recipients))
	if err != nil {
		return err
	}

	for _, id := range recipients {
		env := envelope{kind: kindPublish, msg: msg, recipient: id, topic: topic, mctx: &tctx}
		select {
		case queue <- env:
		case <-tctx.Cancellation.Done():
			r.pending.Done()
			return core.ErrCancelled
		case <-tctx.Context.Done():
			r.pending.Done()
			return tctx.Context.Err()
		}
	}

	return nil
}

// admit reserves n pending deliveries if the runtime is Running and returns
// the active queue.
func (r *Runtime) admit(n int) (chan envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state != stateRunning {
		return nil, core.ErrRuntimeNotRunning
	}

	r.pending.Add(n)

	return r.queue, nil
}

func (r *Runtime) loop(queue chan envelope, done chan struct{}) {
	defer close(done)

	for env := range queue {
		r.process(env)
	}
}

func (r *Runtime) process(env envelope) {
	defer r.pending.Done()

	mctx := markLoop(env.mctx)

	switch env.kind {
	case kindSend:
		value, err := r.deliver(mctx, env.msg, env.recipient)
		env.reply <- result{value: value, err: err}
	case kindPublish:
		r.deliverPublish(mctx, env.msg, env.topic, env.recipient)
	}
}

// deliver executes the full send path for one message: on_send chain, lazy
// instance resolution, handler dispatch, on_response chain.
func (r *Runtime) deliver(mctx *core.MessageContext, msg any, recipient core.AgentID) (any, error) {
	if err := mctx.Err(); err != nil {
		return nil, err
	}

	out, dropped, err := r.chain.Send(mctx, msg, recipient)
	if err != nil {
		return nil, err
	}
	if dropped {
		r.logger.Debug("runtime.send.dropped", "recipient", recipient.String(), "message_type", fmt.Sprintf("%T", msg))
		return nil, nil
	}

	inst, err := r.instance(recipient)
	if err != nil {
		return nil, err
	}

	reply, err := inst.OnMessage(markLoop(mctx), out)
	if err != nil {
		var unhandled *core.UnhandledMessageError
		if errors.As(err, &unhandled) {
			return nil, err
		}
		if isCoreFailure(err) {
			return nil, err
		}
		return nil, &core.HandlerError{Recipient: recipient, Err: err}
	}

	final, dropped, err := r.chain.Response(mctx, reply, recipient)
	if err != nil {
		return nil, err
	}
	if dropped {
		return nil, nil
	}

	return final, nil
}

func (r *Runtime) deliverPublish(mctx *core.MessageContext, msg any, topic string, recipient core.AgentID) {
	if err := mctx.Err(); err != nil {
		r.logger.Debug("runtime.publish.skipped", "topic", topic, "recipient", recipient.String(), "error", err.Error())
		return
	}

	out, dropped, err := r.chain.Publish(mctx, msg, topic)
	if err != nil {
		r.logger.Warn("runtime.publish.aborted", "topic", topic, "recipient", recipient.String(), "error", err.Error())
		return
	}
	if dropped {
		r.logger.Debug("runtime.publish.dropped", "topic", topic, "recipient", recipient.String())
		return
	}

	inst, err := r.instance(recipient)
	if err != nil {
		r.logger.Warn("runtime.publish.unroutable", "topic", topic, "recipient", recipient.String(), "error", err.Error())
		return
	}

	if _, err := inst.OnMessage(markLoop(mctx), out); err != nil {
		r.logger.Warn("runtime.publish.handler_failed", "topic", topic, "recipient", recipient.String(), "error", err.Error())
	}
}

// instance returns the agent for id, constructing it on first delivery. Only
// called from the loop goroutine (or synchronously within a delivery), so the
// map needs no locking.
func (r *Runtime) instance(id core.AgentID) (core.Agent, error) {
	if inst, ok := r.instances[id]; ok {
		return inst, nil
	}

	factory, ok := r.factories[id.Type]
	if !ok {
		return nil, fmt.Errorf("no factory registered for agent type %q", id.Type)
	}

	inst, err := factory(id)
	if err != nil {
		return nil, fmt.Errorf("factory for %s: %w", id, err)
	}

	r.instances[id] = inst
	r.logger.Debug("runtime.agent.created", "agent", id.String())

	return inst, nil
}

// isCoreFailure reports whether err is already one of the typed delivery
// failures that must not be re-wrapped as a HandlerError.
func isCoreFailure(err error) bool {
	var (
		aborted *core.InterventionAbortedError
		tool    *core.ToolExecutionError
		handler *core.HandlerError
	)
	return errors.Is(err, core.ErrCancelled) ||
		errors.As(err, &aborted) ||
		errors.As(err, &tool) ||
		errors.As(err, &handler)
}

type loopMarker struct{}

// markLoop flags the context so nested sends from handler bodies are
// recognized and executed inline.
func markLoop(mctx *core.MessageContext) *core.MessageContext {
	if fromLoop(mctx.Context) {
		return mctx
	}
	cp := *mctx
	cp.Context = context.WithValue(mctx.Context, loopMarker{}, struct{}{})
	return &cp
}

func fromLoop(ctx context.Context) bool {
	return ctx != nil && ctx.Value(loopMarker{}) != nil
}
