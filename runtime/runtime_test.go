package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/intervention"
)

type echoReq struct{ Text string }

type echoResp struct{ Text string }

type recordReq struct{ Seq int }

type notice struct{ Text string }

type echoAgent struct {
	*core.BaseAgent
	calls int
}

func newEchoAgent(id core.AgentID) *echoAgent {
	a := &echoAgent{BaseAgent: core.NewBaseAgent(id)}
	core.Handle(a.BaseAgent, func(_ *core.MessageContext, msg echoReq) (any, error) {
		a.calls++
		return echoResp{Text: msg.Text}, nil
	})
	return a
}

type recorderAgent struct {
	*core.BaseAgent
	seen []int
}

func newRecorderAgent(id core.AgentID) *recorderAgent {
	a := &recorderAgent{BaseAgent: core.NewBaseAgent(id)}
	core.Handle(a.BaseAgent, func(_ *core.MessageContext, msg recordReq) (any, error) {
		a.seen = append(a.seen, msg.Seq)
		return msg.Seq, nil
	})
	return a
}

func startedRuntime(t *testing.T, optFns ...func(o *Options)) *Runtime {
	t.Helper()
	rt := New(optFns...)
	t.Cleanup(func() { _ = rt.Stop() })
	return rt
}

func TestSendRoundTrip(t *testing.T) {
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	out, err := rt.Send(echoReq{Text: "hello"}, core.NewAgentID("echo", "default"), nil)
	require.NoError(t, err)
	assert.Equal(t, echoResp{Text: "hello"}, out)
}

func TestSendWhileStopped(t *testing.T) {
	rt := New()
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))

	_, err := rt.Send(echoReq{Text: "x"}, core.NewAgentID("echo", "default"), nil)
	assert.ErrorIs(t, err, core.ErrRuntimeNotRunning)

	err = rt.Publish(notice{Text: "x"}, "events", nil)
	assert.ErrorIs(t, err, core.ErrRuntimeNotRunning)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	rt := New()
	factory := func(id core.AgentID) (core.Agent, error) { return newEchoAgent(id), nil }

	require.NoError(t, rt.Register("echo", factory))
	err := rt.Register("echo", factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestLazySingletonPerKey(t *testing.T) {
	created := map[string]int{}
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		created[id.Key]++
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	a := core.NewAgentID("echo", "conv-a")
	b := core.NewAgentID("echo", "conv-b")

	for i := 0; i < 3; i++ {
		_, err := rt.Send(echoReq{Text: "x"}, a, nil)
		require.NoError(t, err)
	}
	_, err := rt.Send(echoReq{Text: "y"}, b, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, created["conv-a"], "repeated sends must reuse the instance")
	assert.Equal(t, 1, created["conv-b"])
}

func TestPerRecipientFIFO(t *testing.T) {
	var instance *recorderAgent
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("recorder", func(id core.AgentID) (core.Agent, error) {
		instance = newRecorderAgent(id)
		return instance, nil
	}))
	require.NoError(t, rt.Start())

	id := core.NewAgentID("recorder", "default")
	for i := 0; i < 10; i++ {
		_, err := rt.Send(recordReq{Seq: i}, id, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, instance.seen)
}

func TestUnhandledMessageType(t *testing.T) {
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	_, err := rt.Send(notice{Text: "?"}, core.NewAgentID("echo", "default"), nil)
	var unhandled *core.UnhandledMessageError
	require.ErrorAs(t, err, &unhandled)
}

func TestUnknownAgentType(t *testing.T) {
	rt := startedRuntime(t)
	require.NoError(t, rt.Start())

	_, err := rt.Send(echoReq{}, core.NewAgentID("ghost", "default"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no factory registered")
}

type dropAllHandler struct{ intervention.PassthroughHandler }

func (dropAllHandler) OnSend(*core.MessageContext, any, core.AgentID) (intervention.Decision, error) {
	return intervention.Drop(), nil
}

func TestDropSuppressesDelivery(t *testing.T) {
	var instance *echoAgent
	rt := startedRuntime(t, func(o *Options) {
		o.Handlers = []intervention.Handler{dropAllHandler{}}
	})
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		instance = newEchoAgent(id)
		return instance, nil
	}))
	require.NoError(t, rt.Start())

	out, err := rt.Send(echoReq{Text: "never"}, core.NewAgentID("echo", "default"), nil)
	require.NoError(t, err, "drop is a no-op, not an error")
	assert.Nil(t, out)
	assert.Nil(t, instance, "dropped message must not even instantiate the agent")
}

type failSendHandler struct {
	intervention.PassthroughHandler
	err error
}

func (h failSendHandler) OnSend(*core.MessageContext, any, core.AgentID) (intervention.Decision, error) {
	return intervention.Decision{}, h.err
}

func TestInterventionErrorAbortsDelivery(t *testing.T) {
	cause := errors.New("audit rejected")
	var instance *echoAgent
	rt := startedRuntime(t, func(o *Options) {
		o.Handlers = []intervention.Handler{failSendHandler{err: cause}}
	})
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		instance = newEchoAgent(id)
		return instance, nil
	}))
	require.NoError(t, rt.Start())

	_, err := rt.Send(echoReq{Text: "x"}, core.NewAgentID("echo", "default"), nil)
	var aborted *core.InterventionAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, instance)
}

type upperResponseHandler struct{ intervention.PassthroughHandler }

func (upperResponseHandler) OnResponse(_ *core.MessageContext, msg any, _ core.AgentID) (intervention.Decision, error) {
	if resp, ok := msg.(echoResp); ok {
		return intervention.Forward(echoResp{Text: resp.Text + "!"}), nil
	}
	return intervention.Forward(msg), nil
}

func TestResponseHookTransformsReply(t *testing.T) {
	rt := startedRuntime(t, func(o *Options) {
		o.Handlers = []intervention.Handler{upperResponseHandler{}}
	})
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	out, err := rt.Send(echoReq{Text: "hey"}, core.NewAgentID("echo", "default"), nil)
	require.NoError(t, err)
	assert.Equal(t, echoResp{Text: "hey!"}, out)
}

type relayAgent struct {
	*core.BaseAgent
	rt     *Runtime
	target core.AgentID
}

func newRelayAgent(id core.AgentID, rt *Runtime, target core.AgentID) *relayAgent {
	a := &relayAgent{BaseAgent: core.NewBaseAgent(id), rt: rt, target: target}
	core.Handle(a.BaseAgent, func(mctx *core.MessageContext, msg echoReq) (any, error) {
		// Nested send from within a handler body.
		return a.rt.Send(msg, a.target, mctx.WithSender(id))
	})
	return a
}

func TestReentrantSendFromHandler(t *testing.T) {
	rt := startedRuntime(t)
	target := core.NewAgentID("echo", "default")
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Register("relay", func(id core.AgentID) (core.Agent, error) {
		return newRelayAgent(id, rt, target), nil
	}))
	require.NoError(t, rt.Start())

	out, err := rt.Send(echoReq{Text: "nested"}, core.NewAgentID("relay", "default"), nil)
	require.NoError(t, err)
	assert.Equal(t, echoResp{Text: "nested"}, out)
}

type subscriberAgent struct {
	*core.BaseAgent
	notices chan string
}

func newSubscriberAgent(id core.AgentID, notices chan string) *subscriberAgent {
	a := &subscriberAgent{BaseAgent: core.NewBaseAgent(id), notices: notices}
	core.Handle(a.BaseAgent, func(_ *core.MessageContext, msg notice) (any, error) {
		notices <- fmt.Sprintf("%s:%s", id.Key, msg.Text)
		return nil, nil
	})
	return a
}

func TestPublishFanOut(t *testing.T) {
	notices := make(chan string, 4)
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("subscriber", func(id core.AgentID) (core.Agent, error) {
		return newSubscriberAgent(id, notices), nil
	}))
	require.NoError(t, rt.Subscribe("events", core.NewAgentID("subscriber", "a")))
	require.NoError(t, rt.Subscribe("events", core.NewAgentID("subscriber", "b")))
	require.NoError(t, rt.Start())

	require.NoError(t, rt.Publish(notice{Text: "ping"}, "events", nil))
	require.NoError(t, rt.Stop()) // drains pending deliveries

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case n := <-notices:
			got[n] = true
		case <-time.After(time.Second):
			t.Fatal("missing publish delivery")
		}
	}
	assert.True(t, got["a:ping"])
	assert.True(t, got["b:ping"])
}

func TestSubscribeUnknownType(t *testing.T) {
	rt := New()
	err := rt.Subscribe("events", core.NewAgentID("nobody", "x"))
	require.Error(t, err)
}

func TestSendCancelledToken(t *testing.T) {
	rt := startedRuntime(t)
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	token := core.NewCancellationToken()
	token.Cancel()
	mctx := core.NewMessageContext(context.Background(), token)

	_, err := rt.Send(echoReq{Text: "late"}, core.NewAgentID("echo", "default"), mctx)
	assert.ErrorIs(t, err, core.ErrCancelled)
}

func TestStopDrainsAndRejects(t *testing.T) {
	rt := New()
	require.NoError(t, rt.Register("echo", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	}))
	require.NoError(t, rt.Start())

	_, err := rt.Send(echoReq{Text: "x"}, core.NewAgentID("echo", "default"), nil)
	require.NoError(t, err)

	require.NoError(t, rt.Stop())

	_, err = rt.Send(echoReq{Text: "y"}, core.NewAgentID("echo", "default"), nil)
	assert.ErrorIs(t, err, core.ErrRuntimeNotRunning)

	assert.ErrorIs(t, rt.Stop(), core.ErrRuntimeNotRunning)
}

func TestRegisterAfterStartRejected(t *testing.T) {
	rt := startedRuntime(t)
	require.NoError(t, rt.Start())

	err := rt.Register("late", func(id core.AgentID) (core.Agent, error) {
		return newEchoAgent(id), nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}
