package intervention

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentbus/core"
)

type recordingHandler struct {
	PassthroughHandler
	name  string
	trace *[]string
}

func (h *recordingHandler) OnSend(_ *core.MessageContext, msg any, _ core.AgentID) (Decision, error) {
	*h.trace = append(*h.trace, h.name)
	return Forward(msg), nil
}

type suffixHandler struct {
	PassthroughHandler
	suffix string
}

func (h *suffixHandler) OnSend(_ *core.MessageContext, msg any, _ core.AgentID) (Decision, error) {
	return Forward(msg.(string) + h.suffix), nil
}

type dropHandler struct{ PassthroughHandler }

func (dropHandler) OnSend(*core.MessageContext, any, core.AgentID) (Decision, error) {
	return Drop(), nil
}

type failHandler struct {
	PassthroughHandler
	err error
}

func (h *failHandler) OnSend(*core.MessageContext, any, core.AgentID) (Decision, error) {
	return Decision{}, h.err
}

func newMctx() *core.MessageContext {
	return core.NewMessageContext(context.Background(), nil)
}

var testRecipient = core.NewAgentID("tool_executor_agent", "default")

func TestChainRunsInRegistrationOrder(t *testing.T) {
	var trace []string
	chain := NewChain(
		&recordingHandler{name: "first", trace: &trace},
		&recordingHandler{name: "second", trace: &trace},
		&recordingHandler{name: "third", trace: &trace},
	)

	out, dropped, err := chain.Send(newMctx(), "msg", testRecipient)
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.Equal(t, "msg", out)
	assert.Equal(t, []string{"first", "second", "third"}, trace)
}

func TestChainTransformsAccumulate(t *testing.T) {
	chain := NewChain(&suffixHandler{suffix: "-a"}, &suffixHandler{suffix: "-b"})

	out, dropped, err := chain.Send(newMctx(), "m", testRecipient)
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.Equal(t, "m-a-b", out)
}

func TestChainDropShortCircuits(t *testing.T) {
	var trace []string
	chain := NewChain(
		&recordingHandler{name: "before", trace: &trace},
		dropHandler{},
		&recordingHandler{name: "after", trace: &trace},
	)

	out, dropped, err := chain.Send(newMctx(), "msg", testRecipient)
	require.NoError(t, err)
	assert.True(t, dropped)
	assert.Nil(t, out)
	assert.Equal(t, []string{"before"}, trace, "handlers after the drop must be skipped")
}

func TestChainErrorAborts(t *testing.T) {
	cause := errors.New("policy violation")
	chain := NewChain(&failHandler{err: cause})

	_, _, err := chain.Send(newMctx(), "msg", testRecipient)
	var aborted *core.InterventionAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, "on_send", aborted.Hook)
	assert.ErrorIs(t, err, cause)
}

func TestPassthroughDefaults(t *testing.T) {
	chain := NewChain(PassthroughHandler{})
	mctx := newMctx()

	out, dropped, err := chain.Publish(mctx, 42, "events")
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.Equal(t, 42, out)

	out, dropped, err = chain.Response(mctx, "reply", testRecipient)
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.Equal(t, "reply", out)
}

func TestToolApprovalHandlerDeny(t *testing.T) {
	handler := NewToolApprovalHandler(func(*core.MessageContext, core.FunctionCall) bool { return false })
	chain := NewChain(handler)

	call := core.FunctionCall{ID: "call-1", Name: "python_exec", Arguments: `{"code":"print(1)"}`}
	_, _, err := chain.Send(newMctx(), call, testRecipient)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolDenied)

	var aborted *core.InterventionAbortedError
	assert.ErrorAs(t, err, &aborted)
}

func TestToolApprovalHandlerAllowAndIgnoreOtherTypes(t *testing.T) {
	handler := NewToolApprovalHandler(func(_ *core.MessageContext, call core.FunctionCall) bool {
		return call.Name != "rm_rf"
	})
	chain := NewChain(handler)
	mctx := newMctx()

	out, dropped, err := chain.Send(mctx, core.FunctionCall{ID: "c1", Name: "python_exec"}, testRecipient)
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.Equal(t, "python_exec", out.(core.FunctionCall).Name)

	// Non-FunctionCall messages are not subject to approval.
	out, _, err = chain.Send(mctx, "plain", testRecipient)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}
