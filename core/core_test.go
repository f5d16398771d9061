package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentIDEquality(t *testing.T) {
	a := NewAgentID("tool_executor_agent", "conv-1")
	b := NewAgentID("tool_executor_agent", "conv-1")
	c := NewAgentID("tool_executor_agent", "conv-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "tool_executor_agent/conv-1", a.String())

	// Value semantics: usable as a map key.
	m := map[AgentID]int{a: 1}
	assert.Equal(t, 1, m[b])
}

func TestCancellationToken(t *testing.T) {
	token := NewCancellationToken()
	assert.False(t, token.Cancelled())
	assert.NoError(t, token.Err())

	fired := 0
	token.OnCancel(func() { fired++ })

	token.Cancel()
	token.Cancel() // idempotent

	assert.True(t, token.Cancelled())
	assert.ErrorIs(t, token.Err(), ErrCancelled)
	assert.Equal(t, 1, fired)

	select {
	case <-token.Done():
	default:
		t.Fatal("Done channel not closed after Cancel")
	}

	// Late registration runs immediately.
	token.OnCancel(func() { fired++ })
	assert.Equal(t, 2, fired)
}

func TestMessageContextErr(t *testing.T) {
	mctx := NewMessageContext(context.Background(), nil)
	require.NotNil(t, mctx.Cancellation)
	assert.NoError(t, mctx.Err())

	mctx.Cancellation.Cancel()
	assert.ErrorIs(t, mctx.Err(), ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mctx = NewMessageContext(ctx, NewCancellationToken())
	assert.ErrorIs(t, mctx.Err(), context.Canceled)
}

type ping struct{ Text string }

type pong struct{ Text string }

type otherMsg struct{}

func TestBaseAgentDispatch(t *testing.T) {
	id := NewAgentID("echo", "default")
	a := NewBaseAgent(id)
	Handle(a, func(_ *MessageContext, msg ping) (any, error) {
		return pong{Text: msg.Text}, nil
	})

	mctx := NewMessageContext(context.Background(), nil)

	out, err := a.OnMessage(mctx, ping{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, pong{Text: "hi"}, out)

	_, err = a.OnMessage(mctx, otherMsg{})
	var unhandled *UnhandledMessageError
	require.ErrorAs(t, err, &unhandled)
	assert.Equal(t, id, unhandled.Recipient)
}

func TestBaseAgentMultipleHandlers(t *testing.T) {
	a := NewBaseAgent(NewAgentID("multi", "k"))
	Handle(a, func(_ *MessageContext, msg ping) (any, error) { return "ping", nil })
	Handle(a, func(_ *MessageContext, msg otherMsg) (any, error) { return "other", nil })

	mctx := NewMessageContext(context.Background(), nil)

	out, err := a.OnMessage(mctx, ping{})
	require.NoError(t, err)
	assert.Equal(t, "ping", out)

	out, err = a.OnMessage(mctx, otherMsg{})
	require.NoError(t, err)
	assert.Equal(t, "other", out)
}
