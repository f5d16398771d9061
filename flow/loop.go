package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/logging"
	"github.com/hupe1980/agentbus/model"
	"github.com/hupe1980/agentbus/runtime"
	"github.com/hupe1980/agentbus/session"
)

// ErrMaxTurns is returned when a run exceeds the configured turn limit
// without the model producing a final text answer.
var ErrMaxTurns = errors.New("flow: maximum model turns exceeded")

// ToolCallLoopOptions configures a ToolCallLoop.
type ToolCallLoopOptions struct {
	// Logger receives per-turn diagnostics. Defaults to a no-op logger.
	Logger logging.Logger

	// MaxTurns bounds the number of model calls in one Run. Defaults to 10.
	MaxTurns int

	// History persists the conversation across runs. Nil keeps history
	// only for the duration of a single Run.
	History session.Store

	// ConversationID selects the history entry when History is set.
	ConversationID string
}

// ToolCallLoop drives a model/executor conversation to completion.
//
// Each Run asks the model for a turn. When the turn requests function calls
// they are sent one by one, in the model's order, to the executor agent;
// every call produces exactly one result message correlated by call ID.
// A turn without function calls is the final answer and ends the run.
type ToolCallLoop struct {
	runtime  *runtime.Runtime
	model    model.Model
	executor core.AgentID
	tools    []model.ToolDefinition
	opts     ToolCallLoopOptions
}

// Result is the outcome of a completed run.
type Result struct {
	// History is the full conversation after the run, including the
	// final assistant message.
	History []model.Message

	// FinalText is the model's closing answer.
	FinalText string

	// Turns is the number of model calls the run used.
	Turns int
}

// NewToolCallLoop creates a loop that routes the model's function calls to
// the executor agent through the runtime.
func NewToolCallLoop(rt *runtime.Runtime, m model.Model, executor core.AgentID, tools []model.ToolDefinition, optFns ...func(o *ToolCallLoopOptions)) *ToolCallLoop {
	opts := ToolCallLoopOptions{
		Logger:   logging.NoOpLogger{},
		MaxTurns: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ToolCallLoop{
		runtime:  rt,
		model:    m,
		executor: executor,
		tools:    tools,
		opts:     opts,
	}
}

// Run executes the loop until the model answers with plain text, the token is
// cancelled, an intervention aborts a call, or MaxTurns is reached. A nil
// token gets a fresh one.
func (l *ToolCallLoop) Run(ctx context.Context, token *core.CancellationToken, messages ...model.Message) (*Result, error) {
	if token == nil {
		token = core.NewCancellationToken()
	}

	history, err := l.loadHistory(messages)
	if err != nil {
		return nil, err
	}

	for turn := 0; ; turn++ {
		if turn >= l.opts.MaxTurns {
			return nil, fmt.Errorf("%w after %d turns", ErrMaxTurns, turn)
		}

		if err := cancellationErr(ctx, token); err != nil {
			return nil, err
		}

		resp, err := l.generate(ctx, token, history)
		if err != nil {
			return nil, fmt.Errorf("model turn %d failed: %w", turn+1, err)
		}

		assistant := model.Message{
			Role:          model.RoleAssistant,
			Content:       resp.Text,
			FunctionCalls: resp.FunctionCalls,
		}
		if history, err = l.append(history, assistant); err != nil {
			return nil, err
		}

		if !resp.RequestsTools() {
			l.opts.Logger.Debug("run finished", "turns", turn+1)

			return &Result{History: history, FinalText: resp.Text, Turns: turn + 1}, nil
		}

		results, err := l.executeCalls(ctx, token, resp.FunctionCalls)
		if err != nil {
			return nil, err
		}

		if history, err = l.append(history, model.ToolMessage(results...)); err != nil {
			return nil, err
		}
	}
}

// executeCalls sends each function call to the executor in order and returns
// one result per call. Intervention aborts and cancellation are fatal; other
// failures are folded into error-flagged results so the model can recover.
func (l *ToolCallLoop) executeCalls(ctx context.Context, token *core.CancellationToken, calls []core.FunctionCall) ([]core.ToolResult, error) {
	results := make([]core.ToolResult, 0, len(calls))

	for _, call := range calls {
		if err := cancellationErr(ctx, token); err != nil {
			return nil, err
		}

		mctx := core.NewMessageContext(ctx, token)

		reply, err := l.runtime.Send(call, l.executor, mctx)

		switch {
		case err != nil && isFatal(err):
			return nil, &core.ToolExecutionError{
				CallID: call.ID,
				Tool:   call.Name,
				Reason: "call aborted",
				Err:    err,
			}

		case err != nil:
			l.opts.Logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)

			results = append(results, core.ToolResult{
				CallID:  call.ID,
				Content: err.Error(),
				IsError: true,
			})

		case reply == nil:
			// Dropped by an intervention handler.
			l.opts.Logger.Info("tool call dropped", "tool", call.Name, "call_id", call.ID)

			results = append(results, core.ToolResult{
				CallID:  call.ID,
				Content: "tool call was not delivered",
				IsError: true,
			})

		default:
			result, ok := reply.(core.ToolResult)
			if !ok {
				results = append(results, core.ToolResult{
					CallID:  call.ID,
					Content: fmt.Sprintf("unexpected executor reply of type %T", reply),
					IsError: true,
				})

				continue
			}

			results = append(results, result)
		}
	}

	return results, nil
}

// generate bridges the cancellation token into the model call's context so a
// cancel interrupts in-flight generation.
func (l *ToolCallLoop) generate(ctx context.Context, token *core.CancellationToken, history []model.Message) (*model.Response, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	token.OnCancel(cancel)

	return l.model.Generate(genCtx, model.Request{Messages: history, Tools: l.tools})
}

func (l *ToolCallLoop) loadHistory(messages []model.Message) ([]model.Message, error) {
	if l.opts.History == nil {
		return append([]model.Message(nil), messages...), nil
	}

	if err := l.opts.History.Append(l.opts.ConversationID, messages...); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	history, err := l.opts.History.History(l.opts.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return history, nil
}

func (l *ToolCallLoop) append(history []model.Message, msg model.Message) ([]model.Message, error) {
	if l.opts.History != nil {
		if err := l.opts.History.Append(l.opts.ConversationID, msg); err != nil {
			return nil, fmt.Errorf("append history: %w", err)
		}
	}

	return append(history, msg), nil
}

func cancellationErr(ctx context.Context, token *core.CancellationToken) error {
	if err := token.Err(); err != nil {
		return err
	}

	return ctx.Err()
}

// isFatal reports whether a Send failure must end the run instead of being
// folded into the conversation.
func isFatal(err error) bool {
	var aborted *core.InterventionAbortedError
	if errors.As(err, &aborted) {
		return true
	}

	return errors.Is(err, core.ErrCancelled) || errors.Is(err, context.Canceled)
}
