package agent

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/logging"
	"github.com/hupe1980/agentbus/tool"
)

// ToolAgentOptions configures a ToolAgent.
type ToolAgentOptions struct {
	Logger logging.Logger
}

// ToolAgent executes core.FunctionCall messages against a set of tools.
//
// Each call runs the tool named by the message, with the JSON arguments
// decoded into a map. A successful call produces a core.ToolResult; a failed
// one produces a *core.ToolExecutionError carrying the call's identity so the
// caller can correlate the failure. Panics inside tools are recovered and
// reported as execution errors.
type ToolAgent struct {
	*core.BaseAgent

	tools  map[string]tool.Tool
	logger logging.Logger
}

// NewToolAgent creates a ToolAgent serving the given tools.
func NewToolAgent(id core.AgentID, tools []tool.Tool, optFns ...func(o *ToolAgentOptions)) *ToolAgent {
	opts := ToolAgentOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}

	a := &ToolAgent{
		BaseAgent: core.NewBaseAgent(id),
		tools:     registry,
		logger:    opts.Logger,
	}

	core.Handle(a.BaseAgent, a.handleFunctionCall)

	return a
}

// Tools returns the tools served by this agent, keyed by name.
func (a *ToolAgent) Tools() map[string]tool.Tool {
	return a.tools
}

func (a *ToolAgent) handleFunctionCall(mctx *core.MessageContext, call core.FunctionCall) (any, error) {
	impl, ok := a.tools[call.Name]
	if !ok {
		return nil, &core.ToolExecutionError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: "tool not registered",
		}
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return nil, &core.ToolExecutionError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: fmt.Sprintf("invalid arguments: %v", err),
			Err:    err,
		}
	}

	result, err := a.callTool(mctx, impl, call, args)
	if err != nil {
		a.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)

		return nil, &core.ToolExecutionError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: err.Error(),
			Err:    err,
		}
	}

	content, err := stringifyResult(result)
	if err != nil {
		return nil, &core.ToolExecutionError{
			CallID: call.ID,
			Tool:   call.Name,
			Reason: fmt.Sprintf("cannot encode result: %v", err),
			Err:    err,
		}
	}

	a.logger.Debug("tool call succeeded", "tool", call.Name, "call_id", call.ID)

	return core.ToolResult{CallID: call.ID, Content: content}, nil
}

// callTool isolates tool execution so a panicking tool cannot take down the
// runtime loop.
func (a *ToolAgent) callTool(mctx *core.MessageContext, impl tool.Tool, call core.FunctionCall, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tool panicked", "tool", call.Name, "call_id", call.ID, "recover", r)
			err = fmt.Errorf("panic in tool %s: %v\n%s", call.Name, r, debug.Stack())
		}
	}()

	return impl.Call(mctx, args)
}

func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

func stringifyResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}

		return string(data), nil
	}
}
