package tool

import (
	"encoding/json"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/internal/util"
)

// FunctionFunc is the signature of a function exposed as a tool.
type FunctionFunc func(mctx *core.MessageContext, args map[string]any) (any, error)

// FunctionTool adapts a Go function into a Tool. Arguments are validated
// against the schema before the function runs.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          FunctionFunc
}

// NewFunctionTool creates a FunctionTool with an explicit parameter schema.
// A nil schema accepts any arguments.
func NewFunctionTool(name, description string, parameters map[string]any, fn FunctionFunc) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct creates a FunctionTool whose schema is derived
// from the struct type T. The raw argument map is decoded into a T before the
// function runs, so the function works with typed fields.
func NewFunctionToolFromStruct[T any](name, description string, fn func(mctx *core.MessageContext, args T) (any, error)) *FunctionTool {
	var zero T
	schema := util.CreateSchema(zero)

	wrapped := func(mctx *core.MessageContext, raw map[string]any) (any, error) {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, NewValidationError(name, "cannot encode arguments: %v", err)
		}

		var args T
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, NewValidationError(name, "cannot decode arguments: %v", err)
		}

		return fn(mctx, args)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  schema,
		fn:          wrapped,
	}
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the tool description.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema for the tool's arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema and invokes the wrapped function.
func (t *FunctionTool) Call(mctx *core.MessageContext, args map[string]any) (any, error) {
	if err := mctx.Err(); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return nil, NewValidationError(t.name, "%v", err)
	}

	return t.fn(mctx, args)
}
