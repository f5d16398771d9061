package tool

import (
	"github.com/hupe1980/agentbus/code"
	"github.com/hupe1980/agentbus/core"
)

// CodeExecutionToolOptions configures NewCodeExecutionTool.
type CodeExecutionToolOptions struct {
	Name        string
	Description string
}

// NewCodeExecutionTool exposes a code.Executor as a tool. The model supplies
// the snippet in the "code" argument and receives the captured output.
func NewCodeExecutionTool(executor code.Executor, optFns ...func(o *CodeExecutionToolOptions)) *FunctionTool {
	opts := CodeExecutionToolOptions{
		Name:        "execute_code",
		Description: "Executes a code snippet and returns its output.",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The code snippet to execute.",
			},
		},
		"required": []string{"code"},
	}

	return NewFunctionTool(opts.Name, opts.Description, parameters, func(mctx *core.MessageContext, args map[string]any) (any, error) {
		snippet, _ := args["code"].(string)

		output, err := executor.Execute(mctx.Context, snippet)
		if err != nil {
			return nil, NewExecutionError(opts.Name, "%v", err)
		}

		return output, nil
	})
}
