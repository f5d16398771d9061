// Package code provides execution backends for model generated code snippets.
package code

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a code snippet and returns its combined output.
type Executor interface {
	// Execute runs the given snippet. The context bounds the execution;
	// implementations must kill the work when it is cancelled.
	Execute(ctx context.Context, snippet string) (string, error)
}

// CommandExecutorOptions configures a CommandExecutor.
type CommandExecutorOptions struct {
	// Command is the interpreter invocation the snippet is passed to on
	// stdin, e.g. ["python3"] or ["sh"]. Defaults to ["sh"].
	Command []string

	// Timeout bounds a single execution. Defaults to 30 seconds.
	Timeout time.Duration

	// Dir is the working directory for the command. Empty means the
	// current directory.
	Dir string
}

// CommandExecutor executes snippets by piping them to an interpreter
// subprocess.
type CommandExecutor struct {
	opts CommandExecutorOptions
}

// NewCommandExecutor creates a CommandExecutor.
func NewCommandExecutor(optFns ...func(o *CommandExecutorOptions)) *CommandExecutor {
	opts := CommandExecutorOptions{
		Command: []string{"sh"},
		Timeout: 30 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &CommandExecutor{opts: opts}
}

// Execute runs the snippet through the configured interpreter and returns its
// combined stdout and stderr.
func (e *CommandExecutor) Execute(ctx context.Context, snippet string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.opts.Command[0], e.opts.Command[1:]...)
	cmd.Dir = e.opts.Dir
	cmd.Stdin = strings.NewReader(snippet)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.String(), ctx.Err()
		}

		return out.String(), fmt.Errorf("code execution failed: %w", err)
	}

	return out.String(), nil
}
