// Package flow implements the caller side of a tool-call loop.
//
// A ToolCallLoop alternates model turns with tool execution: it asks the
// model for the next step, routes every requested function call through the
// runtime to an executor agent, folds the results back into the conversation,
// and repeats until the model answers with plain text. Recoverable tool
// failures become error-flagged results the model can react to; intervention
// aborts and cancellation end the run.
package flow
