// Package tool defines the tool abstraction exposed to language models and a
// set of ready-made implementations.
//
// A Tool describes itself through a name, a description, and a JSON schema
// for its arguments, and executes through Call. Tools receive the message
// context of the call that triggered them, so they observe cancellation and
// can see which agent asked for the work.
//
// FunctionTool wraps a plain Go function as a tool, validating arguments
// against the schema before invoking it. NewCodeExecutionTool adapts a
// code.Executor so models can run generated snippets through the same
// interface.
package tool
