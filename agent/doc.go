// Package agent provides ready-made agents for the runtime.
//
// ToolAgent executes function calls against a registry of tools. It is the
// standard executor side of a tool-call loop: a caller sends core.FunctionCall
// messages, the ToolAgent runs the matching tool, and each call produces
// exactly one core.ToolResult or one error.
package agent
