// Package intervention implements the cross-cutting hook point of the
// AgentBus runtime: an ordered chain of handlers that can observe, transform
// or veto every message at its send, publish and response stages without the
// routed agents being aware of it.
//
// Each hook returns a Decision, either Forward(message) to continue the chain
// with a possibly transformed message, or Drop() to suppress delivery as a
// defined no-op. A hook may instead return an error, which aborts the entire
// delivery and surfaces to the original caller wrapped in a
// core.InterventionAbortedError.
//
// Typical uses are auditing, rate limiting and human-in-the-loop approval of
// tool calls; AuditHandler and ToolApprovalHandler cover the common cases.
package intervention
