// Package core defines the shared vocabulary of the AgentBus runtime: agent
// identity (AgentType, AgentID), the typed payloads exchanged between agents
// (FunctionCall, ToolResult), per-delivery metadata (MessageContext),
// cooperative cancellation (CancellationToken) and the typed error surface.
//
// It also provides the Agent contract together with BaseAgent, a dispatch
// table that routes messages to handlers by their runtime type. Handlers are
// registered once at construction time via the generic Handle helper; after
// that the table is treated as read-only.
package core
