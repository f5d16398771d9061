// Package runtime implements the AgentBus runtime core: the authoritative
// message path between agents.
//
// The runtime owns a single mailbox queue drained by one loop goroutine, so
// deliveries execute strictly one at a time in send order. Agent instances
// are resolved lazily, one singleton per AgentID key, and handler bodies may
// re-enter the runtime with nested sends, which execute synchronously on the
// same delivery call stack. Together this removes data races on agent state
// by construction: no two handler invocations ever run concurrently.
//
// Registration (agent factories, subscriptions, intervention handlers) must
// complete before Start; afterwards those tables are read-only. Send and
// Publish are only accepted while the runtime is Running, and Stop drains all
// in-flight deliveries before returning.
package runtime
