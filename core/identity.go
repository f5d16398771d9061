package core

import "fmt"

// AgentType is an opaque tag identifying a class of agents sharing behavior,
// e.g. "tool_executor_agent". Instances of the same type are distinguished by
// the key of their AgentID.
type AgentType string

// String returns the tag value.
func (t AgentType) String() string { return string(t) }

// AgentID addresses one instance of an agent type. Key provides per-instance
// isolation (typically one key per conversation so state never leaks between
// tenants). AgentID is a comparable value type; equality is structural.
type AgentID struct {
	Type AgentType
	Key  string
}

// NewAgentID pairs an agent type with an instance key.
func NewAgentID(t AgentType, key string) AgentID {
	return AgentID{Type: t, Key: key}
}

// String renders the id as "type/key".
func (id AgentID) String() string { return fmt.Sprintf("%s/%s", id.Type, id.Key) }
