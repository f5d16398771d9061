// Package model defines the reasoning-component contract consumed by the
// caller loop: given an ordered conversation history and a set of tool
// definitions, a Model returns either final answer text or an ordered batch
// of function calls. Provider adapters live in the subpackages anthropic,
// openai and google; ScriptedModel serves tests and examples.
package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentbus/core"
)

// Conversation roles used in Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation history. An assistant message may
// carry FunctionCalls; a tool message carries the correlated ToolResults.
type Message struct {
	Role          string              `json:"role"`
	Content       string              `json:"content,omitempty"`
	FunctionCalls []core.FunctionCall `json:"function_calls,omitempty"`
	ToolResults   []core.ToolResult   `json:"tool_results,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// UserMessage builds a user-role message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage builds an assistant-role message carrying final text.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// ToolMessage wraps executed tool results for the next model turn.
func ToolMessage(results ...core.ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results}
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function-typed tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized model input produced by the caller loop.
type Request struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Response is one completed model turn: either final Text, or one or more
// FunctionCalls to execute (in the given order) before the next turn. Exactly
// one of the two is populated.
type Response struct {
	Text          string              `json:"text,omitempty"`
	FunctionCalls []core.FunctionCall `json:"function_calls,omitempty"`
}

// RequestsTools reports whether the turn asks for tool execution.
func (r *Response) RequestsTools() bool { return len(r.FunctionCalls) > 0 }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "google", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Generate must
// honor ctx cancellation; the caller loop bridges its CancellationToken into
// ctx before every call.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ScriptedModel is a lightweight in-memory Model useful for tests and
// examples: it replays a fixed sequence of turns, one per Generate call.
type ScriptedModel struct {
	info     Info
	turns    []Response
	pos      int
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel that plays back turns in order.
func NewScriptedModel(turns ...Response) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "test", SupportsTools: true},
		turns: turns,
	}
}

// Generate implements Model; it records the request and pops the next turn.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.requests = append(m.requests, req)

	if m.pos >= len(m.turns) {
		return nil, fmt.Errorf("scripted model exhausted after %d turns", len(m.turns))
	}

	turn := m.turns[m.pos]
	m.pos++

	return &turn, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// Requests returns every request seen so far, in call order.
func (m *ScriptedModel) Requests() []Request { return m.requests }
