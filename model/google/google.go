// Package google provides a model wrapper for the Google Gemini API using
// the GenAI SDK.
package google

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/model"
	"google.golang.org/genai"
)

// Options configures the Google model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int32
	APIKey      string
}

// Model wraps the Google GenAI SDK behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a new Google model. Construction dials the GenAI backend
// and may fail, unlike the other adapters.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google genai client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// Generate adapts Gemini content generation (with function calling) into the
// final-text-or-function-calls Response contract.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	temp := float32(m.opts.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: m.opts.MaxTokens,
	}

	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, buildContents(req.Messages), config)
	if err != nil {
		return nil, fmt.Errorf("google api error: %w", err)
	}

	out := &model.Response{}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for i, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				out.Text += part.Text
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				out.FunctionCalls = append(out.FunctionCalls, core.FunctionCall{
					// Gemini does not assign call ids; synthesize stable ones.
					ID:        fmt.Sprintf("call_%d_%s", i, part.FunctionCall.Name),
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			}
		}
	}

	return out, nil
}

// buildContents converts history messages to Gemini contents. System prompts
// and tool results both travel as user-role parts, which is how the API
// expects them.
func buildContents(messages []model.Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}

		for _, call := range msg.FunctionCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(call.Arguments), &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: call.Name, Args: args},
			})
		}

		for _, result := range msg.ToolResults {
			var response map[string]any
			if err := json.Unmarshal([]byte(result.Content), &response); err != nil {
				response = map[string]any{"result": result.Content}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     result.CallID,
					Response: response,
				},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}

	return contents
}

func buildTools(tools []model.ToolDefinition) []*genai.Tool {
	funcs := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		funcs[i] = &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  convertSchema(tool.Function.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: funcs}}
}

// convertSchema maps the minimal JSON Schema subset used by tool definitions
// onto the SDK's typed Schema.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{Type: genai.TypeObject}

	if typ, ok := schema["type"].(string); ok {
		switch typ {
		case "string":
			out.Type = genai.TypeString
		case "integer":
			out.Type = genai.TypeInteger
		case "number":
			out.Type = genai.TypeNumber
		case "boolean":
			out.Type = genai.TypeBoolean
		case "array":
			out.Type = genai.TypeArray
		}
	}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}

	if properties, ok := schema["properties"].(map[string]any); ok {
		out.Properties = map[string]*genai.Schema{}
		for name, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				out.Properties[name] = convertSchema(propMap)
			}
		}
	}

	switch required := schema["required"].(type) {
	case []string:
		out.Required = required
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	return out
}

// Info returns metadata describing this Google model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "google",
		SupportsTools: true,
	}
}
