package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harunnryd/renga/internal/model/contract"

	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
}

func New(apiKey string) (*Provider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

// convertContents maps the neutral conversation onto Gemini contents.
// Gemini pairs a FunctionResponse with its call by function name, so the
// name is carried over from the assistant message that requested it.
func convertContents(msgs []contract.Message) []*genai.Content {
	var contents []*genai.Content
	calledNames := make(map[string]string)
	for _, m := range msgs {
		switch m.Role {
		case contract.RoleTool:
			var obj map[string]any
			_ = json.Unmarshal([]byte(m.Content), &obj)
			name := calledNames[m.ToolCallID]
			if name == "" {
				name = m.ToolCallID
			}
			contents = append(contents, &genai.Content{Role: "function", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: m.ToolCallID, Name: name, Response: obj}}}})
		case contract.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" || len(m.ToolCalls) == 0 {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				calledNames[tc.ID] = tc.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Input), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	contents := convertContents(req.Messages)

	var tools []*genai.Tool
	if len(req.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range req.Tools {
			b, _ := json.Marshal(t.Parameters)
			var schema genai.Schema
			_ = json.Unmarshal(b, &schema)
			decls = append(decls, &genai.FunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: &schema})
		}
		tools = append(tools, &genai.Tool{FunctionDeclarations: decls})
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{Tools: tools})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &contract.CompletionResponse{}
	if resp == nil {
		return out, nil
	}

	for _, fc := range resp.FunctionCalls() {
		argsJSON, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = fc.Name
		}
		out.ToolCalls = append(out.ToolCalls, &contract.ToolCall{ID: id, Name: fc.Name, Input: string(argsJSON)})
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
		}
	}

	return out, nil
}
