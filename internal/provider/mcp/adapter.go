package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/provider"
	"github.com/harunnryd/renga/internal/tool"
)

// Adapter exposes one connected MCP server as a tool provider. Its descriptor
// set is dynamic: whatever the server advertised at connect time.
type Adapter struct {
	name        string
	client      *Client
	descriptors []tool.Descriptor
}

// NewAdapter starts the configured server and discovers its tools.
func NewAdapter(ctx context.Context, cfg config.MCPServerConfig) (*Adapter, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return nil, rengaErrors.Wrap(err, "list tools for mcp server "+cfg.Name)
	}

	descriptors := make([]tool.Descriptor, 0, len(tools))
	for _, info := range tools {
		descriptors = append(descriptors, tool.Descriptor{
			Provider:    cfg.Name,
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.InputSchema,
		})
	}

	return &Adapter{
		name:        cfg.Name,
		client:      client,
		descriptors: descriptors,
	}, nil
}

func (a *Adapter) ID() string {
	return a.name
}

func (a *Adapter) Descriptors(ctx context.Context) ([]tool.Descriptor, error) {
	return a.descriptors, nil
}

// Execute forwards the call to the server. MCP advertises nothing about
// idempotency, so no call is ever retried here.
func (a *Adapter) Execute(ctx context.Context, operation string, args json.RawMessage) tool.Result {
	return provider.Protect(func() (json.RawMessage, error) {
		text, err := a.client.CallTool(ctx, operation, args)
		if err != nil {
			return nil, err
		}
		return wrapContent(text), nil
	})
}

func (a *Adapter) Close() error {
	return a.client.Close()
}

// wrapContent keeps structured server output as-is and wraps plain text in a
// JSON envelope so tool messages stay machine-readable.
func wrapContent(text string) json.RawMessage {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return json.RawMessage(trimmed)
		}
	}
	encoded, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return encoded
}
