package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/tool"
)

// Adapter connects one external system and exposes its operations as tools.
// Execute must never panic or return a Go error: every failure is reported
// through Result.Err so the agent can feed it back to the model.
type Adapter interface {
	tool.Executor

	ID() string
	Descriptors(ctx context.Context) ([]tool.Descriptor, error)
	Close() error
}

// RegisterAll registers every descriptor of every adapter with the registry.
func RegisterAll(ctx context.Context, registry *tool.Registry, adapters ...Adapter) error {
	for _, adapter := range adapters {
		descriptors, err := adapter.Descriptors(ctx)
		if err != nil {
			return rengaErrors.Wrap(err, fmt.Sprintf("listing tools for provider %s", adapter.ID()))
		}
		for _, desc := range descriptors {
			if err := registry.Register(adapter, desc, false); err != nil {
				return err
			}
		}
		slog.Info("Provider registered", "provider", adapter.ID(), "tools", len(descriptors))
	}
	return nil
}

// Protect runs one operation and converts both errors and panics into a
// Result. Adapters route every Execute through it.
func Protect(fn func() (json.RawMessage, error)) (res tool.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool execution panicked", "panic", r)
			res = tool.Fail(rengaErrors.Internal(fmt.Sprintf("tool execution panicked: %v", r)))
		}
	}()

	payload, err := fn()
	if err != nil {
		return tool.Fail(err)
	}
	return tool.Ok(payload)
}
