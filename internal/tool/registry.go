package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/model/contract"
)

// Separator joins a provider ID and an operation name into a qualified tool
// name. Double underscore keeps operation names containing single
// underscores unambiguous.
const Separator = "__"

// Descriptor is the static metadata registered once per available operation.
type Descriptor struct {
	Provider    string
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// QualifiedName returns the name under which an operation is exposed to the
// model.
func (d Descriptor) QualifiedName() string {
	return QualifiedName(d.Provider, d.Name)
}

func QualifiedName(provider, operation string) string {
	return provider + Separator + operation
}

// SplitQualifiedName splits a qualified tool name on the first separator.
// ok is false when the name carries no separator.
func SplitQualifiedName(name string) (provider, operation string, ok bool) {
	idx := strings.Index(name, Separator)
	if idx <= 0 || idx+len(Separator) >= len(name) {
		return "", "", false
	}
	return name[:idx], name[idx+len(Separator):], true
}

// Executor executes one named operation against one external system. It is
// implemented by every provider adapter. Execute never returns a Go error:
// all failures are captured in the Result.
type Executor interface {
	Execute(ctx context.Context, operation string, args json.RawMessage) Result
}

// Handle is a resolved tool: a descriptor bound to its executor.
type Handle struct {
	Provider   string
	Operation  string
	Descriptor Descriptor

	exec Executor
}

func (h Handle) Execute(ctx context.Context, args json.RawMessage) Result {
	return h.exec.Execute(ctx, h.Operation, args)
}

type binding struct {
	desc Descriptor
	exec Executor
}

// Registry holds the descriptors of all connected providers, aggregated into
// one deterministic list for the model.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	bindings map[string]binding
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]binding),
	}
}

// Register adds a descriptor bound to its executor. Registering an already
// present (provider, name) pair without replace fails with ErrDuplicateTool.
func (r *Registry) Register(exec Executor, desc Descriptor, replace bool) error {
	if strings.TrimSpace(desc.Provider) == "" {
		return rengaErrors.InvalidInput("descriptor provider is empty")
	}
	// A separator inside the provider ID would make qualified names
	// mis-split on resolution.
	if strings.Contains(desc.Provider, Separator) {
		return rengaErrors.InvalidInput(fmt.Sprintf("provider id %q must not contain %q", desc.Provider, Separator))
	}
	if strings.TrimSpace(desc.Name) == "" {
		return rengaErrors.InvalidInput("descriptor name is empty")
	}
	if exec == nil {
		return rengaErrors.InvalidInput("executor is nil")
	}

	qualified := desc.QualifiedName()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.bindings[qualified]
	if exists && !replace {
		return fmt.Errorf("%s: %w", qualified, rengaErrors.ErrDuplicateTool)
	}
	if !exists {
		r.order = append(r.order, qualified)
	}
	r.bindings[qualified] = binding{desc: desc, exec: exec}
	return nil
}

// List returns the registered descriptors in registration order. The order
// carries no meaning, but it must be deterministic for reproducible prompts.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, qualified := range r.order {
		out = append(out, r.bindings[qualified].desc)
	}
	return out
}

// Resolve maps a tool name emitted by the model to a Handle. Qualified names
// split on the first separator; bare names fall back to a linear scan across
// all providers and fail with ErrAmbiguousTool when more than one matches.
func (r *Registry) Resolve(name string) (Handle, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Handle{}, rengaErrors.InvalidInput("tool name is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider, operation, ok := SplitQualifiedName(trimmed); ok {
		if b, exists := r.bindings[trimmed]; exists {
			return Handle{Provider: provider, Operation: operation, Descriptor: b.desc, exec: b.exec}, nil
		}
		// The separator may legitimately appear inside a bare operation
		// name; fall through to the scan before giving up.
	}

	var matches []string
	for _, qualified := range r.order {
		if r.bindings[qualified].desc.Name == trimmed {
			matches = append(matches, qualified)
		}
	}

	switch len(matches) {
	case 0:
		return Handle{}, fmt.Errorf("%s: %w", trimmed, rengaErrors.ErrUnknownTool)
	case 1:
		b := r.bindings[matches[0]]
		return Handle{Provider: b.desc.Provider, Operation: b.desc.Name, Descriptor: b.desc, exec: b.exec}, nil
	default:
		return Handle{}, fmt.Errorf("%s matches providers %s: %w",
			trimmed, strings.Join(providersOf(matches), ", "), rengaErrors.ErrAmbiguousTool)
	}
}

// Schemas renders the registry in the shape the model API expects, with
// qualified names and the owning provider noted in the description.
func (r *Registry) Schemas() []contract.ToolDef {
	descriptors := r.List()
	defs := make([]contract.ToolDef, 0, len(descriptors))
	for _, d := range descriptors {
		params := d.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		defs = append(defs, contract.ToolDef{
			Name:        d.QualifiedName(),
			Description: fmt.Sprintf("%s (Provider: %s)", d.Description, d.Provider),
			Parameters:  params,
		})
	}
	return defs
}

func providersOf(qualified []string) []string {
	out := make([]string, 0, len(qualified))
	for _, q := range qualified {
		if provider, _, ok := SplitQualifiedName(q); ok {
			out = append(out, provider)
		}
	}
	return out
}
