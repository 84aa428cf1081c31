package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	rengaErrors "github.com/harunnryd/renga/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	lastOperation string
}

func (e *stubExecutor) Execute(ctx context.Context, operation string, args json.RawMessage) Result {
	_ = ctx
	_ = args
	e.lastOperation = operation
	return Ok(json.RawMessage(`{"status": "ok"}`))
}

func descriptorFor(provider, name string) Descriptor {
	return Descriptor{
		Provider:    provider,
		Name:        name,
		Description: "stub operation",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

func TestRegistryRegisterAndResolveRoundTrip(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	desc := descriptorFor("notion", "search_pages")

	require.NoError(t, registry.Register(exec, desc, false))

	handle, err := registry.Resolve("notion__search_pages")
	require.NoError(t, err)
	assert.Equal(t, "notion", handle.Provider)
	assert.Equal(t, "search_pages", handle.Operation)
	assert.Equal(t, desc, handle.Descriptor)
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	desc := descriptorFor("notion", "search_pages")

	require.NoError(t, registry.Register(exec, desc, false))

	err := registry.Register(exec, desc, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrDuplicateTool))

	// Explicit replacement is allowed.
	replacement := descriptorFor("notion", "search_pages")
	replacement.Description = "replaced"
	require.NoError(t, registry.Register(exec, replacement, true))

	handle, err := registry.Resolve("notion__search_pages")
	require.NoError(t, err)
	assert.Equal(t, "replaced", handle.Descriptor.Description)
}

// Provider IDs carrying the separator would mis-split on resolution, so
// registration rejects them up front.
func TestRegistryRejectsSeparatorInProviderID(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}

	err := registry.Register(exec, descriptorFor("my__server", "search"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrInvalidInput))
	assert.Empty(t, registry.List())
}

func TestRegistryResolveUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve("nobody__nothing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrUnknownTool))

	_, err = registry.Resolve("nothing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrUnknownTool))
}

func TestRegistryResolveBareNameFallback(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	require.NoError(t, registry.Register(exec, descriptorFor("notion", "search_pages"), false))

	handle, err := registry.Resolve("search_pages")
	require.NoError(t, err)
	assert.Equal(t, "notion", handle.Provider)
	assert.Equal(t, "search_pages", handle.Operation)
}

func TestRegistryResolveAmbiguousBareName(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	require.NoError(t, registry.Register(exec, descriptorFor("notion", "search"), false))
	require.NoError(t, registry.Register(exec, descriptorFor("google", "search"), false))

	_, err := registry.Resolve("search")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrAmbiguousTool))

	// Qualified names stay unambiguous.
	handle, err := registry.Resolve("google__search")
	require.NoError(t, err)
	assert.Equal(t, "google", handle.Provider)
}

func TestRegistryListIsDeterministic(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	require.NoError(t, registry.Register(exec, descriptorFor("notion", "search_pages"), false))
	require.NoError(t, registry.Register(exec, descriptorFor("google", "read_document"), false))
	require.NoError(t, registry.Register(exec, descriptorFor("mail", "send_email"), false))

	first := registry.List()
	second := registry.List()
	require.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, "notion", first[0].Provider)
	assert.Equal(t, "google", first[1].Provider)
	assert.Equal(t, "mail", first[2].Provider)
}

func TestRegistrySchemas(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	desc := descriptorFor("notion", "search_pages")
	desc.Description = "Search for pages in Notion"
	require.NoError(t, registry.Register(exec, desc, false))

	defs := registry.Schemas()
	require.Len(t, defs, 1)
	assert.Equal(t, "notion__search_pages", defs[0].Name)
	assert.Contains(t, defs[0].Description, "Provider: notion")
	assert.NotNil(t, defs[0].Parameters)
}

func TestHandleExecuteDispatchesOperation(t *testing.T) {
	registry := NewRegistry()
	exec := &stubExecutor{}
	require.NoError(t, registry.Register(exec, descriptorFor("notion", "read_page"), false))

	handle, err := registry.Resolve("notion__read_page")
	require.NoError(t, err)

	res := handle.Execute(context.Background(), json.RawMessage(`{"page_id": "abc"}`))
	require.False(t, res.IsError())
	assert.Equal(t, "read_page", exec.lastOperation)
}

func TestSplitQualifiedName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		provider  string
		operation string
		ok        bool
	}{
		{name: "qualified", input: "notion__search_pages", provider: "notion", operation: "search_pages", ok: true},
		{name: "operation keeps single underscores", input: "google__read_document", provider: "google", operation: "read_document", ok: true},
		{name: "bare name", input: "search_pages", ok: false},
		{name: "leading separator", input: "__search", ok: false},
		{name: "trailing separator", input: "notion__", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider, operation, ok := SplitQualifiedName(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.provider, provider)
				assert.Equal(t, tc.operation, operation)
			}
		})
	}
}
