package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/harunnryd/renga/internal/conversation"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/model/contract"
	"github.com/harunnryd/renga/internal/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRouter replays a fixed sequence of completion responses and records
// the request snapshots it saw.
type scriptedRouter struct {
	responses []*contract.CompletionResponse
	errs      []error
	requests  []contract.CompletionRequest
}

func (r *scriptedRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	idx := len(r.requests)
	r.requests = append(r.requests, req)

	if idx < len(r.errs) && r.errs[idx] != nil {
		return nil, fmt.Errorf("scripted failure: %w", rengaErrors.ErrModelCall)
	}
	if idx >= len(r.responses) {
		return nil, fmt.Errorf("script exhausted after %d calls: %w", idx, rengaErrors.ErrModelCall)
	}
	return r.responses[idx], nil
}

func (r *scriptedRouter) ListModels() []string             { return []string{"test-model"} }
func (r *scriptedRouter) Health(ctx context.Context) error { return nil }

// recordingExecutor captures executed operations and answers from a script.
type recordingExecutor struct {
	operations []string
	results    map[string]tool.Result
}

func (e *recordingExecutor) Execute(ctx context.Context, operation string, args json.RawMessage) tool.Result {
	e.operations = append(e.operations, operation)
	if res, ok := e.results[operation]; ok {
		return res
	}
	return tool.Ok(json.RawMessage(`{"status": "ok"}`))
}

func toolCallResponse(calls ...*contract.ToolCall) *contract.CompletionResponse {
	return &contract.CompletionResponse{ToolCalls: calls}
}

func textResponse(text string) *contract.CompletionResponse {
	return &contract.CompletionResponse{Content: text}
}

func newTestAgent(t *testing.T, router *scriptedRouter, exec *recordingExecutor, opts Options) *Agent {
	t.Helper()

	registry := tool.NewRegistry()
	if exec != nil {
		for _, name := range []string{"search_pages", "read_page", "create_page"} {
			require.NoError(t, registry.Register(exec, tool.Descriptor{
				Provider: "notion",
				Name:     name,
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			}, false))
		}
	}

	return New(router, registry, conversation.New(), "test-model", opts)
}

// A plain question is answered in one round with no tool traffic.
func TestProcessDirectAnswer(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{textResponse("Paris.")}}
	agent := newTestAgent(t, router, &recordingExecutor{}, Options{})

	res, err := agent.Process(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "Paris.", res.Text)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 0, res.ToolCalls)

	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, contract.RoleUser, msgs[0].Role)
	assert.Equal(t, contract.RoleAssistant, msgs[1].Role)
}

// One tool round, then the final answer built from the tool result.
func TestProcessSingleToolRound(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(&contract.ToolCall{ID: "call_1", Name: "notion__search_pages", Input: `{"query": "roadmap"}`}),
		textResponse("Found the roadmap page."),
	}}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{})

	res, err := agent.Process(context.Background(), "Find my roadmap")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, []string{"search_pages"}, exec.operations)

	// user, assistant(tool_calls), tool, assistant
	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, contract.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, contract.RoleTool, msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)

	// The second model call saw the tool result in its message sequence.
	second := router.requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, contract.RoleTool, last.Role)
}

// Several calls in one round run sequentially, in model order, each paired by ID.
func TestProcessSequentialToolOrder(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(
			&contract.ToolCall{ID: "call_1", Name: "notion__search_pages", Input: `{}`},
			&contract.ToolCall{ID: "call_2", Name: "notion__read_page", Input: `{}`},
			&contract.ToolCall{ID: "call_3", Name: "notion__create_page", Input: `{}`},
		),
		textResponse("done"),
	}}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{})

	res, err := agent.Process(context.Background(), "do three things")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ToolCalls)
	assert.Equal(t, []string{"search_pages", "read_page", "create_page"}, exec.operations)

	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 6)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "call_2", msgs[3].ToolCallID)
	assert.Equal(t, "call_3", msgs[4].ToolCallID)
}

// A failing tool becomes an error result fed back to the model; the turn
// still completes.
func TestProcessToolFailureFedBack(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(&contract.ToolCall{ID: "call_1", Name: "notion__read_page", Input: `{"page_id": "gone"}`}),
		textResponse("That page does not exist."),
	}}
	exec := &recordingExecutor{results: map[string]tool.Result{
		"read_page": tool.Fail(errors.New("remote returned 404")),
	}}
	agent := newTestAgent(t, router, exec, Options{})

	res, err := agent.Process(context.Background(), "read the page")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, contract.RoleTool, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "remote returned 404")
}

// An unresolvable tool name fails only that call, not the turn.
func TestProcessUnknownToolFedBack(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(&contract.ToolCall{ID: "call_1", Name: "nothing__here", Input: `{}`}),
		textResponse("I don't have that tool."),
	}}
	agent := newTestAgent(t, router, &recordingExecutor{}, Options{})

	res, err := agent.Process(context.Background(), "use the mystery tool")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	msgs := agent.Conversation().Snapshot()
	assert.Contains(t, msgs[2].Content, "unknown tool")
}

// Chained rounds: search first, read with the found ID, then answer.
func TestProcessChainedToolRounds(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(&contract.ToolCall{ID: "call_1", Name: "notion__search_pages", Input: `{"query": "X"}`}),
		toolCallResponse(&contract.ToolCall{ID: "call_2", Name: "notion__read_page", Input: `{"page_id": "abc"}`}),
		textResponse("Page X says hello."),
	}}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{})

	res, err := agent.Process(context.Background(), "find page X and summarize it")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, []string{"search_pages", "read_page"}, exec.operations)

	// user, assistant(tc), tool, assistant(tc), tool, assistant
	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 6)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "call_2", msgs[4].ToolCallID)
	assert.Equal(t, contract.RoleAssistant, msgs[5].Role)
}

// A bare name two providers expose fails only its own call; the qualified
// call in the same batch still runs.
func TestProcessAmbiguousBareNameFailsOneCall(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		toolCallResponse(
			&contract.ToolCall{ID: "call_1", Name: "read_page", Input: `{}`},
			&contract.ToolCall{ID: "call_2", Name: "notion__search_pages", Input: `{}`},
		),
		textResponse("done"),
	}}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{})

	// A second provider exposing the same bare operation name.
	require.NoError(t, agent.registry.Register(exec, tool.Descriptor{
		Provider: "confluence",
		Name:     "read_page",
	}, false))

	res, err := agent.Process(context.Background(), "read it")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	// Only the qualified call reached an executor.
	assert.Equal(t, []string{"search_pages"}, exec.operations)

	msgs := agent.Conversation().Snapshot()
	require.Len(t, msgs, 5)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Contains(t, msgs[2].Content, "ambiguous")
	assert.Equal(t, "call_2", msgs[3].ToolCallID)
	assert.NotContains(t, msgs[3].Content, "error")
}

// The model keeps asking for tools: the loop stops at the bound with an
// iteration-limit result, not an error, and the rounds are committed.
func TestProcessIterationLimit(t *testing.T) {
	const bound = 5

	var responses []*contract.CompletionResponse
	for i := 0; i < bound+3; i++ {
		responses = append(responses, toolCallResponse(
			&contract.ToolCall{ID: fmt.Sprintf("call_%d", i+1), Name: "notion__search_pages", Input: `{}`},
		))
	}
	router := &scriptedRouter{responses: responses}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{MaxRounds: bound})

	res, err := agent.Process(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Equal(t, StatusIterationLimit, res.Status)
	assert.Equal(t, bound, res.Rounds)
	assert.Equal(t, bound, res.ToolCalls)
	assert.NotEmpty(t, res.Text)

	// Exactly bound model calls, never bound+1.
	assert.Len(t, router.requests, bound)

	// user + bound*(assistant + tool)
	assert.Equal(t, 1+2*bound, agent.Conversation().Len())
}

// A model failure is fatal for the turn and leaves the conversation untouched,
// including the staged user message.
func TestProcessModelFailureLeavesConversationUnchanged(t *testing.T) {
	router := &scriptedRouter{
		responses: []*contract.CompletionResponse{nil},
		errs:      []error{errors.New("upstream 500")},
	}
	agent := newTestAgent(t, router, &recordingExecutor{}, Options{})

	_, err := agent.Process(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrModelCall))
	assert.Equal(t, 0, agent.Conversation().Len())
}

// A mid-turn model failure drops the whole staged round but keeps earlier
// committed turns intact.
func TestProcessMidTurnModelFailure(t *testing.T) {
	router := &scriptedRouter{
		responses: []*contract.CompletionResponse{
			textResponse("first answer"),
			toolCallResponse(&contract.ToolCall{ID: "call_1", Name: "notion__search_pages", Input: `{}`}),
			nil,
		},
		errs: []error{nil, nil, errors.New("upstream 500")},
	}
	exec := &recordingExecutor{}
	agent := newTestAgent(t, router, exec, Options{})

	_, err := agent.Process(context.Background(), "first turn")
	require.NoError(t, err)
	require.Equal(t, 2, agent.Conversation().Len())

	_, err = agent.Process(context.Background(), "second turn")
	require.Error(t, err)

	// Only the first committed turn remains.
	assert.Equal(t, 2, agent.Conversation().Len())
}

func TestProcessEmptyInput(t *testing.T) {
	agent := newTestAgent(t, &scriptedRouter{}, &recordingExecutor{}, Options{})

	_, err := agent.Process(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rengaErrors.ErrInvalidInput))
}

// Every model request carries the full committed history plus this turn's
// staged messages.
func TestProcessRequestsCarryFullHistory(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		textResponse("one"),
		textResponse("two"),
	}}
	agent := newTestAgent(t, router, &recordingExecutor{}, Options{})

	_, err := agent.Process(context.Background(), "first")
	require.NoError(t, err)
	_, err = agent.Process(context.Background(), "second")
	require.NoError(t, err)

	require.Len(t, router.requests, 2)
	assert.Len(t, router.requests[0].Messages, 1)
	// committed user+assistant plus the new user message
	assert.Len(t, router.requests[1].Messages, 3)
}

func TestProcessSchemasExposedToModel(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{textResponse("ok")}}
	agent := newTestAgent(t, router, &recordingExecutor{}, Options{})

	_, err := agent.Process(context.Background(), "hi")
	require.NoError(t, err)

	require.Len(t, router.requests, 1)
	names := make([]string, 0)
	for _, def := range router.requests[0].Tools {
		names = append(names, def.Name)
	}
	assert.Contains(t, names, "notion__search_pages")
}
