package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/renga/internal/concurrency"
	"github.com/harunnryd/renga/internal/config"
	"github.com/harunnryd/renga/internal/conversation"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/logger"
	"github.com/harunnryd/renga/internal/model"
	"github.com/harunnryd/renga/internal/model/contract"
	"github.com/harunnryd/renga/internal/tool"

	"github.com/oklog/ulid/v2"
)

const iterationLimitNotice = "Stopped after reaching the tool round limit. The work so far is recorded in the conversation; ask again to continue."

// Options tunes one Agent. Zero values fall back to the config defaults.
type Options struct {
	MaxRounds   int
	ToolTimeout time.Duration
}

// Agent drives the model/tool loop over one conversation.
type Agent struct {
	router      model.Router
	registry    *tool.Registry
	log         *conversation.Log
	model       string
	maxRounds   int
	toolTimeout time.Duration
	locks       *concurrency.ConversationLockManager
}

func New(router model.Router, registry *tool.Registry, log *conversation.Log, modelName string, opts Options) *Agent {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = config.DefaultAgentMaxRounds
	}
	toolTimeout := opts.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout, _ = time.ParseDuration(config.DefaultAgentToolTimeout)
	}

	return &Agent{
		router:      router,
		registry:    registry,
		log:         log,
		model:       modelName,
		maxRounds:   maxRounds,
		toolTimeout: toolTimeout,
		locks:       concurrency.NewConversationLockManager(),
	}
}

func (a *Agent) Conversation() *conversation.Log {
	return a.log
}

// Process runs one user turn to completion. Messages for the turn are staged
// and committed to the conversation only when the turn finishes: a failed
// model call leaves the conversation exactly as it was.
func (a *Agent) Process(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, rengaErrors.InvalidInput("user input is empty")
	}

	a.locks.Lock(a.log.ID())
	defer a.locks.Unlock(a.log.ID())

	ctx = logger.WithTraceID(ctx, ulid.Make().String())
	ctx = logger.WithConversationID(ctx, a.log.ID())
	traceID := logger.GetTraceID(ctx)

	staged := []contract.Message{{Role: contract.RoleUser, Content: text}}
	toolCalls := 0

	for round := 1; ; round++ {
		slog.Info("Requesting completion",
			"round", round,
			"conversation_id", a.log.ID(),
			"trace_id", traceID)

		resp, err := a.router.Route(ctx, a.model, contract.CompletionRequest{
			Model:    a.model,
			Messages: append(a.log.Snapshot(), staged...),
			Tools:    a.registry.Schemas(),
		})
		if err != nil {
			// Fatal: drop everything staged this turn, conversation untouched.
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			staged = append(staged, contract.Message{Role: contract.RoleAssistant, Content: resp.Content})
			a.log.Append(staged...)
			return &Result{
				Text:      resp.Content,
				Status:    StatusCompleted,
				Rounds:    round,
				ToolCalls: toolCalls,
			}, nil
		}

		staged = append(staged, contract.Message{
			Role:      contract.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Execute sequentially, in the order the model emitted the calls.
		for _, call := range resp.ToolCalls {
			staged = append(staged, a.executeCall(ctx, call))
			toolCalls++
		}

		if round >= a.maxRounds {
			a.log.Append(staged...)
			slog.Warn("Iteration limit reached",
				"rounds", round,
				"conversation_id", a.log.ID(),
				"trace_id", traceID)
			return &Result{
				Text:      iterationLimitNotice,
				Status:    StatusIterationLimit,
				Rounds:    round,
				ToolCalls: toolCalls,
			}, nil
		}
	}
}

// executeCall resolves and runs one requested tool call. Failures of any kind
// become an error-carrying tool message for that one call; the loop continues.
func (a *Agent) executeCall(ctx context.Context, call *contract.ToolCall) contract.Message {
	traceID := logger.GetTraceID(ctx)

	handle, err := a.registry.Resolve(call.Name)
	if err != nil {
		slog.Warn("Tool resolution failed", "tool", call.Name, "error", err, "trace_id", traceID)
		res := tool.Fail(err)
		res.ToolCallID = call.ID
		return res.Message()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	started := time.Now()
	res := handle.Execute(callCtx, json.RawMessage(call.Input))
	res.ToolCallID = call.ID

	if res.IsError() {
		slog.Warn("Tool call failed",
			"tool", call.Name,
			"error", res.Err,
			"duration", time.Since(started),
			"trace_id", traceID)
	} else {
		slog.Info("Tool call completed",
			"tool", call.Name,
			"duration", time.Since(started),
			"trace_id", traceID)
	}

	return res.Message()
}
