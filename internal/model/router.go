package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/logger"
	"github.com/harunnryd/renga/internal/model/contract"
	anthropicProvider "github.com/harunnryd/renga/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/renga/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/renga/internal/model/providers/openai"
)

// DefaultRouter routes completion requests to the provider registered for a
// model name. A model call gets exactly one attempt: retry decisions belong to
// the caller of the agent, not to the transport.
type DefaultRouter struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	mu        sync.RWMutex
}

func NewRouter(cfg config.ModelsConfig) (*DefaultRouter, error) {
	router := &DefaultRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

// Route sends a completion request to the provider registered for model.
// Any failure is wrapped as ErrModelCall and is fatal to the current turn.
func (r *DefaultRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	traceID := logger.GetTraceID(ctx)

	slog.Info("Routing completion request", "model", model, "trace_id", traceID)

	provider, err := r.resolveProvider(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, rengaErrors.ErrModelCall)
	}

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		slog.Error("Provider request failed", "model", model, "error", err, "trace_id", traceID)
		return nil, fmt.Errorf("model %s: %v: %w", model, err, rengaErrors.ErrModelCall)
	}

	slog.Info("Request completed", "model", model, "tool_calls", len(resp.ToolCalls), "trace_id", traceID)
	return resp, nil
}

// ListModels returns all registered model names, sorted.
func (r *DefaultRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for name := range r.providers {
		models = append(models, name)
	}
	sort.Strings(models)

	return models
}

// Health checks the health of the router and its providers.
func (r *DefaultRouter) Health(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, provider := range r.providers {
		if err := provider.Health(ctx); err != nil {
			slog.Warn("Provider unhealthy", "provider", name, "error", err)
			return rengaErrors.Transient(fmt.Sprintf("provider %s unhealthy", name))
		}
	}

	return nil
}

func (r *DefaultRouter) initProviders() error {
	for _, entry := range r.cfg.Registry {
		provider, err := r.createProvider(entry)
		if err != nil {
			slog.Warn("Failed to create provider", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}

		r.providers[entry.Name] = provider
		slog.Info("Provider initialized", "name", entry.Name, "type", entry.Provider)
	}

	if len(r.providers) == 0 {
		return rengaErrors.Configuration("no model providers initialized")
	}

	return nil
}

func (r *DefaultRouter) resolveProvider(ctx context.Context, model string) (Provider, error) {
	select {
	case <-ctx.Done():
		return nil, rengaErrors.Wrap(ctx.Err(), "provider resolution cancelled")
	default:
	}

	r.mu.RLock()
	provider, exists := r.providers[model]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("model %s: %w", model, rengaErrors.ErrNotFound)
	}

	return provider, nil
}

// createProvider creates a provider instance based on a registry entry. The
// "groq" type is the OpenAI wire protocol pointed at Groq's endpoint.
func (r *DefaultRouter) createProvider(entry config.ModelRegistry) (Provider, error) {
	switch entry.Provider {
	case "openai":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}

		if entry.APIKey == "" {
			return nil, rengaErrors.Configuration("API key required for OpenAI provider")
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "openai",
		}, nil

	case "groq":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultGroqBaseURL
		}

		if entry.APIKey == "" {
			return nil, rengaErrors.Configuration("API key required for Groq provider")
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, entry.Name),
			name:         entry.Name,
			providerType: "groq",
		}, nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, rengaErrors.Configuration("API key required for Anthropic provider")
		}

		return &ProviderAdapter{
			provider:     anthropicProvider.New(entry.APIKey),
			name:         entry.Name,
			providerType: "anthropic",
		}, nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, rengaErrors.Configuration("API key required for Gemini provider")
		}

		provider, err := geminiProvider.New(entry.APIKey)
		if err != nil {
			return nil, rengaErrors.Wrap(err, "failed to create Gemini provider")
		}

		return &ProviderAdapter{
			provider:     provider,
			name:         entry.Name,
			providerType: "gemini",
		}, nil

	default:
		return nil, rengaErrors.InvalidInput(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
