package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/renga/internal/agent"
	"github.com/harunnryd/renga/internal/config"
	"github.com/harunnryd/renga/internal/conversation"
	"github.com/harunnryd/renga/internal/model"
	"github.com/harunnryd/renga/internal/provider"
	"github.com/harunnryd/renga/internal/provider/googleworkspace"
	"github.com/harunnryd/renga/internal/provider/mail"
	"github.com/harunnryd/renga/internal/provider/mcp"
	"github.com/harunnryd/renga/internal/provider/notion"
	"github.com/harunnryd/renga/internal/tool"
)

// Components holds one wired agent runtime. Stop closes every adapter,
// including MCP subprocesses, on every exit path.
type Components struct {
	Ctx          context.Context
	Cfg          *config.Config
	Router       model.Router
	Registry     *tool.Registry
	Conversation *conversation.Log
	Agent        *agent.Agent

	adapters []provider.Adapter
}

type Builder struct {
	ctx context.Context
	cfg *config.Config
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithContext(ctx context.Context) *Builder {
	b.ctx = ctx
	return b
}

func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

func (b *Builder) Build() (*Components, error) {
	if b.ctx == nil {
		b.ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := b.cfg

	router, err := model.NewRouter(cfg.Models)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	adapters := buildAdapters(b.ctx, cfg)

	if err := provider.RegisterAll(b.ctx, registry, adapters...); err != nil {
		closeAdapters(adapters)
		return nil, err
	}

	toolTimeout, err := config.DurationOrDefault(cfg.Agent.ToolTimeout, config.DefaultAgentToolTimeout)
	if err != nil {
		closeAdapters(adapters)
		return nil, err
	}

	log := conversation.New()
	ag := agent.New(router, registry, log, cfg.Models.Default, agent.Options{
		MaxRounds:   cfg.Agent.MaxRounds,
		ToolTimeout: toolTimeout,
	})

	return &Components{
		Ctx:          b.ctx,
		Cfg:          cfg,
		Router:       router,
		Registry:     registry,
		Conversation: log,
		Agent:        ag,
		adapters:     adapters,
	}, nil
}

// buildAdapters connects every provider whose credentials are present.
// Missing credentials or a failed MCP handshake skip that provider with a
// warning instead of failing startup.
func buildAdapters(ctx context.Context, cfg *config.Config) []provider.Adapter {
	var adapters []provider.Adapter
	retryMax := cfg.Agent.ReadRetryMax

	if strings.TrimSpace(cfg.Providers.Notion.Token) != "" {
		adapter, err := notion.New(cfg.Providers.Notion, retryMax)
		if err != nil {
			slog.Warn("Skipping notion provider", "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	} else {
		slog.Warn("Skipping notion provider - token not set")
	}

	if strings.TrimSpace(cfg.Providers.Google.AccessToken) != "" {
		adapter, err := googleworkspace.New(cfg.Providers.Google, retryMax)
		if err != nil {
			slog.Warn("Skipping googleworkspace provider", "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	} else {
		slog.Warn("Skipping googleworkspace provider - access token not set")
	}

	if strings.TrimSpace(cfg.Providers.Mail.Address) != "" {
		adapter, err := mail.New(cfg.Providers.Mail)
		if err != nil {
			slog.Warn("Skipping mail provider", "error", err)
		} else {
			adapters = append(adapters, adapter)
		}
	} else {
		slog.Warn("Skipping mail provider - address not set")
	}

	for _, serverCfg := range cfg.Providers.MCP {
		adapter, err := mcp.NewAdapter(ctx, serverCfg)
		if err != nil {
			slog.Warn("Skipping mcp server", "server", serverCfg.Name, "error", err)
			continue
		}
		adapters = append(adapters, adapter)
	}

	return adapters
}

func (c *Components) Stop() {
	closeAdapters(c.adapters)
}

func closeAdapters(adapters []provider.Adapter) {
	for _, adapter := range adapters {
		if err := adapter.Close(); err != nil {
			slog.Warn("Failed to close provider", "provider", adapter.ID(), "error", err)
		}
	}
}
