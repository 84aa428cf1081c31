package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/renga/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Models     ModelsConfig     `koanf:"models"`
	Agent      AgentConfig      `koanf:"agent"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Transcript TranscriptConfig `koanf:"transcript"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type ModelsConfig struct {
	Default  string          `koanf:"default"`
	Registry []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
}

type AgentConfig struct {
	MaxRounds    int    `koanf:"max_rounds"`
	ToolTimeout  string `koanf:"tool_timeout"`
	ReadRetryMax int    `koanf:"read_retry_max"`
}

type ProvidersConfig struct {
	Notion NotionConfig      `koanf:"notion"`
	Google GoogleConfig      `koanf:"google"`
	Mail   MailConfig        `koanf:"mail"`
	MCP    []MCPServerConfig `koanf:"mcp"`
}

type NotionConfig struct {
	Token   string `koanf:"token"`
	BaseURL string `koanf:"base_url"`
	Version string `koanf:"version"`
	Timeout string `koanf:"timeout"`
}

type GoogleConfig struct {
	AccessToken   string `koanf:"access_token"`
	DriveBaseURL  string `koanf:"drive_base_url"`
	DocsBaseURL   string `koanf:"docs_base_url"`
	SheetsBaseURL string `koanf:"sheets_base_url"`
	Timeout       string `koanf:"timeout"`
}

type MailConfig struct {
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
}

type MCPServerConfig struct {
	Name            string            `koanf:"name"`
	Command         string            `koanf:"command"`
	Env             map[string]string `koanf:"env"`
	ConnectTimeout  string            `koanf:"connect_timeout"`
	ShutdownTimeout string            `koanf:"shutdown_timeout"`
}

type TranscriptConfig struct {
	Dir string `koanf:"dir"`
}

const (
	DefaultServerLogLevel = "info"

	// The original stack ran everything on Groq's llama-3.3; keep it the
	// default and register the hosted alternatives alongside.
	DefaultModelDefault  = "llama-3.3-70b-versatile"
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	DefaultAgentMaxRounds    = 5
	DefaultAgentToolTimeout  = "30s"
	DefaultAgentReadRetryMax = 2

	DefaultNotionBaseURL = "https://api.notion.com"
	DefaultNotionVersion = "2022-06-28"
	DefaultNotionTimeout = "15s"

	DefaultGoogleDriveBaseURL  = "https://www.googleapis.com/drive/v3"
	DefaultGoogleDocsBaseURL   = "https://docs.googleapis.com/v1"
	DefaultGoogleSheetsBaseURL = "https://sheets.googleapis.com/v4"
	DefaultGoogleTimeout       = "15s"

	DefaultMailSMTPHost = "smtp.gmail.com"
	DefaultMailSMTPPort = 587

	DefaultMCPConnectTimeout  = "10s"
	DefaultMCPShutdownTimeout = "5s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.log_level": DefaultServerLogLevel,
		"models.default":   DefaultModelDefault,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "openai", BaseURL: DefaultGroqBaseURL},
			{Name: "gpt-4o-mini", Provider: "openai", BaseURL: DefaultOpenAIBaseURL},
			{Name: "claude-sonnet-4-20250514", Provider: "anthropic"},
			{Name: "gemini-2.0-flash", Provider: "gemini"},
		},
		"agent.max_rounds":                DefaultAgentMaxRounds,
		"agent.tool_timeout":              DefaultAgentToolTimeout,
		"agent.read_retry_max":            DefaultAgentReadRetryMax,
		"providers.notion.base_url":       DefaultNotionBaseURL,
		"providers.notion.version":        DefaultNotionVersion,
		"providers.notion.timeout":        DefaultNotionTimeout,
		"providers.google.drive_base_url": DefaultGoogleDriveBaseURL,
		"providers.google.docs_base_url":  DefaultGoogleDocsBaseURL,
		"providers.google.sheets_base_url": DefaultGoogleSheetsBaseURL,
		"providers.google.timeout":         DefaultGoogleTimeout,
		"providers.mail.smtp_host":         DefaultMailSMTPHost,
		"providers.mail.smtp_port":         DefaultMailSMTPPort,
		"transcript.dir":                   filepath.Join(os.Getenv("HOME"), ".renga", "transcripts"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".renga", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("RENGA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RENGA_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	applyCredentialEnv(&cfg)

	return &cfg, nil
}

// applyCredentialEnv injects standard env vars where the config left
// credentials blank, mirroring the env contract of the upstream MCP servers.
func applyCredentialEnv(cfg *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.BaseURL == DefaultGroqBaseURL && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.BaseURL != DefaultGroqBaseURL && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	if cfg.Providers.Notion.Token == "" {
		cfg.Providers.Notion.Token = os.Getenv("NOTION_API_KEY")
	}
	if cfg.Providers.Google.AccessToken == "" {
		cfg.Providers.Google.AccessToken = os.Getenv("GOOGLE_ACCESS_TOKEN")
	}
	if cfg.Providers.Mail.Address == "" {
		cfg.Providers.Mail.Address = os.Getenv("EMAIL_ADDRESS")
	}
	if cfg.Providers.Mail.Password == "" {
		cfg.Providers.Mail.Password = os.Getenv("EMAIL_PASSWORD")
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	dir, err := expandConfiguredPath(cfg.Transcript.Dir)
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.Transcript.Dir = dir
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}

// ModelFor returns the registry entry for a model name.
func (c *Config) ModelFor(name string) (ModelRegistry, error) {
	for _, m := range c.Models.Registry {
		if m.Name == name {
			return m, nil
		}
	}
	return ModelRegistry{}, fmt.Errorf("model %q is not registered", name)
}
