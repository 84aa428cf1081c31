package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GROQ_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"NOTION_API_KEY", "GOOGLE_ACCESS_TOKEN", "EMAIL_ADDRESS", "EMAIL_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearCredentialEnv(t)

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != DefaultServerLogLevel {
		t.Errorf("Expected default log level %s, got %s", DefaultServerLogLevel, cfg.Server.LogLevel)
	}
	if cfg.Models.Default != DefaultModelDefault {
		t.Errorf("Expected default model %s, got %s", DefaultModelDefault, cfg.Models.Default)
	}
	if cfg.Agent.MaxRounds != DefaultAgentMaxRounds {
		t.Errorf("Expected default max rounds %d, got %d", DefaultAgentMaxRounds, cfg.Agent.MaxRounds)
	}
	if cfg.Agent.ToolTimeout != DefaultAgentToolTimeout {
		t.Errorf("Expected default tool timeout %s, got %s", DefaultAgentToolTimeout, cfg.Agent.ToolTimeout)
	}
	if cfg.Providers.Notion.BaseURL != DefaultNotionBaseURL {
		t.Errorf("Expected default notion base url %s, got %s", DefaultNotionBaseURL, cfg.Providers.Notion.BaseURL)
	}
	if cfg.Providers.Notion.Version != DefaultNotionVersion {
		t.Errorf("Expected default notion version %s, got %s", DefaultNotionVersion, cfg.Providers.Notion.Version)
	}
	if cfg.Providers.Google.SheetsBaseURL != DefaultGoogleSheetsBaseURL {
		t.Errorf("Expected default sheets base url %s, got %s", DefaultGoogleSheetsBaseURL, cfg.Providers.Google.SheetsBaseURL)
	}
	if cfg.Providers.Mail.SMTPHost != DefaultMailSMTPHost {
		t.Errorf("Expected default smtp host %s, got %s", DefaultMailSMTPHost, cfg.Providers.Mail.SMTPHost)
	}
	if len(cfg.Models.Registry) == 0 {
		t.Fatal("Expected a non-empty default model registry")
	}
	if cfg.Models.Registry[0].Name != DefaultModelDefault {
		t.Errorf("Expected first registry entry %s, got %s", DefaultModelDefault, cfg.Models.Registry[0].Name)
	}
	if cfg.Models.Registry[0].BaseURL != DefaultGroqBaseURL {
		t.Errorf("Expected groq base url %s, got %s", DefaultGroqBaseURL, cfg.Models.Registry[0].BaseURL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearCredentialEnv(t)
	t.Setenv("RENGA_SERVER_LOG_LEVEL", "debug")
	t.Setenv("RENGA_AGENT_MAX_ROUNDS", "7")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Expected env override log level debug, got %s", cfg.Server.LogLevel)
	}
	if cfg.Agent.MaxRounds != 7 {
		t.Errorf("Expected env override max rounds 7, got %d", cfg.Agent.MaxRounds)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearCredentialEnv(t)

	configDir := filepath.Join(home, ".renga")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}

	yamlBody := `
server:
  log_level: warn
providers:
  notion:
    token: secret-from-file
  mcp:
    - name: notion
      command: "npx -y @notionhq/notion-mcp-server"
      env:
        OPENAPI_MCP_HEADERS: '{"Authorization": "Bearer ntn"}'
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != "warn" {
		t.Errorf("Expected file log level warn, got %s", cfg.Server.LogLevel)
	}
	if cfg.Providers.Notion.Token != "secret-from-file" {
		t.Errorf("Expected notion token from file, got %q", cfg.Providers.Notion.Token)
	}
	if len(cfg.Providers.MCP) != 1 {
		t.Fatalf("Expected one mcp server, got %d", len(cfg.Providers.MCP))
	}
	if cfg.Providers.MCP[0].Name != "notion" {
		t.Errorf("Expected mcp server name notion, got %s", cfg.Providers.MCP[0].Name)
	}
	if cfg.Providers.MCP[0].Env["OPENAPI_MCP_HEADERS"] == "" {
		t.Error("Expected mcp env headers to survive the round trip")
	}
}

func TestCredentialEnvInjection(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearCredentialEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("NOTION_API_KEY", "ntn_test")
	t.Setenv("EMAIL_ADDRESS", "agent@example.com")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	entry, err := cfg.ModelFor(DefaultModelDefault)
	if err != nil {
		t.Fatalf("ModelFor: %v", err)
	}
	if entry.APIKey != "gsk_test" {
		t.Errorf("Expected groq key injected, got %q", entry.APIKey)
	}
	if cfg.Providers.Notion.Token != "ntn_test" {
		t.Errorf("Expected notion token injected, got %q", cfg.Providers.Notion.Token)
	}
	if cfg.Providers.Mail.Address != "agent@example.com" {
		t.Errorf("Expected mail address injected, got %q", cfg.Providers.Mail.Address)
	}
}

func TestLoadFlagOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearCredentialEnv(t)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("server.log_level", DefaultServerLogLevel, "")
	if err := cmd.Flags().Set("server.log_level", "error"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.LogLevel != "error" {
		t.Errorf("Expected flag override log level error, got %s", cfg.Server.LogLevel)
	}
}

func TestModelForUnknown(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearCredentialEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if _, err := cfg.ModelFor("no-such-model"); err == nil {
		t.Error("Expected error for unknown model")
	}
}
