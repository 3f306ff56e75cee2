package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// TestLoadConfigDefaults tests that the default values are applied when no file exists.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), envLookup(nil))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Workplace.GraphAPI != DefaultGraphAPI {
		t.Fatalf("expected default graph api, got %q", cfg.Workplace.GraphAPI)
	}
	if len(cfg.Workplace.Fields) != 19 {
		t.Fatalf("expected 19 default fields, got %d", len(cfg.Workplace.Fields))
	}
	if cfg.Broadcast.HistorySize != 10 {
		t.Fatalf("expected history size 10, got %d", cfg.Broadcast.HistorySize)
	}
	if cfg.Watermill.Enabled() {
		t.Fatalf("expected relay disabled by default")
	}
	if cfg.Watermill.Topic != "workplace.webhook" {
		t.Fatalf("unexpected default topic %q", cfg.Watermill.Topic)
	}
}

// TestLoadConfigEnvOverridesFile tests that environment variables win over the file.
func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  port: 9000\nworkplace:\n  graph_api: https://graph.example.com/\n  verify_token: from-file\nforward:\n  url: https://file.example.com/hook\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path, envLookup(map[string]string{
		EnvVerifyToken:   " from-env ",
		EnvDownstreamURL: "https://env.example.com/hook",
		EnvPort:          "8123",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Workplace.VerifyToken != "from-env" {
		t.Fatalf("expected env verify token, got %q", cfg.Workplace.VerifyToken)
	}
	if cfg.Forward.URL != "https://env.example.com/hook" {
		t.Fatalf("expected env forward url, got %q", cfg.Forward.URL)
	}
	if cfg.Server.Port != 8123 {
		t.Fatalf("expected env port, got %d", cfg.Server.Port)
	}
	if cfg.Workplace.GraphAPI != "https://graph.example.com" {
		t.Fatalf("expected trimmed graph api, got %q", cfg.Workplace.GraphAPI)
	}
}

func TestLoadConfigInvalidPort(t *testing.T) {
	if _, err := loadConfig("", envLookup(map[string]string{EnvPort: "eighty"})); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

// TestLoadConfigInvalidRule tests that a skip rule without a condition is rejected.
func TestLoadConfigInvalidRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "webhook:\n  skip_rules:\n    - id: empty\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path, envLookup(nil)); err == nil {
		t.Fatalf("expected error for missing when")
	}
}

func TestLoadConfigTrimsRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "webhook:\n  skip_rules:\n    - id: \" bots \"\n      when: \"  verb == \\\"remove\\\"  \"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(path, envLookup(nil))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Webhook.SkipRules) != 1 {
		t.Fatalf("expected one rule, got %d", len(cfg.Webhook.SkipRules))
	}
	rule := cfg.Webhook.SkipRules[0]
	if rule.ID != "bots" || rule.When != `verb == "remove"` {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestValidateReportsEveryMissingSecret(t *testing.T) {
	var cfg AppConfig
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	for _, name := range []string{EnvVerifyToken, EnvAppSecret, EnvAccessToken, EnvDownstreamURL} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in error %q", name, err.Error())
		}
	}

	cfg.Workplace.VerifyToken = "v"
	cfg.Workplace.AppSecret = "s"
	cfg.Workplace.AccessToken = "a"
	cfg.Forward.URL = "https://example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestBroadcastBufferAtLeastHistory(t *testing.T) {
	var cfg AppConfig
	cfg.Broadcast.HistorySize = 50
	cfg.Broadcast.Buffer = 5
	applyDefaults(&cfg)
	if cfg.Broadcast.Buffer != 100 {
		t.Fatalf("expected buffer 100, got %d", cfg.Broadcast.Buffer)
	}
}
