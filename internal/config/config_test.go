package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Database.Path != "data/csbot.db" {
		t.Errorf("expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Poll.Interval != 5*time.Minute || cfg.Poll.Workers != 2 {
		t.Errorf("unexpected poll defaults: %+v", cfg.Poll)
	}
	if cfg.Cafe24.ReplyTitle != "답변" || cfg.Cafe24.ReplyWriter != "CS" {
		t.Errorf("unexpected reply defaults: %+v", cfg.Cafe24)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.csbot.yml")

	original := DefaultConfig()
	original.Provider = ProviderAnthropic
	original.Model = "claude-sonnet-4-5-20250929"
	original.Boards = []string{"1", "4"}
	original.Cafe24.MallID = "myshop"
	original.Poll.Interval = 90 * time.Second
	original.Manual.DirectKeywordAnswers = true
	original.Notify.TelegramChatID = -1001234

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if strings.Join(loaded.Boards, ",") != "1,4" {
		t.Errorf("boards: got %v", loaded.Boards)
	}
	if loaded.Cafe24.MallID != "myshop" {
		t.Errorf("mall_id: got %q", loaded.Cafe24.MallID)
	}
	if loaded.Poll.Interval != 90*time.Second {
		t.Errorf("poll.interval: got %v", loaded.Poll.Interval)
	}
	if !loaded.Manual.DirectKeywordAnswers {
		t.Error("direct_keyword_answers lost in round trip")
	}
	if loaded.Notify.TelegramChatID != -1001234 {
		t.Errorf("telegram_chat_id: got %d", loaded.Notify.TelegramChatID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("poll:\n  interval: 30s\nshop:\n  name: 테스트샵\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Poll.Interval != 30*time.Second {
		t.Errorf("poll.interval: got %v", cfg.Poll.Interval)
	}
	if cfg.Poll.Workers != 2 {
		t.Errorf("poll.workers default lost: got %d", cfg.Poll.Workers)
	}
	if cfg.Shop.Name != "테스트샵" {
		t.Errorf("shop.name: got %q", cfg.Shop.Name)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CSBOT_PROVIDER", "google")
	t.Setenv("CSBOT_CAFE24__MALL_ID", "envshop")
	t.Setenv("CSBOT_POLL__WORKERS", "4")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderGoogle {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderGoogle)
	}
	if loaded.Cafe24.MallID != "envshop" {
		t.Errorf("nested env override failed: got %q", loaded.Cafe24.MallID)
	}
	if loaded.Poll.Workers != 4 {
		t.Errorf("numeric env override failed: got %d", loaded.Poll.Workers)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"CSBOT_MODEL":                    "model",
		"CSBOT_CAFE24__MALL_ID":          "cafe24.mall_id",
		"CSBOT_NOTIFY__TELEGRAM_CHAT_ID": "notify.telegram_chat_id",
		"CSBOT_NOTIFY__LINK_SECRET":      "notify.link_secret",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"invalid provider", func(c *Config) { c.Provider = "ollama" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 3 }},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }},
		{"no workers", func(c *Config) { c.Poll.Workers = 0 }},
		{"no page size", func(c *Config) { c.Poll.PageSize = 0 }},
		{"negative budget", func(c *Config) { c.Manual.ContextBudget = -1 }},
		{"boards without shop", func(c *Config) { c.Boards = []string{"1"} }},
		{"telegram without chat", func(c *Config) { c.Notify.TelegramToken = "tok" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateBoardsWithShop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Boards = []string{"1"}
	cfg.Cafe24.MallID = "shop"
	cfg.Cafe24.ClientID = "id"
	cfg.Cafe24.ClientSecret = "secret"
	cfg.Poll.Enabled = false
	cfg.Poll.Interval = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRedirectURL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.RedirectURL(); got != "" {
		t.Errorf("RedirectURL with nothing set = %q", got)
	}
	cfg.Server.BaseURL = "https://cs.example.com/"
	if got := cfg.RedirectURL(); got != "https://cs.example.com/auth/callback" {
		t.Errorf("RedirectURL = %q", got)
	}
	cfg.Cafe24.RedirectURL = "https://other.example.com/cb"
	if got := cfg.RedirectURL(); got != "https://other.example.com/cb" {
		t.Errorf("explicit RedirectURL = %q", got)
	}
}

func TestDefaultModel(t *testing.T) {
	if DefaultModel(ProviderGoogle) != "gemini-2.5-flash" {
		t.Errorf("google default = %q", DefaultModel(ProviderGoogle))
	}
	if DefaultModel("unknown") != "gpt-4o" {
		t.Errorf("fallback = %q", DefaultModel("unknown"))
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{"ollama", ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"1,4,7", []string{"1", "4", "7"}},
		{" 1 , 4 ", []string{"1", "4"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestBoardListValidation(t *testing.T) {
	if err := boardList("1, 4"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := boardList("1, qna"); err == nil {
		t.Error("expected error for non-numeric board id")
	}
}
