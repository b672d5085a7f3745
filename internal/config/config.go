// Package config loads the static csbot configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: CSBOT_CAFE24__MALL_ID sets cafe24.mall_id.
const EnvPrefix = "CSBOT_"

// Load reads configuration from the given YAML file on top of the
// defaults, then overlays environment variable overrides (CSBOT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps CSBOT_POLL__INTERVAL to poll.interval.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderGoogle:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, google", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens < 0 || c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.max_tokens and llm.requests_per_minute must be non-negative")
	}

	if c.Poll.Enabled && c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive when polling is enabled")
	}
	if c.Poll.Workers < 1 {
		return fmt.Errorf("poll.workers must be at least 1")
	}
	if c.Poll.PageSize < 1 {
		return fmt.Errorf("poll.page_size must be at least 1")
	}

	if c.Manual.ContextBudget < 0 || c.Manual.MaxEntries < 0 {
		return fmt.Errorf("manual.context_budget and manual.max_entries must be non-negative")
	}

	if len(c.Boards) > 0 {
		var missing []string
		if c.Cafe24.MallID == "" {
			missing = append(missing, "cafe24.mall_id")
		}
		if c.Cafe24.ClientID == "" {
			missing = append(missing, "cafe24.client_id")
		}
		if c.Cafe24.ClientSecret == "" {
			missing = append(missing, "cafe24.client_secret")
		}
		if len(missing) > 0 {
			return fmt.Errorf("boards are configured but %s not set", strings.Join(missing, ", "))
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return errors.New("notify.telegram_chat_id is required with notify.telegram_token")
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}

	return nil
}

// RedirectURL returns the OAuth callback URL, derived from server.base_url
// when cafe24.redirect_url is not set.
func (c *Config) RedirectURL() string {
	if c.Cafe24.RedirectURL != "" {
		return c.Cafe24.RedirectURL
	}
	if c.Server.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
