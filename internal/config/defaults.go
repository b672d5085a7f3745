package config

import "time"

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = ".csbot.yml"

// defaultModels is the model suggested for each provider.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderGoogle:    "gemini-2.5-flash",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/csbot.db"},
		Provider: ProviderOpenAI,
		Model:    defaultModels[ProviderOpenAI],
		LLM: LLMConfig{
			Temperature:       0.8,
			MaxTokens:         500,
			RequestsPerMinute: 60,
		},
		Cafe24: Cafe24Config{
			ShopNo:            1,
			ReplyWriter:       "CS",
			ReplyTitle:        "답변",
			RequestsPerSecond: 2,
		},
		Poll: PollConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
			PageSize: 100,
			Workers:  2,
		},
		Manual: ManualConfig{
			ContextBudget: 12000,
			MaxEntries:    50,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultModel returns the suggested model for a provider, falling back
// to the OpenAI default.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderOpenAI]
}
