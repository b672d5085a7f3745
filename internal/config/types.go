package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
)

// Config is the top-level csbot configuration, corresponding to .csbot.yml.
// Operator-editable behaviour (answer mode, title filters, toggles) lives
// in the settings table, not here.
type Config struct {
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Database DatabaseConfig `yaml:"database" koanf:"database"`
	Provider ProviderType   `yaml:"provider" koanf:"provider"`
	Model    string         `yaml:"model" koanf:"model"`
	LLM      LLMConfig      `yaml:"llm" koanf:"llm"`
	Cafe24   Cafe24Config   `yaml:"cafe24" koanf:"cafe24"`
	Boards   []string       `yaml:"boards" koanf:"boards"`
	Poll     PollConfig     `yaml:"poll" koanf:"poll"`
	Manual   ManualConfig   `yaml:"manual" koanf:"manual"`
	Shop     ShopConfig     `yaml:"shop" koanf:"shop"`
	Webhook  WebhookConfig  `yaml:"webhook" koanf:"webhook"`
	Notify   NotifyConfig   `yaml:"notify" koanf:"notify"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	// BaseURL is the public address used in OAuth redirects and notification links.
	BaseURL string `yaml:"base_url" koanf:"base_url"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// LLMConfig holds generation defaults. The settings table may override
// temperature and model at runtime.
type LLMConfig struct {
	Temperature       float64 `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" koanf:"max_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// Cafe24Config identifies the shop and the app registered for it.
type Cafe24Config struct {
	MallID            string  `yaml:"mall_id" koanf:"mall_id"`
	ClientID          string  `yaml:"client_id" koanf:"client_id"`
	ClientSecret      string  `yaml:"client_secret" koanf:"client_secret"`
	RedirectURL       string  `yaml:"redirect_url" koanf:"redirect_url"`
	APIVersion        string  `yaml:"api_version" koanf:"api_version"`
	ShopNo            int     `yaml:"shop_no" koanf:"shop_no"`
	ReplyWriter       string  `yaml:"reply_writer" koanf:"reply_writer"`
	ReplyTitle        string  `yaml:"reply_title" koanf:"reply_title"`
	RequestsPerSecond float64 `yaml:"requests_per_second" koanf:"requests_per_second"`
}

// PollConfig controls the background board sweep.
type PollConfig struct {
	Enabled  bool          `yaml:"enabled" koanf:"enabled"`
	Interval time.Duration `yaml:"interval" koanf:"interval"`
	PageSize int           `yaml:"page_size" koanf:"page_size"`
	Workers  int           `yaml:"workers" koanf:"workers"`
}

// ManualConfig bounds how much manual text goes into a prompt.
type ManualConfig struct {
	ContextBudget        int  `yaml:"context_budget" koanf:"context_budget"`
	MaxEntries           int  `yaml:"max_entries" koanf:"max_entries"`
	DirectKeywordAnswers bool `yaml:"direct_keyword_answers" koanf:"direct_keyword_answers"`
}

// ShopConfig describes the shop to the model.
type ShopConfig struct {
	Name string `yaml:"name" koanf:"name"`
}

// WebhookConfig secures the Cafe24 webhook.
type WebhookConfig struct {
	Secret string `yaml:"secret" koanf:"secret"`
}

// NotifyConfig holds the operator notification channels.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" koanf:"slack_webhook_url"`
	TelegramToken   string `yaml:"telegram_token" koanf:"telegram_token"`
	TelegramChatID  int64  `yaml:"telegram_chat_id" koanf:"telegram_chat_id"`
	// LinkSecret signs approve and reject links. When empty a random key is
	// used and links die with the process.
	LinkSecret string `yaml:"link_secret" koanf:"link_secret"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" koanf:"level"`
	Development bool   `yaml:"development" koanf:"development"`
}
