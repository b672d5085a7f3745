package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chosahoo/cafe24-cs-bot/internal/answer"
	"github.com/chosahoo/cafe24-cs-bot/internal/auth"
	"github.com/chosahoo/cafe24-cs-bot/internal/board"
	"github.com/chosahoo/cafe24-cs-bot/internal/config"
	"github.com/chosahoo/cafe24-cs-bot/internal/db"
	"github.com/chosahoo/cafe24-cs-bot/internal/ledger"
	"github.com/chosahoo/cafe24-cs-bot/internal/llm"
	"github.com/chosahoo/cafe24-cs-bot/internal/manual"
	"github.com/chosahoo/cafe24-cs-bot/internal/notifications"
	"github.com/chosahoo/cafe24-cs-bot/internal/orchestrator"
	"github.com/chosahoo/cafe24-cs-bot/internal/poller"
	"github.com/chosahoo/cafe24-cs-bot/internal/settings"
)

// shopLocation is the time zone Cafe24 shops report in.
var shopLocation = time.FixedZone("KST", 9*60*60)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `csbot init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// app holds the wired components shared by the commands.
type app struct {
	cfg           *config.Config
	db            *db.DB
	settings      *settings.Store
	manuals       *manual.Store
	logs          *ledger.Store
	monitor       *ledger.MonitorStore
	notifications *notifications.Store
	oauth         *auth.Cafe24OAuth
	links         *notifications.LinkSigner
	service       *orchestrator.Service
}

// buildApp opens the database and wires the reply pipeline.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.Cafe24.MallID == "" || cfg.Cafe24.ClientID == "" {
		return nil, errors.New("cafe24.mall_id and cafe24.client_id are required; run `csbot init`")
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:           cfg,
		db:            database,
		settings:      settings.NewStore(database),
		manuals:       manual.NewStore(database),
		logs:          ledger.NewStore(database),
		monitor:       ledger.NewMonitorStore(database),
		notifications: notifications.NewStore(database),
	}

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	provider = llm.NewRateLimitedProvider(provider, cfg.LLM.RequestsPerMinute)

	generator := answer.NewGenerator(provider, a.manuals, a.settings, answer.Options{
		Model:                cfg.Model,
		Temperature:          cfg.LLM.Temperature,
		MaxTokens:            cfg.LLM.MaxTokens,
		ShopName:             cfg.Shop.Name,
		ContextBudget:        cfg.Manual.ContextBudget,
		MaxManuals:           cfg.Manual.MaxEntries,
		DirectKeywordAnswers: cfg.Manual.DirectKeywordAnswers,
	}, logger)

	a.oauth = auth.NewCafe24OAuth(cfg.Cafe24.ClientID, cfg.Cafe24.ClientSecret, cfg.RedirectURL(),
		auth.NewTokenStore(database), logger)

	gateway := board.NewCafe24Client(board.Cafe24Config{
		MallID:            cfg.Cafe24.MallID,
		ClientID:          cfg.Cafe24.ClientID,
		ShopNo:            cfg.Cafe24.ShopNo,
		APIVersion:        cfg.Cafe24.APIVersion,
		ReplyWriter:       cfg.Cafe24.ReplyWriter,
		ReplyTitle:        cfg.Cafe24.ReplyTitle,
		RequestsPerSecond: cfg.Cafe24.RequestsPerSecond,
	}, a.oauth.TokenSource(ctx, cfg.Cafe24.MallID), logger)

	a.links, err = notifications.NewLinkSigner(cfg.Notify.LinkSecret)
	if err != nil {
		database.Close()
		return nil, err
	}
	if cfg.Notify.LinkSecret == "" && cfg.Server.BaseURL != "" {
		logger.Warn("notify.link_secret is not set; approval links stop working after a restart")
	}

	notifyOpts := notifications.Options{
		BaseURL:         cfg.Server.BaseURL,
		Links:           a.links,
		SlackWebhookURL: cfg.Notify.SlackWebhookURL,
		TelegramChatID:  cfg.Notify.TelegramChatID,
	}
	if cfg.Notify.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Notify.TelegramToken)
		if err != nil {
			// Notifications are best effort; the pipeline still runs.
			logger.Warn("telegram bot unavailable", zap.Error(err))
		} else {
			notifyOpts.Telegram = bot
		}
	}
	dispatcher := notifications.NewDispatcher(a.notifications, a.settings, notifyOpts, logger)

	a.service = orchestrator.New(orchestrator.Deps{
		Gateway:   gateway,
		Generator: generator,
		Settings:  a.settings,
		Logs:      a.logs,
		Monitor:   a.monitor,
		Sink:      dispatcher,
	}, orchestrator.Options{
		PageSize: cfg.Poll.PageSize,
		Location: shopLocation,
	}, logger)

	return a, nil
}

// newPoller builds the board poller for the configured boards.
func (a *app) newPoller(workers int, logger *zap.Logger) *poller.Poller {
	return poller.New(a.service, a.settings, poller.Options{
		Boards:   a.cfg.Boards,
		Interval: a.cfg.Poll.Interval,
		Workers:  workers,
	}, logger)
}

func (a *app) Close() error {
	return a.db.Close()
}
