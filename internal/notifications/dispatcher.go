package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// previewRunes caps the answer excerpt sent to chat channels.
const previewRunes = 500

// Settings is the subset of the settings store the dispatcher reads.
type Settings interface {
	NotificationEnabled(ctx context.Context) (bool, error)
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// TelegramSender is satisfied by *tgbotapi.BotAPI.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configures delivery channels.
type Options struct {
	// BaseURL prefixes the approve and reject links. Links are sent only
	// when both BaseURL and Links are set.
	BaseURL string
	Links   *LinkSigner
	// SlackWebhookURL is used when the slack_webhook_url setting is empty.
	SlackWebhookURL string
	Telegram        TelegramSender
	TelegramChatID  int64
}

// Dispatcher stores events and delivers them to Slack and Telegram.
type Dispatcher struct {
	store    *Store
	settings Settings
	opts     Options
	client   *http.Client
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher backed by the given store.
func NewDispatcher(store *Store, settings Settings, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Dispatcher{
		store:    store,
		settings: settings,
		opts:     opts,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("notifications"),
	}
}

// Send persists ev and, when notifications are enabled, delivers it to
// every configured channel. The row is marked delivered if any channel
// accepted it.
func (d *Dispatcher) Send(ctx context.Context, ev Event) error {
	n := Notification{
		Type:    ev.Type,
		PostID:  ev.PostID,
		BoardID: ev.BoardID,
		Title:   ev.Title,
		Message: ev.SuggestedAnswer,
	}
	if ev.LogID > 0 {
		id := ev.LogID
		n.AnswerLogID = &id
	}
	stored, err := d.store.Create(ctx, n)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	enabled, err := d.settings.NotificationEnabled(ctx)
	if err != nil {
		return fmt.Errorf("reading notification setting: %w", err)
	}
	if !enabled {
		return nil
	}

	var (
		errs      []error
		delivered bool
	)
	if url := d.slackURL(ctx); url != "" {
		if err := d.sendSlack(ctx, url, ev); err != nil {
			errs = append(errs, err)
		} else {
			delivered = true
		}
	}
	if d.opts.Telegram != nil && d.opts.TelegramChatID != 0 {
		if err := d.sendTelegram(ev); err != nil {
			errs = append(errs, err)
		} else {
			delivered = true
		}
	}

	if delivered {
		if err := d.store.MarkDelivered(ctx, stored.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	d.logger.Debug("notification sent", zap.String("type", string(ev.Type)), zap.String("post_id", ev.PostID))
	return nil
}

func (d *Dispatcher) slackURL(ctx context.Context) string {
	if v, ok, err := d.settings.Lookup(ctx, "slack_webhook_url"); err == nil && ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return d.opts.SlackWebhookURL
}

func (d *Dispatcher) actionURL(logID int64, action string) string {
	if d.opts.BaseURL == "" || d.opts.Links == nil || logID <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/answers/%d/%s?token=%s", d.opts.BaseURL, logID, action, d.opts.Links.Sign(logID, action))
}

func headline(t EventType) string {
	if t == TypeReplyFailed {
		return "자동 답변 등록에 실패했습니다"
	}
	return "새로운 답변 제안이 생성되었습니다"
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "..."
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAction struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Style string `json:"style"`
}

type slackAttachment struct {
	Color   string        `json:"color"`
	Fields  []slackField  `json:"fields"`
	Actions []slackAction `json:"actions,omitempty"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (d *Dispatcher) slackPayload(ev Event) slackMessage {
	color := "good"
	if ev.Type == TypeReplyFailed {
		color = "danger"
	}
	att := slackAttachment{
		Color: color,
		Fields: []slackField{
			{Title: "게시글 ID", Value: ev.PostID, Short: true},
			{Title: "제목", Value: ev.Title},
			{Title: "제안된 답변", Value: preview(ev.SuggestedAnswer)},
		},
	}
	if approve := d.actionURL(ev.LogID, ActionApprove); approve != "" {
		att.Actions = []slackAction{
			{Type: "button", Text: "답변 승인", URL: approve, Style: "primary"},
			{Type: "button", Text: "답변 거부", URL: d.actionURL(ev.LogID, ActionReject), Style: "danger"},
		}
	}
	return slackMessage{Text: headline(ev.Type), Attachments: []slackAttachment{att}}
}

func (d *Dispatcher) sendSlack(ctx context.Context, url string, ev Event) error {
	payload, err := json.Marshal(d.slackPayload(ev))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendTelegram(ev Event) error {
	text := fmt.Sprintf("[%s]\n\n게시글 %s: %s\n\n%s", headline(ev.Type), ev.PostID, ev.Title, preview(ev.SuggestedAnswer))
	msg := tgbotapi.NewMessage(d.opts.TelegramChatID, text)
	if approve := d.actionURL(ev.LogID, ActionApprove); approve != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("✅ 승인", approve),
				tgbotapi.NewInlineKeyboardButtonURL("❌ 거절", d.actionURL(ev.LogID, ActionReject)),
			),
		)
	}
	if _, err := d.opts.Telegram.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
