// Package notifier delivers qualifying posts to the configured channels.
// Delivery is best-effort: a failed send is logged by the caller and never
// blocks the poll cycle.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"market_watcher/internal/domain"
)

// Telegram sends notifications through the Bot API sendMessage endpoint.
// When disabled, Send is a no-op success.
type Telegram struct {
	httpClient *http.Client
	apiURL     string
	token      string
	chatID     string
	enabled    bool
	logger     *slog.Logger
}

// TelegramConfig holds Telegram channel configuration.
type TelegramConfig struct {
	Enabled  bool
	APIURL   string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	return &Telegram{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiURL:  strings.TrimSuffix(cfg.APIURL, "/"),
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		enabled: cfg.Enabled,
		logger:  logger.With("notifier", "telegram"),
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

type telegramPayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts the rendered notification to the configured chat.
func (t *Telegram) Send(ctx context.Context, msg *domain.Notification) error {
	if !t.enabled {
		t.logger.Debug("telegram disabled, skipping send", "post_id", msg.Post.ID)
		return nil
	}

	payload := telegramPayload{
		ChatID: t.chatID,
		Text:   RenderText(msg),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, detail)
	}

	t.logger.Debug("telegram message sent", "post_id", msg.Post.ID)
	return nil
}

// RenderText formats a notification into a single chat message.
func RenderText(msg *domain.Notification) string {
	var sb strings.Builder

	when := msg.Post.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")
	if msg.Post.Author != "" {
		fmt.Fprintf(&sb, "[%s] u/%s at %s", msg.Label, msg.Post.Author, when)
	} else {
		fmt.Fprintf(&sb, "[%s] %s", msg.Label, when)
	}
	if msg.Post.Title != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.Post.Title)
	}
	if msg.Post.URL != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.Post.URL)
	}

	if msg.SocialScore != "" {
		fmt.Fprintf(&sb, "\nAuthor: %s", msg.SocialScore)
	}

	if c := msg.Classification; c != nil {
		if c.Significance.Rationale != "" {
			fmt.Fprintf(&sb, "\nWhy: %s", c.Significance.Rationale)
		}
		fmt.Fprintf(&sb, "\nSentiment: %d/100 %s", c.Sentiment.Score, c.Sentiment.Direction)
		if c.Summary != "" {
			fmt.Fprintf(&sb, "\nSummary: %s", c.Summary)
		}
	}

	return sb.String()
}
