// Package telegram sends recommendations through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/analog/internal/core"
)

const defaultAPIBase = "https://api.telegram.org"

// Config holds bot settings. APIBase is only overridden in tests.
type Config struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Telegram implements notifier.Notifier for the Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a Telegram notifier. Token and chat ID are required.
func New(cfg Config) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  strings.TrimSuffix(cfg.APIBase, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Send(ctx context.Context, rec core.TradeRecommendation) error {
	return t.sendMessage(ctx, formatRecommendation(rec))
}

func formatRecommendation(rec core.TradeRecommendation) string {
	var sb strings.Builder

	emoji := "📈"
	if rec.OptionType == core.OptionPut {
		emoji = "📉"
	}

	fmt.Fprintf(&sb, "%s *%s %s*", emoji, rec.Ticker, rec.OptionType)
	if rec.Strike != nil && rec.Expiry != nil {
		fmt.Fprintf(&sb, " %.2f exp %s", *rec.Strike, rec.Expiry.Format("2006-01-02"))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "📰 %s\n", rec.Classification.Headline.Title)
	fmt.Fprintf(&sb, "📊 Expected move: %+.2f%%\n", rec.ExpectedMovePct)
	fmt.Fprintf(&sb, "🎯 Confidence: %.0f%% (%s)\n", rec.Confidence*100, rec.ConfidenceLevel)
	if rec.Degraded() {
		sb.WriteString("⚠️ Built on fallback data\n")
	}
	fmt.Fprintf(&sb, "⏰ %s", rec.CreatedAt.Format("2006-01-02 15:04:05"))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result["description"])
	}
	return nil
}
