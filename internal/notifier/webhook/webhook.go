// Package webhook posts recommendations as JSON to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/analog/internal/core"
)

// Config holds webhook settings.
type Config struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// Webhook implements notifier.Notifier for HTTP webhooks
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New creates a webhook notifier. The URL is required.
func New(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Webhook{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

// Payload is the JSON body of one notification.
type Payload struct {
	Type            string          `json:"type"`
	ID              string          `json:"id"`
	Headline        string          `json:"headline"`
	Ticker          string          `json:"ticker"`
	OptionType      core.OptionType `json:"option_type"`
	Strike          *float64        `json:"strike,omitempty"`
	Expiry          string          `json:"expiry,omitempty"`
	ExpectedMovePct float64         `json:"expected_move_pct"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel string          `json:"confidence_level"`
	Degraded        bool            `json:"degraded"`
	Rationale       string          `json:"rationale"`
	CreatedAt       string          `json:"created_at"`
}

func toPayload(rec core.TradeRecommendation) Payload {
	p := Payload{
		Type:            "recommendation",
		ID:              rec.ID,
		Headline:        rec.Classification.Headline.Title,
		Ticker:          rec.Ticker,
		OptionType:      rec.OptionType,
		Strike:          rec.Strike,
		ExpectedMovePct: rec.ExpectedMovePct,
		Confidence:      rec.Confidence,
		ConfidenceLevel: rec.ConfidenceLevel,
		Degraded:        rec.Degraded(),
		Rationale:       rec.Rationale,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.Expiry != nil {
		p.Expiry = rec.Expiry.Format("2006-01-02")
	}
	return p
}

func (w *Webhook) Send(ctx context.Context, rec core.TradeRecommendation) error {
	body, err := json.Marshal(toPayload(rec))
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}
	return nil
}
