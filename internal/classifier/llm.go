package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/llm"
	"github.com/newthinker/analog/internal/marketdata"
)

// LLMConfig tunes the model call.
type LLMConfig struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultLLMConfig returns a 30s timeout, 300 tokens and temperature 0.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{Timeout: 30 * time.Second, MaxTokens: 300}
}

// LLMClassifier asks a chat model for the tags and validates the answer
// against the vocabulary.
type LLMClassifier struct {
	provider llm.Provider
	cfg      LLMConfig
	logger   *zap.Logger
}

// NewLLMClassifier wraps provider.
func NewLLMClassifier(provider llm.Provider, cfg LLMConfig, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultLLMConfig().MaxTokens
	}
	return &LLMClassifier{provider: provider, cfg: cfg, logger: logger}
}

func (c *LLMClassifier) Name() string { return "llm:" + c.provider.Name() }

type llmAnswer struct {
	EventType      string   `json:"event_type"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentiment_score"`
	Sector         string   `json:"sector"`
	Ticker         string   `json:"ticker"`
}

func (c *LLMClassifier) Classify(ctx context.Context, h core.Headline) (core.HeadlineClassification, error) {
	if strings.TrimSpace(h.Title) == "" {
		return core.HeadlineClassification{}, core.WrapError(core.ErrClassification, fmt.Errorf("empty headline"))
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userPrompt(h)}},
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
		JSONMode:     true,
	})
	if err != nil {
		return core.HeadlineClassification{}, core.WrapError(core.ErrClassification, err)
	}
	c.logger.Debug("llm classification",
		zap.String("provider", c.provider.Name()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)

	out, err := parseAnswer(resp.Content)
	if err != nil {
		return core.HeadlineClassification{}, core.WrapError(core.ErrClassification, err)
	}
	out.Headline = h
	out.ClassifiedBy = c.Name()
	return out, nil
}

func parseAnswer(content string) (core.HeadlineClassification, error) {
	var a llmAnswer
	if err := json.Unmarshal([]byte(llm.ExtractJSON(content)), &a); err != nil {
		return core.HeadlineClassification{}, fmt.Errorf("decoding model answer: %w", err)
	}

	et, err := core.ParseEventType(a.EventType)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	label, err := core.ParseSentimentLabel(a.Sentiment)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	sector, err := core.ParseSector(a.Sector)
	if err != nil {
		return core.HeadlineClassification{}, err
	}

	var score float64
	if a.SentimentScore != nil {
		score = *a.SentimentScore
	}
	sentiment, err := core.NewSentiment(label, score)
	if err != nil {
		return core.HeadlineClassification{}, err
	}

	ticker := strings.ToUpper(strings.TrimSpace(a.Ticker))
	if ticker == "NONE" || ticker == "N/A" {
		ticker = ""
	}
	if ticker != "" {
		ticker = marketdata.StandardizeTicker(ticker)
	}

	return core.HeadlineClassification{
		EventType: et,
		Sentiment: sentiment,
		Sector:    sector,
		Ticker:    ticker,
	}, nil
}

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a macroeconomic news classifier for an options desk. ")
	b.WriteString("Classify the headline using only the allowed values.\n\n")
	b.WriteString("event_type: ")
	b.WriteString(joinValues(core.EventTypes))
	b.WriteString("\nsentiment: ")
	b.WriteString(joinValues(core.SentimentLabels))
	b.WriteString("\nsentiment_score: number in [-1, 1], negative for Bearish, positive for Bullish, 0 for Neutral")
	b.WriteString("\nsector: ")
	b.WriteString(joinValues(core.Sectors))
	b.WriteString("\nticker: the most directly affected US-listed stock or ETF symbol, or an empty string\n\n")
	b.WriteString(`Answer as {"event_type": "...", "sentiment": "...", "sentiment_score": 0.0, "sector": "...", "ticker": "..."}`)
	return b.String()
}

func joinValues[T ~string](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func userPrompt(h core.Headline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Headline: %q", h.Title)
	if h.Source != "" {
		fmt.Fprintf(&b, "\nSource: %s", h.Source)
	}
	if !h.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "\nPublished: %s", h.PublishedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}
