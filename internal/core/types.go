package core

import (
	"fmt"
	"time"
)

// Headline is a raw news item as delivered by a feed.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// HeadlineClassification is a headline tagged with the controlled vocabulary.
// Ticker may be empty, in which case it is inferred from the best match.
type HeadlineClassification struct {
	Headline     Headline  `json:"headline"`
	EventType    EventType `json:"event_type"`
	Sentiment    Sentiment `json:"sentiment"`
	Sector       Sector    `json:"sector"`
	Ticker       string    `json:"ticker,omitempty"`
	ClassifiedBy string    `json:"classified_by,omitempty"`
}

// Validate checks every tag against its vocabulary.
func (c HeadlineClassification) Validate() error {
	if !c.EventType.Valid() {
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("event type %q", c.EventType))
	}
	if err := c.Sentiment.Validate(); err != nil {
		return err
	}
	if !c.Sector.Valid() {
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("sector %q", c.Sector))
	}
	return nil
}

// HistoricalEventTemplate is a curated past event with its recorded market reaction.
type HistoricalEventTemplate struct {
	ID                     string    `json:"id"`
	Date                   time.Time `json:"date"`
	Summary                string    `json:"summary"`
	EventType              EventType `json:"event_type"`
	Sentiment              Sentiment `json:"sentiment"`
	Sector                 Sector    `json:"sector"`
	Ticker                 string    `json:"ticker"`
	ExpectedChangePct      float64   `json:"expected_change_pct"`
	ExpectedMaxDrawdownPct float64   `json:"expected_max_drawdown_pct"`
	Keywords               []string  `json:"keywords,omitempty"`
}

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// RealizedMove is the measured reaction of a ticker over the analysis window.
type RealizedMove struct {
	Series         []PricePoint `json:"series,omitempty"`
	ChangePct      float64      `json:"change_pct"`
	MaxDrawdownPct float64      `json:"max_drawdown_pct"`
}

// Enriched carries a value together with whether it came from a live source.
// When Live is false the value is a fallback and Reason says why.
type Enriched[T any] struct {
	Value  T      `json:"value"`
	Live   bool   `json:"live"`
	Reason string `json:"reason,omitempty"`
}

// Live wraps a value fetched from a live source.
func Live[T any](v T) Enriched[T] {
	return Enriched[T]{Value: v, Live: true}
}

// Fallback wraps a substitute value and records why the live source was not used.
func Fallback[T any](v T, reason string) Enriched[T] {
	return Enriched[T]{Value: v, Reason: reason}
}

// MatchResult is a template paired with its similarity score and,
// when enrichment succeeded, the realized move.
type MatchResult struct {
	Template HistoricalEventTemplate `json:"template"`
	Score    float64                 `json:"score"`
	Outcome  Enriched[RealizedMove]  `json:"outcome"`
}

// EnrichmentFailed reports whether the realized move is missing.
func (m MatchResult) EnrichmentFailed() bool {
	return !m.Outcome.Live
}

// ExpectedMove is the aggregate move implied by a set of matches.
type ExpectedMove struct {
	Percent         float64           `json:"percent"`
	RawPercent      float64           `json:"raw_percent"`
	Confidence      float64           `json:"confidence"`
	VolatilityRatio float64           `json:"volatility_ratio"`
	Volatility      Enriched[float64] `json:"volatility"`
	Agreement       float64           `json:"agreement"`
	Matches         int               `json:"matches"`
}

// OptionContract is one listed contract in a chain.
type OptionContract struct {
	Ticker            string     `json:"ticker"`
	Expiry            time.Time  `json:"expiry"`
	Strike            float64    `json:"strike"`
	Type              OptionType `json:"type"`
	ImpliedVolatility float64    `json:"implied_volatility,omitempty"`
}

// Abstain reasons.
const (
	ReasonNoQualifyingMatch      = "no_qualifying_match"
	ReasonLowConfidence          = "low_confidence"
	ReasonNoDirectionalEdge      = "no_directional_edge"
	ReasonInsufficientMarketData = "insufficient_market_data"
	ReasonNoSuitableExpiry       = "no_suitable_expiry"
)

// ConfidenceLevel buckets a confidence value into a qualitative label.
func ConfidenceLevel(c float64) string {
	switch {
	case c >= 0.6:
		return "high"
	case c >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// TradeRecommendation is the final output of a pipeline run.
type TradeRecommendation struct {
	ID                    string                 `json:"id"`
	CreatedAt             time.Time              `json:"created_at"`
	Classification        HeadlineClassification `json:"classification"`
	Ticker                string                 `json:"ticker"`
	OptionType            OptionType             `json:"option_type"`
	Strike                *float64               `json:"strike,omitempty"`
	Expiry                *time.Time             `json:"expiry,omitempty"`
	SpotPrice             float64                `json:"spot_price,omitempty"`
	ExpectedMovePct       float64                `json:"expected_move_pct"`
	Confidence            float64                `json:"confidence"`
	ConfidenceLevel       string                 `json:"confidence_level"`
	Rationale             string                 `json:"rationale"`
	AbstainReason         string                 `json:"abstain_reason,omitempty"`
	Matches               []MatchResult          `json:"matches,omitempty"`
	ChainUnavailable      bool                   `json:"chain_unavailable"`
	EnrichmentFailed      bool                   `json:"enrichment_failed"`
	VolatilityUnavailable bool                   `json:"volatility_unavailable"`
}

// Degraded reports whether any input came from a fallback path.
func (r TradeRecommendation) Degraded() bool {
	return r.ChainUnavailable || r.EnrichmentFailed || r.VolatilityUnavailable
}

// Validate checks the structural invariants of a recommendation.
func (r TradeRecommendation) Validate() error {
	switch r.OptionType {
	case OptionAbstain:
		if r.Strike != nil || r.Expiry != nil {
			return fmt.Errorf("abstain recommendation must not carry strike or expiry")
		}
		if r.Rationale == "" {
			return fmt.Errorf("abstain recommendation must state a reason")
		}
	case OptionCall, OptionPut:
		if r.Strike == nil || r.Expiry == nil {
			return fmt.Errorf("%s recommendation requires strike and expiry", r.OptionType)
		}
		if r.Ticker == "" {
			return fmt.Errorf("%s recommendation requires a ticker", r.OptionType)
		}
	default:
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("option type %q", r.OptionType))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", r.Confidence)
	}
	return nil
}
