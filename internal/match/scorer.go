// Package match scores classified headlines against historical event
// templates and ranks the best analogues.
package match

import (
	"fmt"
	"math"

	"github.com/newthinker/analog/internal/core"
)

// Weights are the relative contributions of each sub-score. They are
// normalized by their sum, so only the ratios matter.
type Weights struct {
	EventType float64 `mapstructure:"event_type_weight"`
	Sentiment float64 `mapstructure:"sentiment_weight"`
	Sector    float64 `mapstructure:"sector_weight"`
	Keyword   float64 `mapstructure:"keyword_weight"`
}

// DefaultWeights returns 0.4 / 0.3 / 0.2 / 0.1.
func DefaultWeights() Weights {
	return Weights{EventType: 0.4, Sentiment: 0.3, Sector: 0.2, Keyword: 0.1}
}

func (w Weights) sum() float64 {
	return w.EventType + w.Sentiment + w.Sector + w.Keyword
}

// Validate rejects negative weights and an all-zero set.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"event_type_weight": w.EventType,
		"sentiment_weight":  w.Sentiment,
		"sector_weight":     w.Sector,
		"keyword_weight":    w.Keyword,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%s must be non-negative, got %v", name, v)
		}
	}
	if w.sum() <= 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// DefaultMismatchCap is the highest score a template of a different event type can reach.
const DefaultMismatchCap = 0.3

// Scorer computes the similarity between a classification and a template.
// It is pure and safe for concurrent use.
type Scorer struct {
	weights     Weights
	mismatchCap float64
}

// NewScorer validates weights and the event type mismatch cap.
func NewScorer(w Weights, mismatchCap float64) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	if mismatchCap < 0 || mismatchCap > 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("event type mismatch cap must be in [0, 1], got %v", mismatchCap))
	}
	return &Scorer{weights: w, mismatchCap: mismatchCap}, nil
}

// DefaultScorer uses DefaultWeights and DefaultMismatchCap.
func DefaultScorer() *Scorer {
	return &Scorer{weights: DefaultWeights(), mismatchCap: DefaultMismatchCap}
}

// Breakdown holds the individual sub-scores behind a composite score.
type Breakdown struct {
	EventType float64
	Sentiment float64
	Sector    float64
	Keyword   float64
	Total     float64
}

// Score returns the composite similarity in [0, 1].
func (s *Scorer) Score(c core.HeadlineClassification, t core.HistoricalEventTemplate) float64 {
	return s.Explain(c, t).Total
}

// Explain returns the composite score together with its components.
func (s *Scorer) Explain(c core.HeadlineClassification, t core.HistoricalEventTemplate) Breakdown {
	b := Breakdown{
		Sentiment: SentimentSimilarity(c.Sentiment, t.Sentiment),
		Sector:    SectorSimilarity(c.Sector, t.Sector),
		Keyword:   textSimilarity(c.Headline.Title, t),
	}
	if c.EventType == t.EventType {
		b.EventType = 1
	}

	w := s.weights
	total := (w.EventType*b.EventType + w.Sentiment*b.Sentiment + w.Sector*b.Sector + w.Keyword*b.Keyword) / w.sum()
	if b.EventType == 0 && total > s.mismatchCap {
		total = s.mismatchCap
	}
	b.Total = clamp01(total)
	return b
}

// SentimentSimilarity gives full credit for the same label, partial credit
// for the same label at a different intensity, a little for Neutral against
// a polar label and nothing for opposite polarity.
func SentimentSimilarity(a, b core.Sentiment) float64 {
	if a.Label == b.Label {
		if a.Score == 0 || b.Score == 0 {
			return 1
		}
		return math.Max(0.5, 1-0.5*math.Abs(a.Score-b.Score))
	}
	if a.Label == core.Neutral || b.Label == core.Neutral {
		return 0.25
	}
	return 0
}

// SectorSimilarity gives half credit when either side is General.
func SectorSimilarity(a, b core.Sector) float64 {
	switch {
	case a == b:
		return 1
	case a == core.SectorGeneral || b == core.SectorGeneral:
		return 0.5
	}
	return 0
}

func textSimilarity(headline string, t core.HistoricalEventTemplate) float64 {
	if len(t.Keywords) > 0 {
		return KeywordOverlap(headline, t.Keywords)
	}
	return Jaccard(Tokens(headline), Tokens(t.Summary))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
