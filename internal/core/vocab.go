package core

import (
	"fmt"
	"strings"
)

// EventType classifies what kind of market-moving event a headline describes.
type EventType string

const (
	EventMonetaryPolicy EventType = "Monetary Policy"
	EventInflation      EventType = "Inflation"
	EventEconomicGrowth EventType = "Economic Growth"
	EventEmployment     EventType = "Employment"
	EventTrade          EventType = "Trade"
	EventGeopolitical   EventType = "Geopolitical"
	EventFiscalPolicy   EventType = "Fiscal Policy"
	EventRegulation     EventType = "Regulation"
	EventEarnings       EventType = "Earnings"
	EventCommodity      EventType = "Commodity"
	EventOther          EventType = "Other"
)

// EventTypes lists the full event type vocabulary in display order.
var EventTypes = []EventType{
	EventMonetaryPolicy, EventInflation, EventEconomicGrowth, EventEmployment,
	EventTrade, EventGeopolitical, EventFiscalPolicy, EventRegulation,
	EventEarnings, EventCommodity, EventOther,
}

// SentimentLabel is the polarity of a headline or event.
type SentimentLabel string

const (
	Bullish SentimentLabel = "Bullish"
	Bearish SentimentLabel = "Bearish"
	Neutral SentimentLabel = "Neutral"
)

// SentimentLabels lists the sentiment vocabulary.
var SentimentLabels = []SentimentLabel{Bullish, Bearish, Neutral}

// Sign returns +1 for Bullish, -1 for Bearish and 0 for Neutral.
func (l SentimentLabel) Sign() int {
	switch l {
	case Bullish:
		return 1
	case Bearish:
		return -1
	}
	return 0
}

// Sector is the market sector an event primarily affects.
type Sector string

const (
	SectorTechnology    Sector = "Technology"
	SectorFinancials    Sector = "Financials"
	SectorEnergy        Sector = "Energy"
	SectorConsumer      Sector = "Consumer"
	SectorHealthcare    Sector = "Healthcare"
	SectorIndustrials   Sector = "Industrials"
	SectorMaterials     Sector = "Materials"
	SectorUtilities     Sector = "Utilities"
	SectorRealEstate    Sector = "Real Estate"
	SectorCommunication Sector = "Communication Services"
	SectorGeneral       Sector = "General"
)

// Sectors lists the sector vocabulary.
var Sectors = []Sector{
	SectorTechnology, SectorFinancials, SectorEnergy, SectorConsumer,
	SectorHealthcare, SectorIndustrials, SectorMaterials, SectorUtilities,
	SectorRealEstate, SectorCommunication, SectorGeneral,
}

// OptionType is the direction of a recommendation.
type OptionType string

const (
	OptionCall    OptionType = "CALL"
	OptionPut     OptionType = "PUT"
	OptionAbstain OptionType = "ABSTAIN"
)

// ParseEventType matches s case-insensitively against the event type vocabulary.
func ParseEventType(s string) (EventType, error) {
	for _, v := range EventTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", WrapError(ErrInvalidVocabulary, fmt.Errorf("event type %q", s))
}

// ParseSentimentLabel matches s case-insensitively against the sentiment vocabulary.
func ParseSentimentLabel(s string) (SentimentLabel, error) {
	for _, v := range SentimentLabels {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", WrapError(ErrInvalidVocabulary, fmt.Errorf("sentiment %q", s))
}

// ParseSector matches s case-insensitively against the sector vocabulary.
func ParseSector(s string) (Sector, error) {
	for _, v := range Sectors {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", WrapError(ErrInvalidVocabulary, fmt.Errorf("sector %q", s))
}

// ParseOptionType accepts CALL, PUT or ABSTAIN in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch OptionType(strings.ToUpper(strings.TrimSpace(s))) {
	case OptionCall:
		return OptionCall, nil
	case OptionPut:
		return OptionPut, nil
	case OptionAbstain:
		return OptionAbstain, nil
	}
	return "", WrapError(ErrInvalidVocabulary, fmt.Errorf("option type %q", s))
}

// Valid reports whether t is part of the vocabulary.
func (t EventType) Valid() bool {
	for _, v := range EventTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Valid reports whether l is part of the vocabulary.
func (l SentimentLabel) Valid() bool {
	return l == Bullish || l == Bearish || l == Neutral
}

// Valid reports whether s is part of the vocabulary.
func (s Sector) Valid() bool {
	for _, v := range Sectors {
		if s == v {
			return true
		}
	}
	return false
}

// Sentiment pairs a label with an optional intensity in [-1, 1].
// A zero Score means only the label is known.
type Sentiment struct {
	Label SentimentLabel `json:"label" yaml:"label"`
	Score float64        `json:"score,omitempty" yaml:"score,omitempty"`
}

// NewSentiment validates the label and score together.
func NewSentiment(label SentimentLabel, score float64) (Sentiment, error) {
	s := Sentiment{Label: label, Score: score}
	if err := s.Validate(); err != nil {
		return Sentiment{}, err
	}
	return s, nil
}

// Validate checks the score range and that its sign agrees with the label.
func (s Sentiment) Validate() error {
	if !s.Label.Valid() {
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("sentiment %q", s.Label))
	}
	if s.Score < -1 || s.Score > 1 {
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("sentiment score %v outside [-1, 1]", s.Score))
	}
	if (s.Label == Bullish && s.Score < 0) || (s.Label == Bearish && s.Score > 0) {
		return WrapError(ErrInvalidVocabulary, fmt.Errorf("sentiment score %v contradicts label %s", s.Score, s.Label))
	}
	return nil
}
