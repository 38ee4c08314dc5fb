package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/newthinker/analog/internal/core"
)

type rule[T any] struct {
	value    T
	keywords []string
}

// First matching rule wins.
var eventRules = []rule[core.EventType]{
	{core.EventMonetaryPolicy, []string{"fed", "fomc", "rate", "rates", "interest", "powell", "central bank", "monetary", "hawkish", "dovish"}},
	{core.EventInflation, []string{"inflation", "cpi", "pce", "prices", "cost"}},
	{core.EventEmployment, []string{"jobs", "payrolls", "unemployment", "jobless", "hiring", "layoffs"}},
	{core.EventEconomicGrowth, []string{"gdp", "growth", "economy", "recession"}},
	{core.EventTrade, []string{"trade", "tariff", "tariffs", "export", "exports", "import", "imports"}},
	{core.EventGeopolitical, []string{"war", "conflict", "military", "attack", "defense", "invasion", "sanctions"}},
	{core.EventFiscalPolicy, []string{"tax", "budget", "spending", "fiscal", "stimulus"}},
	{core.EventRegulation, []string{"regulation", "regulators", "compliance", "law", "legislation", "antitrust"}},
	{core.EventEarnings, []string{"earnings", "eps", "revenue", "profit", "quarterly", "guidance"}},
	{core.EventCommodity, []string{"opec", "crude", "gold", "copper", "wheat", "commodity", "commodities"}},
}

var sentimentRules = []rule[core.SentimentLabel]{
	{core.Bullish, []string{"up", "rise", "rises", "gain", "gains", "positive", "rally", "surge", "surges", "grow", "bullish", "beat", "beats", "record"}},
	{core.Bearish, []string{"down", "fall", "falls", "drop", "drops", "negative", "decline", "bearish", "crash", "fear", "miss", "misses", "plunge", "hike", "hikes"}},
}

var sectorRules = []rule[core.Sector]{
	{core.SectorTechnology, []string{"tech", "software", "ai", "digital", "chip", "chips", "semiconductor"}},
	{core.SectorFinancials, []string{"bank", "banks", "finance", "mortgage", "loan", "loans", "credit", "insurance"}},
	{core.SectorEnergy, []string{"oil", "gas", "renewable", "solar", "energy", "power", "opec", "crude"}},
	{core.SectorConsumer, []string{"retail", "consumer", "shop", "store", "stores"}},
	{core.SectorHealthcare, []string{"health", "biotech", "pharma", "medical", "healthcare", "drug"}},
}

// SectorETF is the proxy ticker used when a headline names no symbol.
var SectorETF = map[core.Sector]string{
	core.SectorTechnology: "QQQ",
	core.SectorFinancials: "XLF",
	core.SectorEnergy:     "XLE",
	core.SectorHealthcare: "XLV",
	core.SectorConsumer:   "XLP",
}

const defaultTicker = "SPY"

// Uppercase words that look like tickers but are not.
var notTickers = map[string]bool{
	"A": true, "I": true, "US": true, "U": true, "UK": true, "EU": true, "AI": true,
	"CEO": true, "CPI": true, "PCE": true, "GDP": true, "FED": true, "FOMC": true,
	"ECB": true, "IMF": true, "OPEC": true, "SEC": true, "IPO": true, "EPS": true,
	"ETF": true, "BREAKING": true,
}

// KeywordClassifier applies fixed keyword tables. It never fails on a
// non-empty headline and leaves the sentiment score at zero.
type KeywordClassifier struct{}

// NewKeywordClassifier returns the rule-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Name() string { return "keyword" }

func (k *KeywordClassifier) Classify(ctx context.Context, h core.Headline) (core.HeadlineClassification, error) {
	title := strings.TrimSpace(h.Title)
	if title == "" {
		return core.HeadlineClassification{}, core.WrapError(core.ErrClassification, fmt.Errorf("empty headline"))
	}
	words := words(title)

	out := core.HeadlineClassification{
		Headline:     h,
		EventType:    firstMatch(eventRules, words, core.EventOther),
		Sentiment:    core.Sentiment{Label: firstMatch(sentimentRules, words, core.Neutral)},
		Sector:       firstMatch(sectorRules, words, core.SectorGeneral),
		ClassifiedBy: k.Name(),
	}
	out.Ticker = tickerFor(title, out.Sector)
	return out, nil
}

func firstMatch[T any](rules []rule[T], words []string, fallback T) T {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if containsPhrase(words, kw) {
				return r.value
			}
		}
	}
	return fallback
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPhrase(words []string, phrase string) bool {
	parts := strings.Fields(phrase)
	for i := 0; i+len(parts) <= len(words); i++ {
		match := true
		for j, p := range parts {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// tickerFor picks the first all-caps word of one to five letters, then the
// sector ETF, then SPY.
func tickerFor(title string, sector core.Sector) string {
	for _, w := range strings.Fields(title) {
		w = strings.Trim(w, `$.,:;!?'"()`)
		if len(w) < 1 || len(w) > 5 || notTickers[w] {
			continue
		}
		if isUpperAlpha(w) {
			return w
		}
	}
	if etf, ok := SectorETF[sector]; ok {
		return etf
	}
	return defaultTicker
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
