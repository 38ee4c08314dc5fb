package recommend

import (
	"fmt"
	"strings"

	"github.com/newthinker/analog/internal/core"
)

func renderRationale(rec core.TradeRecommendation, matches []core.MatchResult) string {
	var b strings.Builder

	b.WriteString(citeBest(matches))

	direction := "gain"
	if rec.ExpectedMovePct < 0 {
		direction = "drop"
	}
	fmt.Fprintf(&b, " Across %d matched event(s) the volatility-adjusted expectation is a %.2f%% %s in %s",
		len(matches), abs(rec.ExpectedMovePct), direction, rec.Ticker)
	fmt.Fprintf(&b, ", suggesting a %s at %.2f expiring %s (spot %.2f).",
		rec.OptionType, *rec.Strike, rec.Expiry.Format("2006-01-02"), rec.SpotPrice)

	fmt.Fprintf(&b, " %s confidence (%.2f) based on %d corroborating event(s).",
		capitalize(rec.ConfidenceLevel), rec.Confidence, corroborating(matches, rec.ExpectedMovePct))

	writeNotes(&b, rec, matches)
	return b.String()
}

func renderAbstain(rec core.TradeRecommendation, msg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ABSTAIN (%s): %s", rec.AbstainReason, msg)
	if len(rec.Matches) > 0 {
		b.WriteString(" ")
		b.WriteString(citeBest(rec.Matches))
	}
	writeNotes(&b, rec, rec.Matches)
	return b.String()
}

// citeBest describes the single best-matching historical event.
func citeBest(matches []core.MatchResult) string {
	if len(matches) == 0 {
		return ""
	}
	m := matches[0]
	t := m.Template
	source, pct := "expected", t.ExpectedChangePct
	if m.Outcome.Live {
		source, pct = "realized", m.Outcome.Value.ChangePct
	}
	return fmt.Sprintf("Event similar to %q on %s (%s), which saw a %s %+.2f%% move in %s; match score %.2f.",
		t.Summary, t.Date.Format("2006-01-02"), t.EventType, source, pct, t.Ticker, m.Score)
}

func writeNotes(b *strings.Builder, rec core.TradeRecommendation, matches []core.MatchResult) {
	if rec.EnrichmentFailed {
		failed := 0
		for _, m := range matches {
			if m.EnrichmentFailed() {
				failed++
			}
		}
		fmt.Fprintf(b, " Note: realized prices unavailable for %d of %d matched event(s); template estimates used.", failed, len(matches))
	}
	if rec.VolatilityUnavailable {
		b.WriteString(" Note: live volatility unavailable; move not volatility-adjusted.")
	}
	if rec.ChainUnavailable {
		b.WriteString(" Note: option chain unavailable; strike and expiry come from a synthetic grid.")
	}
}

// corroborating counts matches whose observed direction agrees with pct.
func corroborating(matches []core.MatchResult, pct float64) int {
	n := 0
	for _, m := range matches {
		v := m.Template.ExpectedChangePct
		if m.Outcome.Live {
			v = m.Outcome.Value.ChangePct
		}
		if (v < 0 && pct < 0) || (v > 0 && pct > 0) {
			n++
		}
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
