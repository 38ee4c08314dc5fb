package match

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

// DefaultAnalysisDays is the length of the post-event window in trading days.
const DefaultAnalysisDays = 7

// TemplateSource is anything that can list templates, typically *catalog.Catalog.
type TemplateSource interface {
	All() []core.HistoricalEventTemplate
}

// Config controls matching and enrichment.
type Config struct {
	AnalysisDays int                    // trading days fetched after the event date
	Workers      int                    // bound on concurrent scoring and fetches
	Retry        marketdata.RetryPolicy // per-candidate fetch policy
}

// DefaultConfig returns the defaults used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		AnalysisDays: DefaultAnalysisDays,
		Workers:      runtime.GOMAXPROCS(0),
		Retry:        marketdata.DefaultRetryPolicy(),
	}
}

// Matcher ranks catalog templates against a classification and enriches the
// survivors with their realized post-event move.
type Matcher struct {
	scorer *Scorer
	prices marketdata.PriceSeriesProvider
	cfg    Config
	logger *zap.Logger
}

// NewMatcher creates a matcher. A nil prices provider disables enrichment.
func NewMatcher(scorer *Scorer, prices marketdata.PriceSeriesProvider, cfg Config, logger *zap.Logger) *Matcher {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AnalysisDays <= 0 {
		cfg.AnalysisDays = DefaultAnalysisDays
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Matcher{scorer: scorer, prices: prices, cfg: cfg, logger: logger}
}

// Less orders match results by descending score, then more recent template
// date, then template id. It is a strict total order over distinct ids.
func Less(a, b core.MatchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Template.Date.Equal(b.Template.Date) {
		return a.Template.Date.After(b.Template.Date)
	}
	return a.Template.ID < b.Template.ID
}

// FindSimilar returns at most k templates scoring at least minScore, ranked
// by Less. An empty result means no historical precedent. Enrichment
// failures never drop a candidate; they are recorded on its Outcome.
func (m *Matcher) FindSimilar(ctx context.Context, c core.HeadlineClassification, src TemplateSource, k int, minScore float64) ([]core.MatchResult, error) {
	if err := c.Validate(); err != nil {
		return nil, core.WrapError(core.ErrScoring, err)
	}
	if k <= 0 || src == nil {
		return []core.MatchResult{}, nil
	}

	templates := src.All()
	scored, err := m.scoreAll(c, templates)
	if err != nil {
		return nil, err
	}

	results := make([]core.MatchResult, 0, len(scored))
	for _, r := range scored {
		if r.Score >= minScore {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return Less(results[i], results[j]) })
	if len(results) > k {
		results = results[:k]
	}

	m.enrich(ctx, results)

	m.logger.Debug("matched historical events",
		zap.String("event_type", string(c.EventType)),
		zap.Int("catalog_size", len(templates)),
		zap.Int("matches", len(results)),
	)
	return results, nil
}

// scoreAll scores templates in contiguous chunks. Each result lands at its
// template's index so completion order cannot affect ranking.
func (m *Matcher) scoreAll(c core.HeadlineClassification, templates []core.HistoricalEventTemplate) ([]core.MatchResult, error) {
	out := make([]core.MatchResult, len(templates))
	if len(templates) == 0 {
		return out, nil
	}

	workers := min(m.cfg.Workers, len(templates))
	chunk := (len(templates) + workers - 1) / workers

	var g errgroup.Group
	for lo := 0; lo < len(templates); lo += chunk {
		hi := min(lo+chunk, len(templates))
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = core.WrapError(core.ErrScoring, fmt.Errorf("panic scoring templates %d-%d: %v", lo, hi, r))
				}
			}()
			for i := lo; i < hi; i++ {
				out[i] = core.MatchResult{Template: templates[i], Score: m.scorer.Score(c, templates[i])}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// enrich fetches the realized move for every result concurrently.
func (m *Matcher) enrich(ctx context.Context, results []core.MatchResult) {
	if m.prices == nil {
		for i := range results {
			results[i].Outcome = core.Fallback(core.RealizedMove{}, "enrichment disabled")
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(m.cfg.Workers)
	for i := range results {
		g.Go(func() error {
			results[i].Outcome = m.fetchOutcome(ctx, results[i].Template)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Matcher) fetchOutcome(ctx context.Context, t core.HistoricalEventTemplate) core.Enriched[core.RealizedMove] {
	ticker := marketdata.StandardizeTicker(t.Ticker)
	series, err := marketdata.FetchWithRetry(ctx, m.cfg.Retry, func(ctx context.Context) ([]core.PricePoint, error) {
		return m.prices.GetPriceSeries(ctx, ticker, t.Date, m.cfg.AnalysisDays)
	})
	if err != nil {
		err = core.WrapError(core.ErrEnrichment, err)
		m.logger.Warn("enrichment failed",
			zap.String("template", t.ID),
			zap.String("ticker", ticker),
			zap.Error(err),
		)
		return core.Fallback(core.RealizedMove{}, err.Error())
	}
	if len(series) < 2 {
		return core.Fallback(core.RealizedMove{Series: series}, fmt.Sprintf("only %d price points after %s", len(series), t.Date.Format("2006-01-02")))
	}
	return core.Live(marketdata.Measure(series))
}
