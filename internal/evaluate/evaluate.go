// Package evaluate scores past recommendations against what the market did next.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

// ErrNotDirectional is returned for ABSTAIN recommendations.
var ErrNotDirectional = errors.New("recommendation has no direction to evaluate")

// Config controls the evaluation window.
type Config struct {
	Days            int     // trading days after the recommendation date
	ThresholdPct    float64 // moves smaller than this are not significant
	ExcludeDegraded bool    // skip records built on fallback data
	Workers         int
	Retry           marketdata.RetryPolicy
}

// DefaultConfig returns a 7 day window with a 1% significance threshold.
func DefaultConfig() Config {
	return Config{
		Days:         7,
		ThresholdPct: 1.0,
		Workers:      4,
		Retry:        marketdata.DefaultRetryPolicy(),
	}
}

// Evaluation is the market's verdict on one recommendation.
type Evaluation struct {
	RecommendationID string          `json:"recommendation_id"`
	Ticker           string          `json:"ticker"`
	OptionType       core.OptionType `json:"option_type"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	TradingDays      int             `json:"trading_days"`
	ActualMovePct    float64         `json:"actual_move_pct"`
	MaxGainPct       float64         `json:"max_gain_pct"`
	MaxDrawdownPct   float64         `json:"max_drawdown_pct"`
	DirectionCorrect bool            `json:"direction_correct"`
	Significant      bool            `json:"significant"`
	Degraded         bool            `json:"degraded"`
	Notes            string          `json:"notes"`
}

// Evaluator fetches post-recommendation prices.
type Evaluator struct {
	prices marketdata.PriceSeriesProvider
	cfg    Config
	logger *zap.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(prices marketdata.PriceSeriesProvider, cfg Config, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.ThresholdPct <= 0 {
		cfg.ThresholdPct = def.ThresholdPct
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Evaluator{prices: prices, cfg: cfg, logger: logger}
}

// StartDate is the date a recommendation is measured from: the headline's
// publish date, or the creation time when the headline had none.
func StartDate(rec core.TradeRecommendation) time.Time {
	if t := rec.Classification.Headline.PublishedAt; !t.IsZero() {
		return core.Day(t)
	}
	return core.Day(rec.CreatedAt)
}

// Evaluate measures one directional recommendation.
func (e *Evaluator) Evaluate(ctx context.Context, rec core.TradeRecommendation) (Evaluation, error) {
	if rec.OptionType != core.OptionCall && rec.OptionType != core.OptionPut {
		return Evaluation{}, ErrNotDirectional
	}
	if rec.Ticker == "" {
		return Evaluation{}, fmt.Errorf("recommendation %s has no ticker", rec.ID)
	}
	if e.prices == nil {
		return Evaluation{}, core.WrapError(core.ErrProviderUnavailable, fmt.Errorf("no price provider configured"))
	}

	start := StartDate(rec)
	series, err := marketdata.FetchWithRetry(ctx, e.cfg.Retry, func(ctx context.Context) ([]core.PricePoint, error) {
		return e.prices.GetPriceSeries(ctx, rec.Ticker, start, e.cfg.Days)
	})
	if err != nil {
		return Evaluation{}, core.WrapError(core.ErrNoData, err)
	}
	if len(series) < 2 {
		return Evaluation{}, core.WrapError(core.ErrNoData, fmt.Errorf("%d closes for %s after %s", len(series), rec.Ticker, start.Format("2006-01-02")))
	}

	ev := Evaluation{
		RecommendationID: rec.ID,
		Ticker:           rec.Ticker,
		OptionType:       rec.OptionType,
		Start:            series[0].Date,
		End:              series[len(series)-1].Date,
		TradingDays:      len(series),
		ActualMovePct:    marketdata.ChangePct(series),
		MaxGainPct:       marketdata.MaxGainPct(series),
		MaxDrawdownPct:   marketdata.MaxDrawdownPct(series),
		Degraded:         rec.Degraded(),
	}
	ev.DirectionCorrect = directionCorrect(ev.ActualMovePct, rec.OptionType)
	ev.Significant = math.Abs(ev.ActualMovePct) > e.cfg.ThresholdPct
	ev.Notes = notes(ev)

	e.logger.Info("recommendation evaluated",
		zap.String("id", rec.ID),
		zap.String("ticker", rec.Ticker),
		zap.String("option_type", string(rec.OptionType)),
		zap.Float64("move_pct", ev.ActualMovePct),
		zap.Bool("correct", ev.DirectionCorrect),
	)
	return ev, nil
}

// Report is the outcome of evaluating a batch.
type Report struct {
	Evaluations []Evaluation `json:"evaluations"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Summary     Summary      `json:"summary"`
}

// EvaluateAll evaluates recs concurrently. ABSTAIN records, and degraded
// ones when configured, are skipped. Records that cannot be measured are
// counted as failed.
func (e *Evaluator) EvaluateAll(ctx context.Context, recs []core.TradeRecommendation) (Report, error) {
	results := make([]*Evaluation, len(recs))
	var report Report

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, rec := range recs {
		if rec.OptionType == core.OptionAbstain || (e.cfg.ExcludeDegraded && rec.Degraded()) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			ev, err := e.Evaluate(gctx, rec)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.Warn("evaluation failed", zap.String("id", rec.ID), zap.Error(err))
				return nil
			}
			results[i] = &ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report.Evaluations = []Evaluation{}
	for i, r := range results {
		switch {
		case r != nil:
			report.Evaluations = append(report.Evaluations, *r)
		case recs[i].OptionType == core.OptionAbstain || (e.cfg.ExcludeDegraded && recs[i].Degraded()):
		default:
			report.Failed++
		}
	}
	report.Summary = Summarize(report.Evaluations)
	return report, nil
}

// Summary aggregates evaluations. Rates are percentages.
type Summary struct {
	Total           int     `json:"total"`
	Successful      int     `json:"successful"`
	SuccessRate     float64 `json:"success_rate"`
	AverageMovePct  float64 `json:"average_move_pct"`
	CallTrades      int     `json:"call_trades"`
	CallSuccessful  int     `json:"call_successful"`
	CallSuccessRate float64 `json:"call_success_rate"`
	PutTrades       int     `json:"put_trades"`
	PutSuccessful   int     `json:"put_successful"`
	PutSuccessRate  float64 `json:"put_success_rate"`
}

// Summarize computes the success statistics.
func Summarize(evals []Evaluation) Summary {
	var s Summary
	s.Total = len(evals)
	if s.Total == 0 {
		return s
	}

	var moves float64
	for _, ev := range evals {
		moves += ev.ActualMovePct
		switch ev.OptionType {
		case core.OptionCall:
			s.CallTrades++
		case core.OptionPut:
			s.PutTrades++
		}
		if !ev.DirectionCorrect {
			continue
		}
		s.Successful++
		switch ev.OptionType {
		case core.OptionCall:
			s.CallSuccessful++
		case core.OptionPut:
			s.PutSuccessful++
		}
	}
	s.AverageMovePct = moves / float64(s.Total)
	s.SuccessRate = rate(s.Successful, s.Total)
	s.CallSuccessRate = rate(s.CallSuccessful, s.CallTrades)
	s.PutSuccessRate = rate(s.PutSuccessful, s.PutTrades)
	return s
}

func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

func directionCorrect(move float64, ot core.OptionType) bool {
	switch ot {
	case core.OptionCall:
		return move > 0
	case core.OptionPut:
		return move < 0
	}
	return false
}

func notes(ev Evaluation) string {
	var parts []string
	switch {
	case ev.DirectionCorrect && ev.Significant:
		parts = append(parts, fmt.Sprintf("[+] %s direction was correct with significant movement of %.2f%%", ev.OptionType, ev.ActualMovePct))
	case ev.DirectionCorrect:
		parts = append(parts, fmt.Sprintf("[+] %s direction was technically correct but movement was minimal (%.2f%%)", ev.OptionType, ev.ActualMovePct))
	default:
		parts = append(parts, fmt.Sprintf("[-] %s direction was incorrect; price moved %.2f%%", ev.OptionType, ev.ActualMovePct))
	}
	if ev.MaxGainPct > 2 {
		parts = append(parts, fmt.Sprintf("[UP] price reached +%.2f%% above start", ev.MaxGainPct))
	}
	if ev.MaxDrawdownPct < -2 {
		parts = append(parts, fmt.Sprintf("[DOWN] price dropped %.2f%% from peak", ev.MaxDrawdownPct))
	}
	if ev.Degraded {
		parts = append(parts, "built on fallback data")
	}
	return strings.Join(parts, " | ")
}
