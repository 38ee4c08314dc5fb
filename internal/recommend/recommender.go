// Package recommend turns an expected move into a concrete option trade.
package recommend

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

// Config controls the trade decision.
type Config struct {
	MinConfidence       float64 // below this the recommender abstains
	AdjustmentFactor    float64 // share of the historical move used for the strike, in (0, 1]
	ExpiryToleranceDays int     // calendar days past the horizon an expiry may fall
	Retry               marketdata.RetryPolicy
	Now                 func() time.Time
}

// DefaultConfig returns a 0.3 confidence floor, 0.5 adjustment and 14 day tolerance.
func DefaultConfig() Config {
	return Config{
		MinConfidence:       0.3,
		AdjustmentFactor:    0.5,
		ExpiryToleranceDays: 14,
		Retry:               marketdata.DefaultRetryPolicy(),
		Now:                 time.Now,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.AdjustmentFactor <= 0 || c.AdjustmentFactor > 1 {
		return fmt.Errorf("adjustment_factor must be in (0, 1], got %v", c.AdjustmentFactor)
	}
	if c.ExpiryToleranceDays < 0 {
		return fmt.Errorf("expiry_tolerance_days cannot be negative, got %d", c.ExpiryToleranceDays)
	}
	return nil
}

// Recommender selects direction, strike and expiry. It never persists anything.
type Recommender struct {
	spot   marketdata.SpotProvider
	cfg    Config
	logger *zap.Logger
}

// NewRecommender creates a recommender. Without a spot provider every
// directional call abstains for lack of market data.
func NewRecommender(spot marketdata.SpotProvider, cfg Config, logger *zap.Logger) *Recommender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recommender{spot: spot, cfg: cfg, logger: logger}
}

// Recommend builds a recommendation from ranked matches and their aggregate
// move. The expiry horizon is counted in trading days from the headline's
// publish date, or from now when the headline carries none.
func (r *Recommender) Recommend(ctx context.Context, c core.HeadlineClassification, matches []core.MatchResult,
	move core.ExpectedMove, chains marketdata.OptionChainProvider, horizonDays int) core.TradeRecommendation {

	rec := core.TradeRecommendation{
		CreatedAt:       r.cfg.Now().UTC(),
		Classification:  c,
		Ticker:          ResolveTicker(c, matches),
		ExpectedMovePct: move.Percent,
		Confidence:      clamp01(move.Confidence),
		Matches:         matches,
	}
	rec.ConfidenceLevel = core.ConfidenceLevel(rec.Confidence)
	for _, m := range matches {
		if m.EnrichmentFailed() {
			rec.EnrichmentFailed = true
		}
	}
	rec.VolatilityUnavailable = len(matches) > 0 && !move.Volatility.Live

	switch {
	case len(matches) == 0:
		return r.abstain(rec, core.ReasonNoQualifyingMatch, "No historical event cleared the match threshold.")
	case rec.Confidence < r.cfg.MinConfidence:
		return r.abstain(rec, core.ReasonLowConfidence,
			fmt.Sprintf("Confidence %.2f is below the %.2f floor; matched events disagree or are weak.", rec.Confidence, r.cfg.MinConfidence))
	case move.Percent == 0:
		return r.abstain(rec, core.ReasonNoDirectionalEdge, "Matched events imply no directional edge (0.00% expected move).")
	}

	rec.OptionType = core.OptionCall
	if move.Percent < 0 {
		rec.OptionType = core.OptionPut
	}

	spot, err := r.fetchSpot(ctx, rec.Ticker)
	if err != nil {
		return r.abstain(rec, core.ReasonInsufficientMarketData,
			fmt.Sprintf("Spot price for %s unavailable (%v).", rec.Ticker, err))
	}
	rec.SpotPrice = spot

	asOf := c.Headline.PublishedAt
	if asOf.IsZero() {
		asOf = r.cfg.Now()
	}
	if horizonDays < 1 {
		horizonDays = 1
	}
	target := core.AddTradingDays(asOf, horizonDays)
	latest := target.AddDate(0, 0, r.cfg.ExpiryToleranceDays)

	sel, reason, msg := r.selectContract(ctx, chains, rec.Ticker, rec.OptionType, spot, move.Percent, target, latest)
	rec.ChainUnavailable = sel.chainUnavailable
	if reason != "" {
		return r.abstain(rec, reason, msg)
	}
	strike, expiry := sel.strike, sel.expiry
	rec.Strike = &strike
	rec.Expiry = &expiry
	rec.Rationale = renderRationale(rec, matches)

	r.logger.Info("trade recommended",
		zap.String("ticker", rec.Ticker),
		zap.String("option_type", string(rec.OptionType)),
		zap.Float64("strike", strike),
		zap.Time("expiry", expiry),
		zap.Float64("confidence", rec.Confidence),
		zap.Bool("chain_unavailable", rec.ChainUnavailable),
	)
	return rec
}

func (r *Recommender) abstain(rec core.TradeRecommendation, reason, msg string) core.TradeRecommendation {
	rec.OptionType = core.OptionAbstain
	rec.Strike = nil
	rec.Expiry = nil
	rec.AbstainReason = reason
	rec.Rationale = renderAbstain(rec, msg)

	r.logger.Info("recommendation abstained",
		zap.String("ticker", rec.Ticker),
		zap.String("reason", reason),
		zap.Int("matches", len(rec.Matches)),
	)
	return rec
}

func (r *Recommender) fetchSpot(ctx context.Context, ticker string) (float64, error) {
	if r.spot == nil {
		return 0, fmt.Errorf("no spot provider configured")
	}
	if ticker == "" {
		return 0, fmt.Errorf("no ticker")
	}
	spot, err := marketdata.FetchWithRetry(ctx, r.cfg.Retry, func(ctx context.Context) (float64, error) {
		return r.spot.GetSpot(ctx, ticker)
	})
	if err != nil {
		return 0, core.WrapError(core.ErrProviderUnavailable, err)
	}
	if spot <= 0 || math.IsNaN(spot) {
		return 0, fmt.Errorf("implausible spot %v", spot)
	}
	return spot, nil
}

type selection struct {
	strike           float64
	expiry           time.Time
	chainUnavailable bool
}

func (r *Recommender) selectContract(ctx context.Context, chains marketdata.OptionChainProvider, ticker string,
	ot core.OptionType, spot, pct float64, target, latest time.Time) (selection, string, string) {

	desired := spot * (1 + pct/100*r.cfg.AdjustmentFactor)
	bound := spot * (1 + pct/100)

	contracts, err := r.fetchChain(ctx, chains, ticker, target, latest)
	if err != nil {
		r.logger.Warn("option chain unavailable, using synthetic grid", zap.String("ticker", ticker), zap.Error(err))
		inc := GridIncrement(spot)
		strike, ok := SnapToGrid(desired, bound, spot, ot, inc)
		if !ok {
			return selection{chainUnavailable: true}, core.ReasonInsufficientMarketData,
				fmt.Sprintf("Option chain unavailable and no %.2f grid strike lies between spot %.2f and the full historical move %.2f.", inc, spot, bound)
		}
		return selection{
			strike:           strike,
			expiry:           core.NextExpiryFriday(target),
			chainUnavailable: true,
		}, "", ""
	}

	expiry, ok := NearestExpiry(contracts, ot, target, latest)
	if !ok {
		return selection{}, core.ReasonNoSuitableExpiry,
			fmt.Sprintf("No listed %s expiry between %s and %s.", ot, target.Format("2006-01-02"), latest.Format("2006-01-02"))
	}

	var strikes []float64
	for _, ct := range contracts {
		if ct.Type == ot && core.Day(ct.Expiry).Equal(expiry) {
			strikes = append(strikes, ct.Strike)
		}
	}
	strike, ok := SnapToListed(desired, bound, spot, ot, strikes)
	if !ok {
		return selection{}, core.ReasonInsufficientMarketData,
			fmt.Sprintf("No listed %s strike for %s between spot %.2f and the full historical move %.2f.", ot, expiry.Format("2006-01-02"), spot, bound)
	}
	return selection{strike: strike, expiry: expiry}, "", ""
}

func (r *Recommender) fetchChain(ctx context.Context, chains marketdata.OptionChainProvider, ticker string, from, to time.Time) ([]core.OptionContract, error) {
	if chains == nil {
		return nil, fmt.Errorf("no option chain provider configured")
	}
	contracts, err := marketdata.FetchWithRetry(ctx, r.cfg.Retry, func(ctx context.Context) ([]core.OptionContract, error) {
		return chains.GetChain(ctx, ticker, from, to)
	})
	if err != nil {
		return nil, core.WrapError(core.ErrProviderUnavailable, err)
	}
	return contracts, nil
}

// ResolveTicker prefers the classification's ticker and falls back to the
// best match's ticker.
func ResolveTicker(c core.HeadlineClassification, matches []core.MatchResult) string {
	if c.Ticker != "" {
		return marketdata.StandardizeTicker(c.Ticker)
	}
	if len(matches) > 0 {
		return marketdata.StandardizeTicker(matches[0].Template.Ticker)
	}
	return ""
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(1, v)
}
