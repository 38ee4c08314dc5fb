// Package volatility turns ranked historical matches into an expected move.
package volatility

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
)

// Config controls blending and scaling.
type Config struct {
	RealizedWeight float64 // share of realized move when enrichment succeeded
	AnalysisDays   int     // window length used to annualize magnitude proxies
	ScaleMin       float64 // lower clamp of current/regime volatility ratio
	ScaleMax       float64 // upper clamp of current/regime volatility ratio
	Retry          marketdata.RetryPolicy
}

// DefaultConfig returns 0.7 realized weight and a [0.5, 2] scaling band.
func DefaultConfig() Config {
	return Config{
		RealizedWeight: 0.7,
		AnalysisDays:   7,
		ScaleMin:       0.5,
		ScaleMax:       2.0,
		Retry:          marketdata.DefaultRetryPolicy(),
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.RealizedWeight < 0 || c.RealizedWeight > 1 {
		return fmt.Errorf("realized_weight must be in [0, 1], got %v", c.RealizedWeight)
	}
	if c.ScaleMin <= 0 || c.ScaleMax < c.ScaleMin {
		return fmt.Errorf("volatility scale band [%v, %v] is invalid", c.ScaleMin, c.ScaleMax)
	}
	return nil
}

// Adjuster aggregates match outcomes into a single expected move.
type Adjuster struct {
	vol    marketdata.VolatilityProvider
	cfg    Config
	logger *zap.Logger
}

// NewAdjuster creates an adjuster. A nil provider leaves moves unscaled.
func NewAdjuster(vol marketdata.VolatilityProvider, cfg Config, logger *zap.Logger) *Adjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AnalysisDays <= 0 {
		cfg.AnalysisDays = 7
	}
	return &Adjuster{vol: vol, cfg: cfg, logger: logger}
}

// EffectiveMove blends realized and expected change for one match.
func (a *Adjuster) EffectiveMove(m core.MatchResult) float64 {
	if m.Outcome.Live {
		w := a.cfg.RealizedWeight
		return w*m.Outcome.Value.ChangePct + (1-w)*m.Template.ExpectedChangePct
	}
	return m.Template.ExpectedChangePct
}

// EstimateMove returns the score-weighted expected move for ticker, scaled by
// the ratio of current implied volatility to the matched events' regime.
// An empty match list yields zero percent and zero confidence.
func (a *Adjuster) EstimateMove(ctx context.Context, matches []core.MatchResult, ticker string) core.ExpectedMove {
	if len(matches) == 0 {
		return core.ExpectedMove{VolatilityRatio: 1, Volatility: core.Fallback(0.0, "no matches")}
	}

	var (
		sumW, sumMove, sumSigned, sumRegime float64
		live                                int
	)
	for _, m := range matches {
		w := m.Score
		eff := a.EffectiveMove(m)
		sumW += w
		sumMove += w * eff
		sumSigned += w * sign(eff)
		sumRegime += w * a.regimeVolatility(m, eff)
		if m.Outcome.Live {
			live++
		}
	}

	n := float64(len(matches))
	move := core.ExpectedMove{Matches: len(matches), VolatilityRatio: 1}
	if sumW <= 0 {
		// All scores zero: fall back to an unweighted view with no confidence.
		for _, m := range matches {
			move.RawPercent += a.EffectiveMove(m) / n
		}
		move.Percent = move.RawPercent
		move.Volatility = core.Fallback(0.0, "matches carry no weight")
		return move
	}

	move.RawPercent = sumMove / sumW
	move.Agreement = math.Abs(sumSigned) / sumW
	regime := sumRegime / sumW

	move.Volatility = a.currentVolatility(ctx, ticker)
	if move.Volatility.Live && regime > 0 {
		move.VolatilityRatio = clamp(move.Volatility.Value/regime, a.cfg.ScaleMin, a.cfg.ScaleMax)
	}
	move.Percent = move.RawPercent * move.VolatilityRatio

	avgScore := sumW / n
	countFactor := math.Min(1, 0.7+0.1*(n-1))
	evidence := 0.8 + 0.2*float64(live)/n
	move.Confidence = clamp(avgScore*move.Agreement*move.Agreement*countFactor*evidence, 0, 1)

	a.logger.Debug("estimated move",
		zap.String("ticker", ticker),
		zap.Float64("raw_percent", move.RawPercent),
		zap.Float64("percent", move.Percent),
		zap.Float64("ratio", move.VolatilityRatio),
		zap.Float64("confidence", move.Confidence),
	)
	return move
}

// regimeVolatility estimates the annualized volatility around a matched
// event, from its realized series when available, otherwise from its
// magnitude spread over the analysis window.
func (a *Adjuster) regimeVolatility(m core.MatchResult, eff float64) float64 {
	if m.Outcome.Live {
		if v, ok := marketdata.AnnualizedVolatility(m.Outcome.Value.Series); ok && v > 0 {
			return v
		}
	}
	mag := math.Max(math.Abs(eff), math.Abs(m.Template.ExpectedMaxDrawdownPct))
	return mag / 100 * math.Sqrt(marketdata.TradingDaysPerYear/float64(a.cfg.AnalysisDays))
}

func (a *Adjuster) currentVolatility(ctx context.Context, ticker string) core.Enriched[float64] {
	if a.vol == nil {
		return core.Fallback(0.0, "volatility provider not configured")
	}
	if ticker == "" {
		return core.Fallback(0.0, "no ticker")
	}
	iv, err := marketdata.FetchWithRetry(ctx, a.cfg.Retry, func(ctx context.Context) (float64, error) {
		return a.vol.GetImpliedVolatility(ctx, marketdata.StandardizeTicker(ticker))
	})
	if err != nil {
		err = core.WrapError(core.ErrProviderUnavailable, err)
		a.logger.Warn("implied volatility unavailable", zap.String("ticker", ticker), zap.Error(err))
		return core.Fallback(0.0, err.Error())
	}
	if iv <= 0 || math.IsNaN(iv) {
		return core.Fallback(0.0, fmt.Sprintf("implausible implied volatility %v", iv))
	}
	return core.Live(iv)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
