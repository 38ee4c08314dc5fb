// Package pipeline runs a headline through classification, matching,
// volatility adjustment and trade selection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/analog/internal/catalog"
	"github.com/newthinker/analog/internal/classifier"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/match"
	"github.com/newthinker/analog/internal/metrics"
	"github.com/newthinker/analog/internal/notifier"
	"github.com/newthinker/analog/internal/recommend"
	"github.com/newthinker/analog/internal/storage/recommendation"
	"github.com/newthinker/analog/internal/volatility"
)

// Config holds the per-run knobs.
type Config struct {
	MaxMatches  int
	MinScore    float64
	HorizonDays int
	Workers     int // headlines processed concurrently by RunBatch
}

// DefaultConfig returns five matches, a 0.5 score floor and a five day horizon.
func DefaultConfig() Config {
	return Config{MaxMatches: 5, MinScore: 0.5, HorizonDays: 5, Workers: 4}
}

// CatalogSource hands out the catalog snapshot used for one run.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Deps are the collaborators of a pipeline. Classifier, Chains, Store,
// Notifier and Metrics are optional.
type Deps struct {
	Classifier  classifier.Classifier
	Catalog     CatalogSource
	Matcher     *match.Matcher
	Adjuster    *volatility.Adjuster
	Recommender *recommend.Recommender
	Chains      marketdata.OptionChainProvider
	Store       recommendation.Store
	Notifier    *notifier.Registry
	Metrics     *metrics.Registry
	Logger      *zap.Logger
}

// Pipeline is safe for concurrent use. Each run reads one catalog snapshot.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// Result is the outcome of one headline in a batch.
type Result struct {
	Headline       core.Headline
	Recommendation core.TradeRecommendation
	Err            error
}

// New validates the dependencies and fills config defaults.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Catalog == nil:
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("pipeline needs a catalog"))
	case deps.Matcher == nil, deps.Adjuster == nil, deps.Recommender == nil:
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("pipeline needs a matcher, adjuster and recommender"))
	}
	def := DefaultConfig()
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = def.MaxMatches
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = def.HorizonDays
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("min_score must be in [0, 1], got %v", cfg.MinScore))
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log}, nil
}

// Run classifies a headline and turns it into a recommendation.
func (p *Pipeline) Run(ctx context.Context, h core.Headline) (core.TradeRecommendation, error) {
	start := time.Now()
	if p.deps.Classifier == nil {
		return core.TradeRecommendation{}, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no classifier configured"))
	}

	c, err := p.deps.Classifier.Classify(ctx, h)
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordClassification(p.deps.Classifier.Name(), err)
	}
	if err != nil {
		if !errors.Is(err, core.ErrClassification) {
			err = core.WrapError(core.ErrClassification, err)
		}
		p.fail(start, h, err)
		return core.TradeRecommendation{}, err
	}
	if c.Headline.Title == "" {
		c.Headline = h
	}
	return p.run(ctx, c, start)
}

// RunClassified skips classification for callers that already tagged the headline.
func (p *Pipeline) RunClassified(ctx context.Context, c core.HeadlineClassification) (core.TradeRecommendation, error) {
	return p.run(ctx, c, time.Now())
}

func (p *Pipeline) run(ctx context.Context, c core.HeadlineClassification, start time.Time) (core.TradeRecommendation, error) {
	if err := c.Validate(); err != nil {
		err = core.WrapError(core.ErrClassification, err)
		p.fail(start, c.Headline, err)
		return core.TradeRecommendation{}, err
	}

	snapshot := p.deps.Catalog.Current()
	if snapshot == nil {
		err := core.WrapError(core.ErrCatalogLoad, fmt.Errorf("no catalog loaded"))
		p.fail(start, c.Headline, err)
		return core.TradeRecommendation{}, err
	}

	matches, err := p.deps.Matcher.FindSimilar(ctx, c, snapshot, p.cfg.MaxMatches, p.cfg.MinScore)
	if err != nil {
		p.fail(start, c.Headline, err)
		return core.TradeRecommendation{}, err
	}

	move := p.deps.Adjuster.EstimateMove(ctx, matches, recommend.ResolveTicker(c, matches))
	rec := p.deps.Recommender.Recommend(ctx, c, matches, move, p.deps.Chains, p.cfg.HorizonDays)
	if err := rec.Validate(); err != nil {
		err = core.WrapError(core.ErrScoring, err)
		p.fail(start, c.Headline, err)
		return core.TradeRecommendation{}, err
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.Save(ctx, &rec); err != nil {
			p.fail(start, c.Headline, err)
			return rec, err
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordRecommendation(rec, time.Since(start).Seconds())
	}
	p.notify(ctx, rec)

	p.log.Info("headline processed",
		zap.String("id", rec.ID),
		zap.String("headline", c.Headline.Title),
		zap.String("option_type", string(rec.OptionType)),
		zap.Int("matches", len(matches)),
		zap.Bool("degraded", rec.Degraded()),
		zap.Duration("duration", time.Since(start)),
	)
	return rec, nil
}

// notify pushes rec to the configured channels. Delivery failures are
// logged and never fail the run.
func (p *Pipeline) notify(ctx context.Context, rec core.TradeRecommendation) {
	if p.deps.Notifier == nil {
		return
	}
	errs := p.deps.Notifier.NotifyAll(ctx, rec)
	if errs == nil {
		return
	}
	for _, name := range p.deps.Notifier.Names() {
		err := errs[name]
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordNotification(name, err)
		}
		if err != nil {
			p.log.Warn("notification failed", zap.String("notifier", name), zap.String("id", rec.ID), zap.Error(err))
		}
	}
}

// RunBatch processes headlines concurrently. Results keep the input order
// and one failing headline never stops the others.
func (p *Pipeline) RunBatch(ctx context.Context, headlines []core.Headline) []Result {
	results := make([]Result, len(headlines))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, h := range headlines {
		g.Go(func() error {
			results[i].Headline = h
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Recommendation, results[i].Err = p.Run(ctx, h)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) fail(start time.Time, h core.Headline, err error) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordFailure(err, time.Since(start).Seconds())
	}
	p.log.Warn("headline failed",
		zap.String("headline", h.Title),
		zap.String("code", core.CodeOf(err)),
		zap.Error(err),
	)
}
