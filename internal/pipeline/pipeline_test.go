package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/analog/internal/catalog"
	"github.com/newthinker/analog/internal/classifier"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/marketdata/mock"
	"github.com/newthinker/analog/internal/match"
	"github.com/newthinker/analog/internal/metrics"
	"github.com/newthinker/analog/internal/notifier"
	"github.com/newthinker/analog/internal/pipeline"
	"github.com/newthinker/analog/internal/recommend"
	"github.com/newthinker/analog/internal/storage/recommendation"
	"github.com/newthinker/analog/internal/volatility"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2022, m, d, 0, 0, 0, 0, time.UTC)
}

var published = time.Date(2022, 6, 15, 18, 0, 0, 0, time.UTC)

func fedTemplate() core.HistoricalEventTemplate {
	return core.HistoricalEventTemplate{
		ID:                     "fed-2022-06-15",
		Date:                   day(6, 15),
		Summary:                "Fed raises rates by 75 basis points, the largest hike since 1994",
		EventType:              core.EventMonetaryPolicy,
		Sentiment:              core.Sentiment{Label: core.Bearish},
		Sector:                 core.SectorFinancials,
		Ticker:                 "XLF",
		ExpectedChangePct:      -5.6,
		ExpectedMaxDrawdownPct: -6.8,
		Keywords:               []string{"fed", "rate hike"},
	}
}

func fedClassification() core.HeadlineClassification {
	return core.HeadlineClassification{
		Headline:  core.Headline{Title: "Fed signals another aggressive rate hike", PublishedAt: published},
		EventType: core.EventMonetaryPolicy,
		Sentiment: core.Sentiment{Label: core.Bearish, Score: -0.6},
		Sector:    core.SectorFinancials,
	}
}

// market serves a -5.8% XLF reaction after 2022-06-15 and a chain listing
// the 2022-06-24 weekly.
func market() *mock.Provider {
	closes := []float64{100, 98.9, 97.5, 96.8, 95.6, 94.9, 94.2}
	days := []time.Time{day(6, 15), day(6, 16), day(6, 17), day(6, 21), day(6, 22), day(6, 23), day(6, 24)}
	series := make([]core.PricePoint, len(closes))
	for i := range closes {
		series[i] = core.PricePoint{Date: days[i], Close: closes[i]}
	}

	var chain []core.OptionContract
	for _, expiry := range []time.Time{day(6, 17), day(6, 24)} {
		for _, k := range []float64{30, 31, 32, 33, 34} {
			for _, ot := range []core.OptionType{core.OptionCall, core.OptionPut} {
				chain = append(chain, core.OptionContract{Ticker: "XLF", Expiry: expiry, Strike: k, Type: ot})
			}
		}
	}

	return mock.New().
		SetSeries("XLF", series).
		SetSpot("XLF", 32.5).
		SetChain("XLF", chain)
}

type fixture struct {
	market  *mock.Provider
	store   *recommendation.MemoryStore
	metrics *metrics.Registry
	deps    pipeline.Deps
}

func newFixture(t *testing.T, templates ...core.HistoricalEventTemplate) *fixture {
	t.Helper()
	cat, err := catalog.Load(templates)
	require.NoError(t, err)

	md := market()
	retry := marketdata.RetryPolicy{Timeout: 200 * time.Millisecond, Attempts: 2}

	mcfg := match.DefaultConfig()
	mcfg.Retry = retry
	vcfg := volatility.DefaultConfig()
	vcfg.Retry = retry
	rcfg := recommend.DefaultConfig()
	rcfg.Retry = retry
	rcfg.Now = func() time.Time { return published.Add(time.Hour) }

	f := &fixture{
		market:  md,
		store:   recommendation.NewMemoryStore(0),
		metrics: metrics.NewRegistry(),
	}
	f.deps = pipeline.Deps{
		Classifier:  classifier.NewKeywordClassifier(),
		Catalog:     catalog.NewHolder(cat, "", nil),
		Matcher:     match.NewMatcher(match.DefaultScorer(), md, mcfg, nil),
		Adjuster:    volatility.NewAdjuster(md, vcfg, nil),
		Recommender: recommend.NewRecommender(md, rcfg, nil),
		Chains:      md,
		Store:       f.store,
		Metrics:     f.metrics,
	}
	return f
}

func (f *fixture) stored(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background(), recommendation.ListFilter{})
	require.NoError(t, err)
	return n
}

func (f *fixture) pipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.DefaultConfig(), f.deps)
	require.NoError(t, err)
	return p
}

func TestRunClassified_FedHikeScenario(t *testing.T) {
	f := newFixture(t, fedTemplate())
	p := f.pipeline(t)

	rec, err := p.RunClassified(context.Background(), fedClassification())
	require.NoError(t, err)

	require.Len(t, rec.Matches, 1)
	assert.GreaterOrEqual(t, rec.Matches[0].Score, 0.9)
	assert.True(t, rec.Matches[0].Outcome.Live)
	assert.InDelta(t, -5.8, rec.Matches[0].Outcome.Value.ChangePct, 1e-9)

	assert.InDelta(t, -5.74, rec.ExpectedMovePct, 1e-6)
	assert.Equal(t, "high", rec.ConfidenceLevel)
	assert.Equal(t, core.OptionPut, rec.OptionType)
	assert.Equal(t, "XLF", rec.Ticker)
	require.NotNil(t, rec.Strike)
	require.NotNil(t, rec.Expiry)
	assert.Less(t, *rec.Strike, rec.SpotPrice)
	assert.Equal(t, 32.0, *rec.Strike)
	assert.Equal(t, day(6, 24), *rec.Expiry)
	assert.Contains(t, rec.Rationale, "2022-06-15")
	assert.Contains(t, rec.Rationale, "-5.8")

	assert.False(t, rec.ChainUnavailable)
	assert.False(t, rec.EnrichmentFailed)
	assert.True(t, rec.VolatilityUnavailable)

	require.NotEmpty(t, rec.ID)
	stored, err := f.store.GetByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.OptionType, stored.OptionType)
	assert.Equal(t, *rec.Strike, *stored.Strike)
}

func TestRunClassified_NoPrecedentAbstains(t *testing.T) {
	other := fedTemplate()
	other.ID = "opec-2020-03-09"
	other.Date = day(3, 9).AddDate(-2, 0, 0)
	other.EventType = core.EventCommodity
	other.Sector = core.SectorEnergy
	other.Sentiment = core.Sentiment{Label: core.Bullish}
	other.Keywords = []string{"opec"}

	f := newFixture(t, other)
	rec, err := f.pipeline(t).RunClassified(context.Background(), fedClassification())
	require.NoError(t, err)

	assert.Equal(t, core.OptionAbstain, rec.OptionType)
	assert.Equal(t, core.ReasonNoQualifyingMatch, rec.AbstainReason)
	assert.Nil(t, rec.Strike)
	assert.Nil(t, rec.Expiry)
	assert.NotEmpty(t, rec.Rationale)
	assert.Equal(t, 0, f.market.Calls(mock.OpSpot))
	assert.Equal(t, 1, f.stored(t))
}

type capturingNotifier struct {
	err  error
	sent []core.TradeRecommendation
}

func (c *capturingNotifier) Name() string { return "capture" }

func (c *capturingNotifier) Send(_ context.Context, rec core.TradeRecommendation) error {
	c.sent = append(c.sent, rec)
	return c.err
}

func TestRunClassified_NotifiesActionableTrades(t *testing.T) {
	f := newFixture(t, fedTemplate())
	capture := &capturingNotifier{err: errors.New("hook down")}
	reg := notifier.NewRegistry(notifier.Config{MinConfidence: 0.5})
	require.NoError(t, reg.Register(capture))
	f.deps.Notifier = reg

	rec, err := f.pipeline(t).RunClassified(context.Background(), fedClassification())
	require.NoError(t, err, "delivery failures must not fail the run")
	require.Len(t, capture.sent, 1)
	assert.Equal(t, rec.ID, capture.sent[0].ID)

	n, err := testutil.GatherAndCount(f.metrics, "analog_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	abstain := fedClassification()
	abstain.EventType = core.EventCommodity
	abstain.Sector = core.SectorEnergy
	_, err = f.pipeline(t).RunClassified(context.Background(), abstain)
	require.NoError(t, err)
	assert.Len(t, capture.sent, 1)
}

func TestRunClassified_ChainOutageFallsBackToGrid(t *testing.T) {
	f := newFixture(t, fedTemplate())
	f.market.Fail(mock.OpChain, errors.New("options endpoint down"))

	rec, err := f.pipeline(t).RunClassified(context.Background(), fedClassification())
	require.NoError(t, err)

	assert.Equal(t, core.OptionPut, rec.OptionType)
	assert.True(t, rec.ChainUnavailable)
	require.NotNil(t, rec.Strike)
	assert.Equal(t, 31.5, *rec.Strike)
	assert.Equal(t, day(6, 24), *rec.Expiry)
}

func TestRunClassified_EnrichmentOutageStillRecommends(t *testing.T) {
	f := newFixture(t, fedTemplate())
	f.market.Fail(mock.OpSeries, errors.New("chart endpoint down"))

	rec, err := f.pipeline(t).RunClassified(context.Background(), fedClassification())
	require.NoError(t, err)

	require.Len(t, rec.Matches, 1)
	assert.True(t, rec.EnrichmentFailed)
	assert.InDelta(t, -5.6, rec.ExpectedMovePct, 1e-9)
	assert.Equal(t, core.OptionPut, rec.OptionType)
}

func TestRunClassified_InvalidClassification(t *testing.T) {
	f := newFixture(t, fedTemplate())
	c := fedClassification()
	c.Sector = "Crypto"

	_, err := f.pipeline(t).RunClassified(context.Background(), c)
	assert.ErrorIs(t, err, core.ErrClassification)
	assert.Equal(t, 0, f.stored(t))
}

func TestRun_ClassifiesWithKeywords(t *testing.T) {
	f := newFixture(t, fedTemplate())
	p := f.pipeline(t)

	rec, err := p.Run(context.Background(), core.Headline{
		Title:       "Fed announces surprise rate hike as banks brace for tighter policy",
		PublishedAt: published,
	})
	require.NoError(t, err)
	assert.Equal(t, core.EventMonetaryPolicy, rec.Classification.EventType)
	assert.Equal(t, "keyword", rec.Classification.ClassifiedBy)
	assert.NotEmpty(t, rec.Rationale)
	n, err := testutil.GatherAndCount(f.metrics, "analog_classifications_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type failingClassifier struct{}

func (failingClassifier) Name() string { return "broken" }

func (failingClassifier) Classify(context.Context, core.Headline) (core.HeadlineClassification, error) {
	return core.HeadlineClassification{}, errors.New("model unavailable")
}

func TestRun_ClassificationFailure(t *testing.T) {
	f := newFixture(t, fedTemplate())
	f.deps.Classifier = failingClassifier{}

	_, err := f.pipeline(t).Run(context.Background(), core.Headline{Title: "anything"})
	assert.ErrorIs(t, err, core.ErrClassification)
	assert.Equal(t, 0, f.market.Calls(mock.OpSeries))
}

func TestRun_NoClassifier(t *testing.T) {
	f := newFixture(t, fedTemplate())
	f.deps.Classifier = nil

	_, err := f.pipeline(t).Run(context.Background(), core.Headline{Title: "anything"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}

func TestRunBatch_PreservesOrder(t *testing.T) {
	f := newFixture(t, fedTemplate())
	f.deps.Classifier = &scriptedClassifier{fail: "broken headline"}
	p, err := pipeline.New(pipeline.Config{Workers: 3}, f.deps)
	require.NoError(t, err)

	headlines := make([]core.Headline, 6)
	for i := range headlines {
		headlines[i] = core.Headline{Title: fmt.Sprintf("Fed rate hike %d", i), PublishedAt: published}
	}
	headlines[2].Title = "broken headline"

	results := p.RunBatch(context.Background(), headlines)
	require.Len(t, results, len(headlines))
	for i, r := range results {
		assert.Equal(t, headlines[i].Title, r.Headline.Title)
		if i == 2 {
			assert.ErrorIs(t, r.Err, core.ErrClassification)
			continue
		}
		require.NoError(t, r.Err, "headline %d", i)
		assert.Equal(t, headlines[i].Title, r.Recommendation.Classification.Headline.Title)
		assert.Equal(t, core.OptionPut, r.Recommendation.OptionType)
	}
	assert.Equal(t, 5, f.stored(t))
}

func TestRunBatch_CancelledContext(t *testing.T) {
	f := newFixture(t, fedTemplate())
	p := f.pipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := p.RunBatch(ctx, []core.Headline{{Title: "Fed rate hike"}, {Title: "Fed rate cut"}})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Deps{})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	f := newFixture(t, fedTemplate())
	_, err = pipeline.New(pipeline.Config{MinScore: 1.5}, f.deps)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

// scriptedClassifier tags every headline as the Fed scenario except the one
// it is told to fail on.
type scriptedClassifier struct {
	fail string
}

func (s *scriptedClassifier) Name() string { return "scripted" }

func (s *scriptedClassifier) Classify(_ context.Context, h core.Headline) (core.HeadlineClassification, error) {
	if h.Title == s.fail {
		return core.HeadlineClassification{}, errors.New("unparseable")
	}
	c := fedClassification()
	c.Headline = h
	c.ClassifiedBy = s.Name()
	return c, nil
}
