package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/analog/internal/api/response"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/storage/recommendation"
)

// stubRunner records what it was asked and stores a fixed PUT.
type stubRunner struct {
	store      recommendation.Store
	err        error
	headline   core.Headline
	classified *core.HeadlineClassification
}

func (s *stubRunner) Run(ctx context.Context, h core.Headline) (core.TradeRecommendation, error) {
	s.headline = h
	return s.finish(ctx, core.HeadlineClassification{Headline: h, EventType: core.EventMonetaryPolicy})
}

func (s *stubRunner) RunClassified(ctx context.Context, c core.HeadlineClassification) (core.TradeRecommendation, error) {
	s.classified = &c
	return s.finish(ctx, c)
}

func (s *stubRunner) finish(ctx context.Context, c core.HeadlineClassification) (core.TradeRecommendation, error) {
	if s.err != nil {
		return core.TradeRecommendation{}, s.err
	}
	strike := 32.0
	expiry := time.Date(2022, 6, 24, 0, 0, 0, 0, time.UTC)
	rec := core.TradeRecommendation{
		Classification: c,
		Ticker:         "XLF",
		OptionType:     core.OptionPut,
		Strike:         &strike,
		Expiry:         &expiry,
		Confidence:     0.7,
		Rationale:      "Event similar to the 2022-06-15 hike.",
	}
	err := s.store.Save(ctx, &rec)
	return rec, err
}

func post(h *RecommendationsHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, req)
	return w
}

func TestRecommendationsHandler_CreateFromHeadline(t *testing.T) {
	store := recommendation.NewMemoryStore(10)
	runner := &stubRunner{store: store}
	h := NewRecommendationsHandler(runner, store, nil)

	w := post(h, `{"headline":{"title":"  Fed hikes by 75bp ","published_at":"2022-06-15T14:00:00-04:00"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "Fed hikes by 75bp", runner.headline.Title)
	assert.Equal(t, time.Date(2022, 6, 15, 18, 0, 0, 0, time.UTC), runner.headline.PublishedAt)
	assert.Equal(t, time.UTC, runner.headline.PublishedAt.Location())
	assert.Nil(t, runner.classified)

	var resp struct {
		Data core.TradeRecommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, core.OptionPut, resp.Data.OptionType)
}

func TestRecommendationsHandler_CreateClassified(t *testing.T) {
	store := recommendation.NewMemoryStore(10)
	runner := &stubRunner{store: store}
	h := NewRecommendationsHandler(runner, store, nil)

	w := post(h, `{
		"headline": {"title": "Fed hikes by 75bp"},
		"classification": {"event_type": "monetary policy", "sentiment": "bearish", "sentiment_score": -0.6, "sector": "financials", "ticker": "xlf"}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NotNil(t, runner.classified)
	assert.Equal(t, core.EventMonetaryPolicy, runner.classified.EventType)
	assert.Equal(t, core.Sentiment{Label: core.Bearish, Score: -0.6}, runner.classified.Sentiment)
	assert.Equal(t, core.SectorFinancials, runner.classified.Sector)
	assert.Equal(t, "XLF", runner.classified.Ticker)
	assert.Equal(t, "Fed hikes by 75bp", runner.classified.Headline.Title)
}

func TestRecommendationsHandler_CreateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"headline":`, "INVALID_REQUEST"},
		{"unknown field", `{"headline":{"title":"x"},"extra":1}`, "INVALID_REQUEST"},
		{"missing headline", `{}`, "INVALID_REQUEST"},
		{"empty title", `{"headline":{"title":""}}`, "INVALID_REQUEST"},
		{"bad url", `{"headline":{"title":"x","url":"not a url"}}`, "INVALID_REQUEST"},
		{"score out of range", `{"headline":{"title":"x"},"classification":{"event_type":"Trade","sentiment":"Bullish","sentiment_score":3,"sector":"General"}}`, "INVALID_REQUEST"},
		{"unknown sector", `{"headline":{"title":"x"},"classification":{"event_type":"Trade","sentiment":"Bullish","sector":"Crypto"}}`, "INVALID_VOCABULARY"},
		{"score contradicts label", `{"headline":{"title":"x"},"classification":{"event_type":"Trade","sentiment":"Bullish","sentiment_score":-0.4,"sector":"General"}}`, "INVALID_VOCABULARY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := recommendation.NewMemoryStore(10)
			h := NewRecommendationsHandler(&stubRunner{store: store}, store, nil)

			w := post(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp response.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRecommendationsHandler_CreateEngineErrors(t *testing.T) {
	store := recommendation.NewMemoryStore(10)

	h := NewRecommendationsHandler(&stubRunner{store: store, err: core.WrapError(core.ErrClassification, errors.New("bad model output"))}, store, nil)
	w := post(h, `{"headline":{"title":"Fed hikes"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	h = NewRecommendationsHandler(nil, store, nil)
	w = post(h, `{"headline":{"title":"Fed hikes"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func seed(t *testing.T, store recommendation.Store) {
	t.Helper()
	base := time.Date(2022, 6, 15, 12, 0, 0, 0, time.UTC)
	for i, r := range []struct {
		ticker string
		ot     core.OptionType
	}{
		{"XLF", core.OptionPut},
		{"XLF", core.OptionAbstain},
		{"QQQ", core.OptionCall},
	} {
		rec := core.TradeRecommendation{
			CreatedAt:  base.AddDate(0, 0, i),
			Ticker:     r.ticker,
			OptionType: r.ot,
			Rationale:  "seed",
		}
		require.NoError(t, store.Save(context.Background(), &rec))
	}
}

func list(t *testing.T, h *RecommendationsHandler, query string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recommendations"+query, nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return w.Code, data
}

func TestRecommendationsHandler_List(t *testing.T) {
	store := recommendation.NewMemoryStore(10)
	seed(t, store)
	h := NewRecommendationsHandler(nil, store, nil)

	tests := []struct {
		query string
		count int
		total float64
	}{
		{"", 3, 3},
		{"?ticker=xlf", 2, 2},
		{"?option_type=put", 1, 1},
		{"?from=2022-06-16", 2, 2},
		{"?to=2022-06-16", 2, 2},
		{"?limit=1&offset=1", 1, 3},
	}
	for _, tt := range tests {
		code, data := list(t, h, tt.query)
		require.Equal(t, http.StatusOK, code, tt.query)
		assert.Len(t, data["recommendations"], tt.count, tt.query)
		assert.Equal(t, tt.total, data["total"], tt.query)
	}
}

func TestRecommendationsHandler_ListRejectsBadFilters(t *testing.T) {
	h := NewRecommendationsHandler(nil, recommendation.NewMemoryStore(10), nil)
	for _, q := range []string{"?option_type=straddle", "?from=yesterday", "?limit=0", "?offset=-1"} {
		code, _ := list(t, h, q)
		assert.Equal(t, http.StatusBadRequest, code, q)
	}
}

func TestRecommendationsHandler_Get(t *testing.T) {
	store := recommendation.NewMemoryStore(10)
	rec := core.TradeRecommendation{Ticker: "XLF", OptionType: core.OptionAbstain, Rationale: "seed"}
	require.NoError(t, store.Save(context.Background(), &rec))
	h := NewRecommendationsHandler(nil, store, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/recommendations/{id}", h.Get)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/"+rec.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rec.ID)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
