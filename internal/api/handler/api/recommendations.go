package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/newthinker/analog/internal/api/response"
	"github.com/newthinker/analog/internal/core"
	"github.com/newthinker/analog/internal/marketdata"
	"github.com/newthinker/analog/internal/storage/recommendation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 64 << 10
)

// Runner produces recommendations, typically *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, h core.Headline) (core.TradeRecommendation, error)
	RunClassified(ctx context.Context, c core.HeadlineClassification) (core.TradeRecommendation, error)
}

// HeadlineInput is the headline part of a create request.
type HeadlineInput struct {
	Title       string     `json:"title" validate:"required"`
	Source      string     `json:"source"`
	URL         string     `json:"url" validate:"omitempty,url"`
	PublishedAt *time.Time `json:"published_at"`
}

// ClassificationInput lets callers skip the classifier. Tags are matched
// case-insensitively against the vocabulary.
type ClassificationInput struct {
	EventType      string  `json:"event_type" validate:"required"`
	Sentiment      string  `json:"sentiment" validate:"required"`
	SentimentScore float64 `json:"sentiment_score" validate:"gte=-1,lte=1"`
	Sector         string  `json:"sector" validate:"required"`
	Ticker         string  `json:"ticker"`
}

// CreateRequest is the body of POST /api/v1/recommendations.
type CreateRequest struct {
	Headline       *HeadlineInput       `json:"headline" validate:"required"`
	Classification *ClassificationInput `json:"classification" validate:"omitempty"`
}

// RecommendationsHandler serves the recommendation endpoints.
type RecommendationsHandler struct {
	runner   Runner
	store    recommendation.Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRecommendationsHandler creates a handler. runner may be nil for a
// read-only deployment.
func NewRecommendationsHandler(runner Runner, store recommendation.Store, logger *zap.Logger) *RecommendationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationsHandler{
		runner:   runner,
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create runs a headline through the engine and returns the stored recommendation.
func (h *RecommendationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		response.Error(w, http.StatusServiceUnavailable,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("recommendation engine not configured")))
		return
	}

	var req CreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	headline := core.Headline{
		Title:  strings.TrimSpace(req.Headline.Title),
		Source: req.Headline.Source,
		URL:    req.Headline.URL,
	}
	if req.Headline.PublishedAt != nil {
		headline.PublishedAt = req.Headline.PublishedAt.UTC()
	}

	var (
		rec core.TradeRecommendation
		err error
	)
	if req.Classification != nil {
		c, perr := req.Classification.parse(headline)
		if perr != nil {
			response.Error(w, http.StatusBadRequest, perr)
			return
		}
		rec, err = h.runner.RunClassified(r.Context(), c)
	} else {
		rec, err = h.runner.Run(r.Context(), headline)
	}
	if err != nil {
		h.logger.Warn("recommendation request failed", zap.String("headline", headline.Title), zap.Error(err))
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusCreated, rec)
}

func (in ClassificationInput) parse(h core.Headline) (core.HeadlineClassification, error) {
	et, err := core.ParseEventType(in.EventType)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	label, err := core.ParseSentimentLabel(in.Sentiment)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	sentiment, err := core.NewSentiment(label, in.SentimentScore)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	sector, err := core.ParseSector(in.Sector)
	if err != nil {
		return core.HeadlineClassification{}, err
	}
	c := core.HeadlineClassification{
		Headline:     h,
		EventType:    et,
		Sentiment:    sentiment,
		Sector:       sector,
		ClassifiedBy: "request",
	}
	if t := strings.TrimSpace(in.Ticker); t != "" {
		c.Ticker = marketdata.StandardizeTicker(t)
	}
	return c, nil
}

// List returns recommendations matching query parameters.
func (h *RecommendationsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	recs, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"total":           total,
		"limit":           filter.Limit,
		"offset":          filter.Offset,
	})
}

// Get returns a single recommendation by the {id} path value.
func (h *RecommendationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	response.JSON(w, http.StatusOK, rec)
}

func parseFilter(r *http.Request) (recommendation.ListFilter, error) {
	q := r.URL.Query()

	filter := recommendation.ListFilter{Limit: defaultListLimit}
	if t := q.Get("ticker"); t != "" {
		filter.Ticker = marketdata.StandardizeTicker(t)
	}

	if ot := q.Get("option_type"); ot != "" {
		parsed, err := core.ParseOptionType(ot)
		if err != nil {
			return filter, err
		}
		filter.OptionType = parsed
	}

	var err error
	if filter.From, err = parseTime(q.Get("from"), false); err != nil {
		return filter, fmt.Errorf("from: %w", err)
	}
	if filter.To, err = parseTime(q.Get("to"), true); err != nil {
		return filter, fmt.Errorf("to: %w", err)
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("limit must be a positive integer, got %q", limit)
		}
		filter.Limit = min(n, maxListLimit)
	}

	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must be a non-negative integer, got %q", offset)
		}
		filter.Offset = n
	}

	return filter, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare upper bound covers the whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
