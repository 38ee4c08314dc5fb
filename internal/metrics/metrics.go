// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the recommendation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/newthinker/analog/internal/core"
)

// Headline outcomes.
const (
	StatusRecommended = "recommended"
	StatusAbstained   = "abstained"
	StatusFailed      = "failed"
)

// Fallback kinds.
const (
	FallbackChain      = "chain"
	FallbackVolatility = "volatility"
	FallbackEnrichment = "enrichment"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Pipeline metrics
	headlinesProcessed *prometheus.CounterVec
	failures           *prometheus.CounterVec
	classifications    *prometheus.CounterVec
	matchCount         prometheus.Histogram
	enrichments        *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	recommendations    *prometheus.CounterVec
	abstentions        *prometheus.CounterVec
	pipelineDuration   prometheus.Histogram
	catalogSize        prometheus.Gauge
	notifications      *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		headlinesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_headlines_processed_total",
				Help: "Headlines run through the pipeline by outcome",
			},
			[]string{"status"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_pipeline_failures_total",
				Help: "Headlines that failed, by error code",
			},
			[]string{"code"},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_classifications_total",
				Help: "Headline classifications by classifier and result",
			},
			[]string{"classifier", "result"},
		),
		matchCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analog_matches_per_headline",
				Help:    "Number of qualifying historical matches per headline",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
		),
		enrichments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_match_enrichments_total",
				Help: "Realized-move enrichment attempts by outcome",
			},
			[]string{"outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_provider_fallbacks_total",
				Help: "Recommendations built on a fallback input, by kind",
			},
			[]string{"kind"},
		),
		recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_recommendations_total",
				Help: "Recommendations produced by option type",
			},
			[]string{"option_type"},
		),
		abstentions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_abstentions_total",
				Help: "Abstentions by reason",
			},
			[]string{"reason"},
		),
		pipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analog_pipeline_duration_seconds",
				Help:    "End-to-end time to produce one recommendation",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		catalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analog_catalog_templates",
				Help: "Number of historical event templates loaded",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analog_notifications_total",
				Help: "Recommendation notifications by notifier and result",
			},
			[]string{"notifier", "result"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.headlinesProcessed,
		r.failures,
		r.classifications,
		r.matchCount,
		r.enrichments,
		r.fallbacks,
		r.recommendations,
		r.abstentions,
		r.pipelineDuration,
		r.catalogSize,
		r.notifications,
	)
	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordClassification counts a classifier call.
func (r *Registry) RecordClassification(classifier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.classifications.WithLabelValues(classifier, result).Inc()
}

// RecordFailure counts a headline the pipeline could not process, labelled
// with the error code of err.
func (r *Registry) RecordFailure(err error, duration float64) {
	r.headlinesProcessed.WithLabelValues(StatusFailed).Inc()
	r.failures.WithLabelValues(core.CodeOf(err)).Inc()
	r.pipelineDuration.Observe(duration)
}

// RecordRecommendation records everything observable about a finished run.
func (r *Registry) RecordRecommendation(rec core.TradeRecommendation, duration float64) {
	r.pipelineDuration.Observe(duration)
	r.recommendations.WithLabelValues(string(rec.OptionType)).Inc()
	r.matchCount.Observe(float64(len(rec.Matches)))

	if rec.OptionType == core.OptionAbstain {
		r.headlinesProcessed.WithLabelValues(StatusAbstained).Inc()
		r.abstentions.WithLabelValues(rec.AbstainReason).Inc()
	} else {
		r.headlinesProcessed.WithLabelValues(StatusRecommended).Inc()
	}

	for _, m := range rec.Matches {
		outcome := "live"
		if m.EnrichmentFailed() {
			outcome = "fallback"
		}
		r.enrichments.WithLabelValues(outcome).Inc()
	}

	if rec.ChainUnavailable {
		r.fallbacks.WithLabelValues(FallbackChain).Inc()
	}
	if rec.VolatilityUnavailable {
		r.fallbacks.WithLabelValues(FallbackVolatility).Inc()
	}
	if rec.EnrichmentFailed {
		r.fallbacks.WithLabelValues(FallbackEnrichment).Inc()
	}
}

// SetCatalogSize sets the number of loaded templates.
func (r *Registry) SetCatalogSize(n int) {
	r.catalogSize.Set(float64(n))
}

// RecordNotification counts one notifier delivery.
func (r *Registry) RecordNotification(notifier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.notifications.WithLabelValues(notifier, result).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
