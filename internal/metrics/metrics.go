// Package metrics exposes the Prometheus collectors wired to the
// supplemented /metrics endpoint (spec §9 enrichment; data-plane
// observability the distilled spec left implicit).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the pipeline feeds, including the
// rate-limit denial counter.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	MockHits         prometheus.Counter
	PipelineDuration prometheus.Histogram
}

// New registers every collector against reg and returns the handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxyd_requests_total",
			Help: "Total requests handled by the data plane, by method and status.",
		}, []string{"method", "status"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxyd_rate_limit_denials_total",
			Help: "Total requests denied by a rate-limit rule, by rule id.",
		}, []string{"rule_id"}),
		MockHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "proxyd_mock_hits_total",
			Help: "Total requests short-circuited by a mock rule.",
		}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proxyd_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration per request.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RegisterModifierSkipped wires a gauge that reports source() on every
// scrape — the modifier's skipped-modification counter is a monotonic
// snapshot read, not an event pushed through Metrics.
func RegisterModifierSkipped(reg prometheus.Registerer, source func() uint64) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "proxyd_modifier_modifications_skipped_total",
		Help: "Total modifier modifications skipped due to a recovered panic.",
	}, func() float64 { return float64(source()) })
}
