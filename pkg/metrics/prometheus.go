package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quoteRequests   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	lastPrice       *prometheus.GaugeVec
	auditAppends    *prometheus.CounterVec
	auditDropped    prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		quoteRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_quote_requests_total",
				Help: "Total number of served quote requests by result",
			},
			[]string{"result"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_cache_lookups_total",
				Help: "Quote cache lookups by result",
			},
			[]string{"result"},
		),
		upstreamLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinpulse_upstream_duration_seconds",
				Help:    "Duration of upstream price fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinpulse_last_price",
				Help: "Last fetched price for an asset/currency pair",
			},
			[]string{"asset", "currency"},
		),
		auditAppends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_audit_appends_total",
				Help: "Audit record appends by result",
			},
			[]string{"result"},
		),
		auditDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "coinpulse_audit_dropped_total",
				Help: "Audit records dropped because the append queue was full",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordQuoteRequest(result string) {
	r.quoteRequests.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordUpstreamLatency(outcome string, seconds float64) {
	r.upstreamLatency.WithLabelValues(outcome).Observe(seconds)
}

func (r *Recorder) RecordLastPrice(asset, currency string, price float64) {
	r.lastPrice.WithLabelValues(asset, currency).Set(price)
}

func (r *Recorder) RecordAuditAppend(result string) {
	r.auditAppends.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordAuditDropped() {
	r.auditDropped.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordQuoteRequest(string) {}
func (Nop) RecordCacheLookup(bool) {}
func (Nop) RecordUpstreamLatency(string, float64) {}
func (Nop) RecordLastPrice(string, string, float64) {}
func (Nop) RecordAuditAppend(string) {}
func (Nop) RecordAuditDropped() {}
func (Nop) RecordError(string) {}
