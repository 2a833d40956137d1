// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check results recorded by the consistency verifier.
const (
	ResultPass    = "pass"
	ResultFail    = "fail"
	ResultSkipped = "skipped"
)

// Outcome labels for counters that track success and failure.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Orchestrator metrics
	IndexerErrors  *prometheus.CounterVec
	SubmitAttempts *prometheus.CounterVec

	// Session metrics
	SessionRenewals *prometheus.CounterVec
	UpstreamRetries *prometheus.CounterVec

	// Verifier metrics
	IntegrityChecks   *prometheus.CounterVec
	IndexerTrusted    *prometheus.GaugeVec
	LastCheckedLedger *prometheus.GaugeVec

	// Price cache metrics
	PriceUpdates         *prometheus.CounterVec
	PriceTrackedTokens   prometheus.Gauge
	PriceCalculationTime prometheus.Histogram
	LastPriceUpdate      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_core"
	}
	factory := promauto.With(reg)

	return &Metrics{
		IndexerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "indexer_errors_total",
			Help:      "Total number of indexer failures that fell back to direct RPC",
		}, []string{"network", "operation"}),
		SubmitAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "submit_attempts_total",
			Help:      "Total number of transaction submission attempts by outcome",
		}, []string{"network", "result"}),

		SessionRenewals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "renewals_total",
			Help:      "Total number of indexer token renewals by outcome",
		}, []string{"network", "result"}),
		UpstreamRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "upstream_retries_total",
			Help:      "Total number of retried authenticated indexer calls",
		}, []string{"source"}),

		IntegrityChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "integrity_checks_total",
			Help:      "Total number of indexer consistency checks by result",
		}, []string{"result"}),
		IndexerTrusted: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "indexer_trusted",
			Help:      "1 when the last consistency check passed, 0 when it failed",
		}, []string{"network"}),
		LastCheckedLedger: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "verifier",
			Name:      "last_checked_ledger",
			Help:      "Sequence of the last ledger sampled by the verifier",
		}, []string{"network"}),

		PriceUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "updates_total",
			Help:      "Total number of per-token price calculations by outcome",
		}, []string{"result"}),
		PriceTrackedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "tracked_tokens",
			Help:      "Number of tokens in the ranked price set",
		}),
		PriceCalculationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "calculation_seconds",
			Help:      "Path finding price calculation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LastPriceUpdate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "last_update_timestamp",
			Help:      "Unix timestamp of the last completed price update",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordIndexerError counts an indexer failure that degraded to RPC.
func (m *Metrics) RecordIndexerError(network, operation string) {
	if m == nil {
		return
	}
	m.IndexerErrors.WithLabelValues(network, operation).Inc()
}

// RecordSubmitAttempt counts one submission attempt.
func (m *Metrics) RecordSubmitAttempt(network string, err error) {
	if m == nil {
		return
	}
	m.SubmitAttempts.WithLabelValues(network, outcome(err)).Inc()
}

// RecordRenewal counts a token renewal.
func (m *Metrics) RecordRenewal(network string, err error) {
	if m == nil {
		return
	}
	m.SessionRenewals.WithLabelValues(network, outcome(err)).Inc()
}

// RecordRetry counts a retried upstream call.
func (m *Metrics) RecordRetry(source string) {
	if m == nil {
		return
	}
	m.UpstreamRetries.WithLabelValues(source).Inc()
}

// RecordCheck counts a consistency check result and updates the trust gauge for verdicts.
func (m *Metrics) RecordCheck(network, result string) {
	if m == nil {
		return
	}
	m.IntegrityChecks.WithLabelValues(result).Inc()
	switch result {
	case ResultPass:
		m.IndexerTrusted.WithLabelValues(network).Set(1)
	case ResultFail:
		m.IndexerTrusted.WithLabelValues(network).Set(0)
	}
}

// RecordLedger updates the last sampled ledger.
func (m *Metrics) RecordLedger(network string, sequence int64) {
	if m == nil {
		return
	}
	m.LastCheckedLedger.WithLabelValues(network).Set(float64(sequence))
}

// RecordPriceCalculation records one price calculation.
func (m *Metrics) RecordPriceCalculation(seconds float64, err error) {
	if m == nil {
		return
	}
	m.PriceCalculationTime.Observe(seconds)
	m.PriceUpdates.WithLabelValues(outcome(err)).Inc()
}

// RecordPriceUpdate records a completed update cycle.
func (m *Metrics) RecordPriceUpdate(tracked int, unixSeconds float64) {
	if m == nil {
		return
	}
	m.PriceTrackedTokens.Set(float64(tracked))
	m.LastPriceUpdate.Set(unixSeconds)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
