package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Stage latencies: recognize, extract, quality, compare, issue
	StageLatency *prometheus.HistogramVec

	// Verification outcomes by acceptance
	Outcomes *prometheus.CounterVec

	// Per-field comparison results
	FieldResults *prometheus.CounterVec

	OverallScore prometheus.Histogram

	CredentialsIssued prometheus.Counter

	// Credential checks by status: valid, invalid, malformed
	CredentialChecks *prometheus.CounterVec

	PayloadBytes prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestor_verification_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"stage"}),

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_verification_outcomes_total",
			Help: "Verification outcomes by acceptance",
		}, []string{"accepted"}),

		FieldResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_verification_field_results_total",
			Help: "Per-field comparison results by field and match",
		}, []string{"field", "matched"}),

		OverallScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestor_verification_overall_score",
			Help:    "Distribution of overall confidence scores",
			Buckets: []float64{0.1, 0.25, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}),

		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attestor_credentials_issued_total",
			Help: "Credentials issued",
		}),

		CredentialChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attestor_credential_checks_total",
			Help: "Credential signature checks by status",
		}, []string{"status"}),

		PayloadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestor_compact_payload_bytes",
			Help:    "Size of compact credential payloads",
			Buckets: prometheus.ExponentialBuckets(256, 2, 8),
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(accepted bool, score float64) {
	if m != nil {
		m.Outcomes.WithLabelValues(boolLabel(accepted)).Inc()
		m.OverallScore.Observe(score)
	}
}

func (m *Metrics) IncrementField(field string, matched bool) {
	if m != nil {
		m.FieldResults.WithLabelValues(field, boolLabel(matched)).Inc()
	}
}

func (m *Metrics) IncrementIssued(payloadBytes int) {
	if m != nil {
		m.CredentialsIssued.Inc()
		m.PayloadBytes.Observe(float64(payloadBytes))
	}
}

func (m *Metrics) IncrementCheck(status string) {
	if m != nil {
		m.CredentialChecks.WithLabelValues(status).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
