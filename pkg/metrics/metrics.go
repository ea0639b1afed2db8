package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementRunDuration tracks end-to-end latency of a settlement run.
	SettlementRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_run_duration_seconds",
			Help:    "Duration of settlement runs in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"}, // completed, skipped or failed
	)

	// SubmissionsSettled counts submissions transitioned to completed.
	SubmissionsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_submissions_settled_total",
			Help: "Number of submissions settled, by region",
		},
		[]string{"region"},
	)

	// SettlementErrors counts per-item and per-region failures.
	SettlementErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_errors_total",
			Help: "Number of settlement errors, by region",
		},
		[]string{"region"},
	)

	// AuditFindings reports the size of the last reconciliation report.
	AuditFindings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audit_unpaid_findings",
			Help: "Findings in the most recent reconciliation report, by reason",
		},
		[]string{"reason"},
	)
)

// RecordRunDuration records one settlement run observation.
func RecordRunDuration(status string, seconds float64) {
	SettlementRunDuration.WithLabelValues(status).Observe(seconds)
}
