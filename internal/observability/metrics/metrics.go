package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "treasury_"

	resultSuccess = "success"
	resultError   = "error"

	modeStudent = "student"
	modeRoster  = "roster"

	reasonUnclassified = "unclassified"
	reasonOrphaned     = "orphaned"
	reasonAmbiguous    = "ambiguous"
)

var (
	registerOnce sync.Once

	reconcileTotal   *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec

	rosterStudents prometheus.Histogram

	paymentsUnmatched *prometheus.CounterVec

	tenantOwed            *prometheus.GaugeVec
	tenantPaid            *prometheus.GaugeVec
	tenantDiscrepancy     *prometheus.GaugeVec
	tenantCreditRemaining *prometheus.GaugeVec

	validationIssues *prometheus.CounterVec
)

// Init registers reconciliation metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Total reconciliation runs by mode and result",
			},
			[]string{"mode", "result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_latency_seconds",
				Help:    "Reconciliation latency in seconds, snapshot load included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)

		rosterStudents = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "roster_students",
				Help:    "Students reconciled per roster run",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)

		paymentsUnmatched = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_unmatched_total",
				Help: "Payments not cleanly matched to an obligation, by reason",
			},
			[]string{"reason"},
		)

		tenantOwed = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "tenant_owed",
				Help: "Total owed across the tenant roster at the last run",
			},
			[]string{"tenant"},
		)
		tenantPaid = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "tenant_paid",
				Help: "Total matched payments across the tenant roster at the last run",
			},
			[]string{"tenant"},
		)
		tenantDiscrepancy = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "tenant_discrepancy",
				Help: "Expected minus paid, redirected, credited and owed at the last run",
			},
			[]string{"tenant"},
		)
		tenantCreditRemaining = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "tenant_credit_remaining",
				Help: "Unconsumed standing credit across the tenant roster at the last run",
			},
			[]string{"tenant"},
		)

		validationIssues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_issues_total",
				Help: "Snapshot data issues found by validation, by kind",
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			reconcileTotal,
			reconcileLatency,
			rosterStudents,
			paymentsUnmatched,
			tenantOwed,
			tenantPaid,
			tenantDiscrepancy,
			tenantCreditRemaining,
			validationIssues,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveReconcile records a run duration and result for a mode.
func ObserveReconcile(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = modeStudent
	}
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(mode, result).Inc()
	}
	if reconcileLatency != nil {
		reconcileLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// ObserveRosterSize records how many students a roster run covered.
func ObserveRosterSize(students int) {
	if rosterStudents != nil {
		rosterStudents.Observe(float64(students))
	}
}

// AddUnmatchedPayments counts payments left out of debt offsetting.
func AddUnmatchedPayments(unclassified, orphaned, ambiguous int) {
	if paymentsUnmatched == nil {
		return
	}
	if unclassified > 0 {
		paymentsUnmatched.WithLabelValues(reasonUnclassified).Add(float64(unclassified))
	}
	if orphaned > 0 {
		paymentsUnmatched.WithLabelValues(reasonOrphaned).Add(float64(orphaned))
	}
	if ambiguous > 0 {
		paymentsUnmatched.WithLabelValues(reasonAmbiguous).Add(float64(ambiguous))
	}
}

// SetTenantTotals publishes roster totals for a tenant.
func SetTenantTotals(tenant string, owed, paid, discrepancy, creditRemaining float64) {
	if tenant == "" {
		tenant = "unknown"
	}
	if tenantOwed != nil {
		tenantOwed.WithLabelValues(tenant).Set(owed)
	}
	if tenantPaid != nil {
		tenantPaid.WithLabelValues(tenant).Set(paid)
	}
	if tenantDiscrepancy != nil {
		tenantDiscrepancy.WithLabelValues(tenant).Set(discrepancy)
	}
	if tenantCreditRemaining != nil {
		tenantCreditRemaining.WithLabelValues(tenant).Set(creditRemaining)
	}
}

// IncValidationIssue counts a snapshot issue by kind.
func IncValidationIssue(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if validationIssues != nil {
		validationIssues.WithLabelValues(kind).Inc()
	}
}

// WriteTextfile writes the default registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	ModeStudent = modeStudent
	ModeRoster  = modeRoster
)
