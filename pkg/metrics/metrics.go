package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch metrics
	DispatchesTotal     *prometheus.CounterVec
	DispatchLatency     prometheus.Histogram
	RecipientLookups    *prometheus.CounterVec
	HistoryRecordsTotal prometheus.Counter

	// Scheduler metrics
	PollCycleLatency  prometheus.Histogram
	MessagesProcessed *prometheus.CounterVec
	DueBacklog        prometheus.Gauge
	ClaimConflicts    prometheus.Counter

	// Rule engine metrics
	RuleEvaluations *prometheus.CounterVec
	ActionsExecuted *prometheus.CounterVec
	MetricFailures  prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DispatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatches_total",
			Help:      "Total number of per-recipient dispatch attempts",
		}, []string{"outcome"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent on a single provider call",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		RecipientLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recipient_lookups_total",
			Help:      "Directory lookups by outcome (hit, miss, degraded)",
		}, []string{"outcome"}),
		HistoryRecordsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "history_records_total",
			Help:      "Total number of history records appended",
		}),
		PollCycleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Time spent in one scheduler poll cycle",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		MessagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_processed_total",
			Help:      "Scheduled messages processed by terminal status",
		}, []string{"status"}),
		DueBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "due_backlog",
			Help:      "Number of due messages picked up in the last cycle",
		}),
		ClaimConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "claim_conflicts_total",
			Help:      "Messages already claimed by an overlapping cycle",
		}),
		RuleEvaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_evaluations_total",
			Help:      "Rule evaluations by result (fired, skipped, error)",
		}, []string{"result"}),
		ActionsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_actions_total",
			Help:      "Rule action executions by type and outcome",
		}, []string{"type", "outcome"}),
		MetricFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "metric_input_failures_total",
			Help:      "Metric calculations rejected for invalid input",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
