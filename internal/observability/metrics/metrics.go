package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gagetrack_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	calibrationEvents  *prometheus.CounterVec
	calibrationLatency *prometheus.HistogramVec

	deviationTriggers *prometheus.CounterVec
	deviationResolved prometheus.Counter

	checkoutEvents *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	reminderRuns *prometheus.CounterVec
	reminderSent prometheus.Counter

	dueStatusCounts *prometheus.GaugeVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		calibrationEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calibration_events_total",
				Help: "Total calibration record operations by action and result",
			},
			[]string{"action", "result"},
		)
		calibrationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calibration_latency_seconds",
				Help:    "Calibration record operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action", "result"},
		)

		deviationTriggers = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deviation_triggers_total",
				Help: "Total tolerance records opened by workflow mode",
			},
			[]string{"workflow"},
		)
		deviationResolved = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "deviation_resolved_total",
				Help: "Total tolerance records resolved",
			},
		)

		checkoutEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "checkout_events_total",
				Help: "Total gage checkout lifecycle events by type",
			},
			[]string{"event"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		reminderRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reminder_runs_total",
				Help: "Total reminder scan runs by result",
			},
			[]string{"result"},
		)
		reminderSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reminder_notifications_total",
				Help: "Total reminder notifications delivered",
			},
		)

		dueStatusCounts = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "gages_by_due_status",
				Help: "Gage counts by computed due status",
			},
			[]string{"status"},
		)

		prometheus.MustRegister(
			calibrationEvents,
			calibrationLatency,
			deviationTriggers,
			deviationResolved,
			checkoutEvents,
			exportTotal,
			exportLatency,
			reminderRuns,
			reminderSent,
			dueStatusCounts,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveCalibration records calibration operation duration and result.
func ObserveCalibration(action, result string, duration time.Duration) {
	if action == "" {
		action = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if calibrationEvents != nil {
		calibrationEvents.WithLabelValues(action, result).Inc()
	}
	if calibrationLatency != nil {
		calibrationLatency.WithLabelValues(action, result).Observe(duration.Seconds())
	}
}

// IncDeviationTrigger increments opened tolerance record counter.
func IncDeviationTrigger(workflow string) {
	if workflow == "" {
		workflow = "unknown"
	}
	if deviationTriggers != nil {
		deviationTriggers.WithLabelValues(workflow).Inc()
	}
}

// IncDeviationResolved increments resolved tolerance record counter.
func IncDeviationResolved() {
	if deviationResolved != nil {
		deviationResolved.Inc()
	}
}

// IncCheckoutEvent increments checkout lifecycle counters.
func IncCheckoutEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if checkoutEvents != nil {
		checkoutEvents.WithLabelValues(event).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveReminderRun records a reminder scan run.
func ObserveReminderRun(result string) {
	if result == "" {
		result = resultSuccess
	}
	if reminderRuns != nil {
		reminderRuns.WithLabelValues(result).Inc()
	}
}

// AddRemindersSent increments delivered notification counter by count.
func AddRemindersSent(count int) {
	if count <= 0 {
		return
	}
	if reminderSent != nil {
		reminderSent.Add(float64(count))
	}
}

// SetDueStatusCount sets the gauge for a due status bucket.
func SetDueStatusCount(status string, count int) {
	if status == "" {
		status = "unknown"
	}
	if count < 0 {
		count = 0
	}
	if dueStatusCounts != nil {
		dueStatusCounts.WithLabelValues(status).Set(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
