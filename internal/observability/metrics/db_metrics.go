package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "tolerance_records_open",
			Help: "Tolerance records not yet resolved",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM gage_tolerance_records WHERE status <> 'resolved'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "gages_overdue",
			Help: "Gages past their next calibration due date",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM gages WHERE next_due_date IS NOT NULL AND next_due_date < NOW()")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "gages_checked_out",
			Help: "Gages currently checked out",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM gage_checkouts WHERE checked_in_at IS NULL")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
