package pipeline

import (
	"market-metrics/src/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus collectors, labelled by stage.
type Metrics struct {
	RowsRead       *prometheus.CounterVec
	RowsDropped    *prometheus.CounterVec
	RecordsWritten *prometheus.CounterVec
	Units          *prometheus.CounterVec
	UnitDuration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg (a fresh registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market_metrics",
			Name:      "rows_read_total",
			Help:      "Rows read from price files.",
		}, []string{"stage"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market_metrics",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped by validation, by cause.",
		}, []string{"stage", "cause"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market_metrics",
			Name:      "records_written_total",
			Help:      "Records persisted to the store.",
		}, []string{"stage"}),
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market_metrics",
			Name:      "units_total",
			Help:      "Per-symbol units of work by outcome (ok, no_data, transient, permanent).",
		}, []string{"stage", "outcome"}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "market_metrics",
			Name:      "unit_duration_seconds",
			Help:      "Duration of one per-symbol unit of work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	reg.MustRegister(m.RowsRead, m.RowsDropped, m.RecordsWritten, m.Units, m.UnitDuration)
	return m
}

// Observe records one finished report.
func (m *Metrics) Observe(r models.MRunReport) {
	if m == nil {
		return
	}
	m.RowsRead.WithLabelValues(r.Stage).Add(float64(r.RowsRead))
	for cause, n := range r.DropSummary {
		m.RowsDropped.WithLabelValues(r.Stage, cause).Add(float64(n))
	}
	m.RecordsWritten.WithLabelValues(r.Stage).Add(float64(r.RecordsWritten))

	outcome := "ok"
	switch {
	case r.Failed():
		outcome = r.ErrorClass
	case r.NoData:
		outcome = "no_data"
	}
	m.Units.WithLabelValues(r.Stage, outcome).Inc()
	m.UnitDuration.WithLabelValues(r.Stage).Observe(r.Duration().Seconds())
}
