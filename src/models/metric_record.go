package models

import (
	"fmt"
	"time"
)

// MetricName identifies a derived risk series.
type MetricName string

const (
	MetricVolatility  MetricName = "volatility"
	MetricDrawdown    MetricName = "drawdown"
	MetricSharpeRatio MetricName = "sharpe_ratio"
)

// AllMetrics lists every metric the engine knows how to compute, in emit order.
var AllMetrics = []MetricName{MetricVolatility, MetricDrawdown, MetricSharpeRatio}

// -----------------------------------------------------------------------------

// ParseMetricName validates a metric name coming from config or a query.
func ParseMetricName(s string) (MetricName, error) {
	for _, m := range AllMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// -----------------------------------------------------------------------------

// MMetricRecord is one derived value. WindowSize 0 marks an expanding window.
type MMetricRecord struct {
	Timestamp       time.Time  `json:"timestamp"`
	Symbol          string     `json:"symbol"`
	MetricName      MetricName `json:"metric_name"`
	MetricValue     float64    `json:"metric_value"`
	WindowSize      int        `json:"window_size"`
	CalculationDate time.Time  `json:"calculation_date"`
}
