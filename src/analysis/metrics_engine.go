package analysis

import (
	"sort"
	"time"

	"market-metrics/src/analysis/core"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/utils"
)

// MetricsEngine derives risk series from one symbol's ordered prices.
type MetricsEngine struct {
	WindowSize          int
	AnnualizationFactor float64
	RiskFreeRate        float64
	Metrics             []models.MetricName
	Logger              *logger.Logger

	// Now stamps calculation_date; tests pin it.
	Now func() time.Time
}

// -----------------------------------------------------------------------------

// NewMetricsEngine builds an engine from the metrics config section. Zero
// values fall back to the package defaults; unknown metric names are ignored.
func NewMetricsEngine(cfg models.MMetricsConfig, log *logger.Logger) *MetricsEngine {
	e := &MetricsEngine{
		WindowSize:          cfg.WindowSize,
		AnnualizationFactor: cfg.AnnualizationFactor,
		RiskFreeRate:        cfg.RiskFreeRate,
		Logger:              log,
		Now:                 time.Now,
	}
	if e.WindowSize < 2 {
		e.WindowSize = utils.DefaultWindowSize
	}
	if e.AnnualizationFactor <= 0 {
		e.AnnualizationFactor = utils.DefaultAnnualizationFactor
	}
	for _, name := range cfg.Enabled {
		if m, err := models.ParseMetricName(name); err == nil {
			e.Metrics = append(e.Metrics, m)
		}
	}
	if len(e.Metrics) == 0 {
		e.Metrics = append(e.Metrics, models.AllMetrics...)
	}
	return e
}

// -----------------------------------------------------------------------------

// Compute returns the enabled metric series for prices, grouped by metric in
// the configured order. Windows that cannot be computed emit nothing; every
// record shares one calculation date.
func (e *MetricsEngine) Compute(symbol string, prices []models.MPricePoint) []models.MMetricRecord {
	if len(prices) == 0 {
		return nil
	}
	prices = ordered(prices)

	calcDate := e.Now().UTC().Truncate(time.Second)
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}

	var out []models.MMetricRecord
	for _, m := range e.Metrics {
		var series []models.MMetricRecord
		switch m {
		case models.MetricVolatility, models.MetricSharpeRatio:
			series = e.rolling(m, symbol, prices, closes, calcDate)
		case models.MetricDrawdown:
			series = e.drawdown(symbol, prices, closes, calcDate)
		}
		out = append(out, series...)
	}

	if e.Logger != nil {
		e.Logger.Debug("Computed %d metric records for %s from %d prices", len(out), symbol, len(prices))
	}
	return out
}

// -----------------------------------------------------------------------------

// rolling slides a window of W period changes over the series. The first
// change exists at index 1, so at index W-1 the window holds W-1 changes; the
// first W-1 timestamps emit nothing.
func (e *MetricsEngine) rolling(m models.MetricName, symbol string, prices []models.MPricePoint, closes []float64, calcDate time.Time) []models.MMetricRecord {
	w := e.WindowSize
	if len(prices) < w {
		return nil
	}

	changes := core.PctChanges(closes)
	window := utils.NewRollingWindow(w)
	out := make([]models.MMetricRecord, 0, len(prices)-w+1)

	for t := 1; t < len(prices); t++ {
		window.Push(changes[t])
		if t < w-1 {
			continue
		}

		var v float64
		if m == models.MetricVolatility {
			v = core.AnnualizedVolatility(window.Values(), e.AnnualizationFactor)
		} else {
			v = core.SharpeRatio(window.Values(), e.RiskFreeRate, e.AnnualizationFactor)
		}
		if !core.IsFinite(v) {
			continue
		}

		out = append(out, models.MMetricRecord{
			Timestamp:       prices[t].Timestamp,
			Symbol:          symbol,
			MetricName:      m,
			MetricValue:     v,
			WindowSize:      w,
			CalculationDate: calcDate,
		})
	}
	return out
}

// -----------------------------------------------------------------------------

func (e *MetricsEngine) drawdown(symbol string, prices []models.MPricePoint, closes []float64, calcDate time.Time) []models.MMetricRecord {
	peaks := core.RunningMax(closes)
	out := make([]models.MMetricRecord, 0, len(prices))

	for t, p := range prices {
		v := core.Drawdown(closes[t], peaks[t])
		if !core.IsFinite(v) {
			continue
		}
		out = append(out, models.MMetricRecord{
			Timestamp:       p.Timestamp,
			Symbol:          symbol,
			MetricName:      models.MetricDrawdown,
			MetricValue:     v,
			WindowSize:      0,
			CalculationDate: calcDate,
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// ordered returns prices sorted by timestamp with one point per timestamp
// (the first seen), copying only when needed.
func ordered(prices []models.MPricePoint) []models.MPricePoint {
	strict := true
	for i := 1; i < len(prices); i++ {
		if !prices[i-1].Timestamp.Before(prices[i].Timestamp) {
			strict = false
			break
		}
	}
	if strict {
		return prices
	}

	cp := append([]models.MPricePoint(nil), prices...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Timestamp.Before(cp[j].Timestamp) })
	out := cp[:1]
	for _, p := range cp[1:] {
		if !p.Timestamp.Equal(out[len(out)-1].Timestamp) {
			out = append(out, p)
		}
	}
	return out
}
