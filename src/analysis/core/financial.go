package core

import "math"

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change. NaN when previous is 0.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return math.NaN()
	}
	return current/previous - 1
}

// -----------------------------------------------------------------------------

// PctChanges returns close[t]/close[t-1]-1 aligned with closes; index 0 is NaN.
func PctChanges(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = CalculateChangePercent(closes[i], closes[i-1])
	}
	return out
}

// -----------------------------------------------------------------------------

// RunningMax returns the expanding maximum of values.
func RunningMax(values []float64) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		out[i] = peak
	}
	return out
}

// -----------------------------------------------------------------------------

// Drawdown is the decline of value from peak, always <= 0 for value <= peak.
func Drawdown(value, peak float64) float64 {
	if peak <= 0 {
		return math.NaN()
	}
	return (value - peak) / peak
}

// -----------------------------------------------------------------------------

// AnnualizedVolatility is the sample std of period changes scaled by sqrt(periods).
func AnnualizedVolatility(changes []float64, periodsPerYear float64) float64 {
	return SampleStd(changes) * math.Sqrt(periodsPerYear)
}

// -----------------------------------------------------------------------------

// SharpeRatio annualizes the mean excess return over the change std. It is
// NaN when the std is zero or undefined.
func SharpeRatio(changes []float64, riskFreeRate, periodsPerYear float64) float64 {
	mean, std := CalculateMeanStd(changes)
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	scale := math.Sqrt(periodsPerYear)
	excess := mean - riskFreeRate/periodsPerYear
	return (excess * scale) / (std * scale)
}
