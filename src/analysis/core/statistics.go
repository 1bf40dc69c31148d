package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd computes the mean and the sample standard deviation
// (N-1 denominator). Std is NaN with fewer than two samples.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return math.NaN(), math.NaN()
	}

	// Calculate mean
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, math.NaN()
	}

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)-1))
	return mean, std
}

// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean, NaN for no samples.
func Mean(data []float64) float64 {
	m, _ := CalculateMeanStd(data)
	return m
}

// SampleStd returns the sample standard deviation.
func SampleStd(data []float64) float64 {
	_, s := CalculateMeanStd(data)
	return s
}

// -----------------------------------------------------------------------------

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
