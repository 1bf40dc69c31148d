package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMeanStd(t *testing.T) {
	mean, std := CalculateMeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.InDelta(t, 2.13809, std, 1e-5)

	mean, std = CalculateMeanStd([]float64{3})
	assert.Equal(t, 3.0, mean)
	assert.True(t, math.IsNaN(std))

	mean, _ = CalculateMeanStd(nil)
	assert.True(t, math.IsNaN(mean))
}

func TestPctChangesAndRunningMax(t *testing.T) {
	ch := PctChanges([]float64{100, 102, 101})
	assert.True(t, math.IsNaN(ch[0]))
	assert.InDelta(t, 0.02, ch[1], 1e-12)
	assert.InDelta(t, -0.00980392, ch[2], 1e-8)

	assert.Equal(t, []float64{1, 3, 3, 4}, RunningMax([]float64{1, 3, 2, 4}))
	assert.Empty(t, RunningMax(nil))
}

func TestDrawdownAndSharpeGuards(t *testing.T) {
	assert.Zero(t, Drawdown(5, 5))
	assert.InDelta(t, -0.5, Drawdown(5, 10), 1e-12)
	assert.True(t, math.IsNaN(Drawdown(1, 0)))

	assert.True(t, math.IsNaN(SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.02, 252)))
	assert.True(t, math.IsNaN(SharpeRatio([]float64{0.01}, 0.02, 252)))
	assert.True(t, IsFinite(SharpeRatio([]float64{0.01, 0.02}, 0.02, 252)))

	assert.True(t, math.IsNaN(CalculateChangePercent(1, 0)))
}
