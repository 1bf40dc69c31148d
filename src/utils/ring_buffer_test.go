package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingWindow_FillsThenEvictsOldest(t *testing.T) {
	rw := NewRollingWindow(3)
	assert.Equal(t, []float64{}, rw.Values())

	rw.Push(1)
	rw.Push(2)
	assert.Equal(t, []float64{1, 2}, rw.Values())
	assert.False(t, rw.Full())

	rw.Push(3)
	rw.Push(4)
	assert.True(t, rw.Full())
	assert.Equal(t, 3, rw.Len())
	assert.Equal(t, []float64{2, 3, 4}, rw.Values())

	rw.Push(5)
	assert.Equal(t, []float64{3, 4, 5}, rw.Values())
}

func TestRollingWindow_Reset(t *testing.T) {
	rw := NewRollingWindow(2)
	rw.Push(1)
	rw.Push(2)
	rw.Reset()

	assert.Equal(t, 0, rw.Len())
	rw.Push(9)
	assert.Equal(t, []float64{9}, rw.Values())
}

func TestNewRollingWindow_NonPositiveCapacity(t *testing.T) {
	rw := NewRollingWindow(0)
	assert.Equal(t, 1, rw.Cap())
}
