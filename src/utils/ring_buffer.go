package utils

// -----------------------------------------------------------------------------
// RollingWindow is a fixed-size circular buffer of float64 samples.
// Pushing into a full window evicts the oldest sample.
// -----------------------------------------------------------------------------

type RollingWindow struct {
	data     []float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRollingWindow creates a window holding at most capacity samples.
func NewRollingWindow(capacity int) *RollingWindow {
	if capacity <= 0 {
		capacity = 1
	}

	return &RollingWindow{
		data:     make([]float64, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Push appends a sample
func (rw *RollingWindow) Push(v float64) {
	rw.data[rw.index] = v
	rw.index = (rw.index + 1) % rw.capacity

	if rw.size < rw.capacity {
		rw.size++
	}
}

// -----------------------------------------------------------------------------

// Values returns the samples oldest to newest.
func (rw *RollingWindow) Values() []float64 {
	if rw.size == 0 {
		return []float64{}
	}

	result := make([]float64, rw.size)

	var startIdx int
	if rw.size == rw.capacity {
		// Full: oldest sits at the write position
		startIdx = rw.index
	}

	for i := 0; i < rw.size; i++ {
		result[i] = rw.data[(startIdx+i)%rw.capacity]
	}
	return result
}

// -----------------------------------------------------------------------------

// Len returns the number of samples held.
func (rw *RollingWindow) Len() int {
	return rw.size
}

// Cap returns the window capacity.
func (rw *RollingWindow) Cap() int {
	return rw.capacity
}

// Full reports whether the window holds capacity samples.
func (rw *RollingWindow) Full() bool {
	return rw.size == rw.capacity
}

// Reset empties the window.
func (rw *RollingWindow) Reset() {
	rw.index = 0
	rw.size = 0
}
