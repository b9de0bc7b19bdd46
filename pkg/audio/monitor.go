package audio

import (
	"math"
	"sync"
)

// activityThreshold is the RMS level above which the input is considered
// active (someone is speaking or the game is making noise).
const activityThreshold = 0.01

// LevelMonitor tracks recent input levels for dashboard display. It keeps a
// bounded ring buffer of per-frame RMS values from which the current,
// average, and peak levels are computed on demand.
//
// Thread-safe for concurrent use.
type LevelMonitor struct {
	mu     sync.Mutex
	levels []float64
	size   int
	pos    int
	full   bool
}

// NewLevelMonitor creates a LevelMonitor with the given window size (maximum
// number of per-frame level samples retained).
func NewLevelMonitor(windowSize int) *LevelMonitor {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &LevelMonitor{
		levels: make([]float64, windowSize),
		size:   windowSize,
	}
}

// Observe records the RMS level of one frame.
func (m *LevelMonitor) Observe(f Frame) {
	var sum float64
	for _, s := range f.Samples {
		sum += s * s
	}
	rms := 0.0
	if len(f.Samples) > 0 {
		rms = math.Sqrt(sum / float64(len(f.Samples)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[m.pos] = rms
	m.pos++
	if m.pos >= m.size {
		m.pos = 0
		m.full = true
	}
}

// Level is a point-in-time view of the input level.
type Level struct {
	// Current is the RMS of the most recent frame.
	Current float64 `json:"current"`

	// Average is the mean RMS over the window.
	Average float64 `json:"average"`

	// Peak is the maximum RMS over the window.
	Peak float64 `json:"peak"`

	// Active reports whether the current level exceeds the activity
	// threshold.
	Active bool `json:"active"`
}

// Snapshot returns a point-in-time view of the input level.
func (m *LevelMonitor) Snapshot() Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.pos
	if m.full {
		n = m.size
	}
	if n == 0 {
		return Level{}
	}

	last := m.pos - 1
	if last < 0 {
		last = m.size - 1
	}

	var sum, peak float64
	for i := 0; i < n; i++ {
		v := m.levels[i]
		sum += v
		if v > peak {
			peak = v
		}
	}
	current := m.levels[last]
	return Level{
		Current: current,
		Average: sum / float64(n),
		Peak:    peak,
		Active:  current > activityThreshold,
	}
}
