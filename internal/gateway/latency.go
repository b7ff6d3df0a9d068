package gateway

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyTracker records bar-close-to-broadcast latency samples in a
// circular buffer and computes percentiles. Thread-safe.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64 // milliseconds
	pos     int
	count   int
	size    int
}

// NewLatencyTracker creates a tracker holding the last `capacity` samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity), size: capacity}
}

// Record adds a latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % lt.size
	if lt.count < lt.size {
		lt.count++
	}
	lt.mu.Unlock()
}

// RecordSince records the elapsed time from t to now.
func (lt *LatencyTracker) RecordSince(t time.Time) {
	lt.Record(float64(time.Since(t)) / float64(time.Millisecond))
}

// Percentiles returns p50, p95 and p99 latency in milliseconds, or
// zeros before the first sample.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	lt.mu.Lock()
	n := lt.count
	if n == 0 {
		lt.mu.Unlock()
		return 0, 0, 0
	}
	sorted := make([]float64, n)
	if n == lt.size {
		copy(sorted, lt.samples[lt.pos:])
		copy(sorted[lt.size-lt.pos:], lt.samples[:lt.pos])
	} else {
		copy(sorted, lt.samples[:n])
	}
	lt.mu.Unlock()

	sort.Float64s(sorted)
	return percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

// Count returns the number of recorded samples (up to capacity).
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
