package gateway

import (
	"math"
	"testing"
	"time"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if lt.Count() != 0 {
		t.Errorf("initial count: got %d, want 0", lt.Count())
	}
	p50, p95, p99 := lt.Percentiles()
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Errorf("empty tracker: expected (0,0,0), got (%f,%f,%f)", p50, p95, p99)
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	lt := NewLatencyTracker(100)
	lt.Record(42.5)

	p50, p95, p99 := lt.Percentiles()
	for name, got := range map[string]float64{"p50": p50, "p95": p95, "p99": p99} {
		if got != 42.5 {
			t.Errorf("%s: got %f, want 42.5", name, got)
		}
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(10000)

	// 100 samples: 1.0, 2.0, ..., 100.0
	for i := 1; i <= 100; i++ {
		lt.Record(float64(i))
	}
	if lt.Count() != 100 {
		t.Fatalf("Count() = %d, want 100", lt.Count())
	}

	p50, p95, p99 := lt.Percentiles()
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"p50", p50, 50.5},
		{"p95", p95, 95.05},
		{"p99", p99, 99.01},
	}
	for _, tc := range cases {
		if math.Abs(tc.got-tc.want) > 1.0 {
			t.Errorf("%s: got %f, expected ~%f", tc.name, tc.got, tc.want)
		}
	}
}

func TestLatencyTracker_Wraparound(t *testing.T) {
	lt := NewLatencyTracker(10)

	// 20 samples through a capacity-10 ring evicts the first 10.
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}

	if lt.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", lt.Count())
	}

	// Remaining samples are 11..20, median 15.5.
	p50, _, _ := lt.Percentiles()
	if math.Abs(p50-15.5) > 1.0 {
		t.Errorf("p50 after wraparound: got %f, expected ~15.5", p50)
	}
}

func TestLatencyTracker_RecordSince(t *testing.T) {
	lt := NewLatencyTracker(100)
	lt.RecordSince(time.Now().Add(-50 * time.Millisecond))

	if lt.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", lt.Count())
	}
	p50, _, _ := lt.Percentiles()
	if p50 < 50 || p50 > 5000 {
		t.Errorf("expected sample around 50ms, got %fms", p50)
	}
}
