package indicator

import (
	"math"
	"testing"
)

func TestEMAStream_MatchesBatch(t *testing.T) {
	// The streaming updater's closed-bar EMA must equal the batch EMA
	// over the same closes within float tolerance.
	closes := []float64{
		100.0, 101.5, 99.8, 102.3, 103.1, 101.9, 104.2, 105.0,
		103.8, 106.1, 107.4, 106.2, 108.0, 109.3, 108.1, 110.5,
		111.2, 109.9, 112.4, 113.0, 111.8, 114.1, 115.3, 114.0,
	}

	for _, period := range []int{5, 20} {
		stream := NewEMAStream(period)
		for _, c := range closes {
			stream.OnBarClose(c)
		}
		got, ok := stream.Current()
		if !ok {
			t.Fatalf("period %d: stream not ready after %d closes", period, len(closes))
		}
		want, ok := emaLast(closes, period)
		if !ok {
			t.Fatalf("period %d: batch EMA not defined", period)
		}
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("period %d: stream=%.8f batch=%.8f", period, got, want)
		}
	}
}

func TestEMAStream_LiveDoesNotMutate(t *testing.T) {
	stream := NewEMAStream(5)
	for _, c := range []float64{100, 101, 102, 103, 104, 105} {
		stream.OnBarClose(c)
	}
	before, _ := stream.Current()

	// Ticks against the forming bar must leave closed-bar state untouched.
	for _, p := range []float64{106, 107, 103, 110} {
		stream.UpdateTick(p)
	}
	after, _ := stream.Current()
	if before != after {
		t.Errorf("tick updates mutated closed EMA: %.6f -> %.6f", before, after)
	}

	live, ok := stream.Live()
	want := 110*stream.mult + before*(1-stream.mult)
	if !ok || math.Abs(live-want) > 1e-9 {
		t.Errorf("live EMA: got %.6f want %.6f", live, want)
	}
}

func TestEMA_UndefinedBeforeWarmup(t *testing.T) {
	if _, ok := emaLast([]float64{1, 2, 3}, 5); ok {
		t.Error("EMA(5) defined with only 3 closes")
	}
	stream := NewEMAStream(5)
	for _, c := range []float64{1, 2, 3, 4} {
		stream.OnBarClose(c)
	}
	if _, ok := stream.Current(); ok {
		t.Error("stream EMA ready with 4 of 5 seed closes")
	}
}

func TestCrossoverTracker_EdgeTriggered(t *testing.T) {
	// Closes rise sharply after a flat stretch: fast EMA crosses above
	// slow exactly once, then stays above. The crossover must fire on at
	// most one bar; the level condition stays bullish on the rest.
	closes := make([]float64, 0, 30)
	for i := 0; i < 12; i++ {
		closes = append(closes, 100.0)
	}
	for i := 0; i < 18; i++ {
		closes = append(closes, 100.0+float64(i+1)*2.0)
	}

	tracker := NewCrossoverTracker(3, 8)
	edges := 0
	levelAfterEdge := 0
	seenEdge := false
	for _, c := range closes {
		tracker.OnBarClose(c)
		if !tracker.Ready() {
			continue
		}
		if tracker.BullishCross() {
			edges++
			seenEdge = true
			continue
		}
		if seenEdge && tracker.BullishLevel() {
			levelAfterEdge++
		}
	}

	if edges != 1 {
		t.Errorf("expected exactly 1 bullish crossover edge, got %d", edges)
	}
	if levelAfterEdge == 0 {
		t.Error("expected sustained bullish level after the edge")
	}
}

func TestCrossoverTracker_BearishSymmetric(t *testing.T) {
	closes := make([]float64, 0, 30)
	for i := 0; i < 12; i++ {
		closes = append(closes, 100.0)
	}
	for i := 0; i < 18; i++ {
		closes = append(closes, 100.0-float64(i+1)*2.0)
	}

	tracker := NewCrossoverTracker(3, 8)
	edges := 0
	for _, c := range closes {
		tracker.OnBarClose(c)
		if tracker.Ready() && tracker.BearishCross() {
			edges++
		}
	}
	if edges != 1 {
		t.Errorf("expected exactly 1 bearish crossover edge, got %d", edges)
	}
}
