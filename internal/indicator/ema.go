package indicator

// emaSeries computes the full EMA series for the given period.
// Index i is defined for i >= period-1: the value at period-1 is the SMA
// seed over the first period values, every later value follows the
// recursive update ema_t = v_t*α + ema_{t-1}*(1-α), α = 2/(period+1).
// Undefined leading entries are left as 0 and must not be read.
func emaSeries(values []float64, period int) ([]float64, bool) {
	if period <= 0 || len(values) < period {
		return nil, false
	}
	out := make([]float64, len(values))
	mult := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	for i := period; i < len(values); i++ {
		out[i] = values[i]*mult + out[i-1]*(1-mult)
	}
	return out, true
}

// emaLast returns the EMA of the final value in the series.
func emaLast(values []float64, period int) (float64, bool) {
	series, ok := emaSeries(values, period)
	if !ok {
		return 0, false
	}
	return series[len(series)-1], true
}

// EMAStream is the O(1) per-tick EMA updater.
//
// It maintains the EMA over closed bars plus a live value recomputed
// against the forming bar's evolving close on every tick, without
// history rescans. OnBarClose rolls current into previous so crossover
// detection compares across exactly one completed bar boundary.
type EMAStream struct {
	period int
	mult   float64

	count int
	sum   float64 // SMA seed accumulator

	closed     float64 // EMA as of the last closed bar
	prevClosed float64 // EMA one closed bar back
	live       float64 // EMA including the forming bar's current close
	hasLive    bool
}

// NewEMAStream creates a streaming EMA with the given period.
func NewEMAStream(period int) *EMAStream {
	return &EMAStream{
		period: period,
		mult:   2.0 / float64(period+1),
	}
}

// UpdateTick recomputes the live EMA against the forming bar's current
// close (rupees). O(1): only the last closed-bar EMA is consulted.
func (e *EMAStream) UpdateTick(close float64) {
	if e.count < e.period {
		e.hasLive = false
		return
	}
	e.live = close*e.mult + e.closed*(1-e.mult)
	e.hasLive = true
}

// OnBarClose folds the final close of the just-completed bar into the
// closed-bar EMA and rolls current into previous.
func (e *EMAStream) OnBarClose(close float64) {
	e.count++
	if e.count <= e.period {
		e.sum += close
		if e.count == e.period {
			e.prevClosed = 0
			e.closed = e.sum / float64(e.period)
		}
		return
	}
	e.prevClosed = e.closed
	e.closed = close*e.mult + e.closed*(1-e.mult)
}

// Current returns the EMA as of the last closed bar.
// ok is false until the seed period has filled.
func (e *EMAStream) Current() (float64, bool) {
	return e.closed, e.count >= e.period
}

// Previous returns the EMA one closed bar back.
// ok is false until period+1 bars have closed.
func (e *EMAStream) Previous() (float64, bool) {
	return e.prevClosed, e.count > e.period
}

// Live returns the tick-updated EMA including the forming bar.
// ok is false before warm-up or before the first tick of a bar.
func (e *EMAStream) Live() (float64, bool) {
	return e.live, e.hasLive
}

// CrossoverTracker pairs a fast and slow EMAStream and detects
// edge-triggered crossovers at bar boundaries. The edge condition is
// previous-bar relation flipping, not the level relation: "fast above
// slow" alone is true half the time and is reported separately.
type CrossoverTracker struct {
	Fast *EMAStream
	Slow *EMAStream
}

// NewCrossoverTracker creates a tracker for the given fast/slow periods.
func NewCrossoverTracker(fastPeriod, slowPeriod int) *CrossoverTracker {
	return &CrossoverTracker{
		Fast: NewEMAStream(fastPeriod),
		Slow: NewEMAStream(slowPeriod),
	}
}

// UpdateTick feeds the forming bar's current close to both streams.
func (c *CrossoverTracker) UpdateTick(close float64) {
	c.Fast.UpdateTick(close)
	c.Slow.UpdateTick(close)
}

// OnBarClose feeds the completed bar's close to both streams.
func (c *CrossoverTracker) OnBarClose(close float64) {
	c.Fast.OnBarClose(close)
	c.Slow.OnBarClose(close)
}

// BullishCross reports a fast-over-slow crossover at the last bar close:
// (prevFast <= prevSlow) && (curFast > curSlow).
func (c *CrossoverTracker) BullishCross() bool {
	pf, ok1 := c.Fast.Previous()
	ps, ok2 := c.Slow.Previous()
	cf, ok3 := c.Fast.Current()
	cs, ok4 := c.Slow.Current()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return pf <= ps && cf > cs
}

// BearishCross reports a fast-under-slow crossover at the last bar close.
func (c *CrossoverTracker) BearishCross() bool {
	pf, ok1 := c.Fast.Previous()
	ps, ok2 := c.Slow.Previous()
	cf, ok3 := c.Fast.Current()
	cs, ok4 := c.Slow.Current()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return pf >= ps && cf < cs
}

// BullishLevel reports the sustained level condition fast > slow
// (distinct from the crossover edge).
func (c *CrossoverTracker) BullishLevel() bool {
	cf, ok1 := c.Fast.Current()
	cs, ok2 := c.Slow.Current()
	return ok1 && ok2 && cf > cs
}

// BearishLevel reports the sustained level condition fast < slow.
func (c *CrossoverTracker) BearishLevel() bool {
	cf, ok1 := c.Fast.Current()
	cs, ok2 := c.Slow.Current()
	return ok1 && ok2 && cf < cs
}

// Ready reports whether both streams have completed warm-up for
// crossover detection (period+1 closed bars on the slow leg).
func (c *CrossoverTracker) Ready() bool {
	_, ok1 := c.Fast.Previous()
	_, ok2 := c.Slow.Previous()
	return ok1 && ok2
}
