package camera

import "time"

// DefaultFrameInterval is one frame at 60 Hz.
const DefaultFrameInterval = time.Second / 60

// FrameGate lets at most one viewport sample through per frame interval.
// Samples arriving inside an interval replace each other; the last one is
// released by Flush once the interval has passed. A FrameGate is not safe
// for concurrent use.
type FrameGate struct {
	interval time.Duration
	last     time.Time
	pending  *Viewport
}

// NewFrameGate returns a gate for the given interval.
func NewFrameGate(interval time.Duration) *FrameGate {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameGate{interval: interval}
}

// Offer records a sample. It returns the sample and true when it may be
// applied now, otherwise it is held as pending.
func (g *FrameGate) Offer(vp Viewport, now time.Time) (Viewport, bool) {
	if g.last.IsZero() || now.Sub(g.last) >= g.interval {
		g.last = now
		g.pending = nil
		return vp, true
	}
	g.pending = &vp
	return Viewport{}, false
}

// Flush releases the pending sample if a full interval has passed since the
// last release.
func (g *FrameGate) Flush(now time.Time) (Viewport, bool) {
	if g.pending == nil || now.Sub(g.last) < g.interval {
		return Viewport{}, false
	}
	vp := *g.pending
	g.pending = nil
	g.last = now
	return vp, true
}

// Take releases the pending sample regardless of the interval. Readers that
// need the latest gesture without waiting for a frame use it.
func (g *FrameGate) Take(now time.Time) (Viewport, bool) {
	if g.pending == nil {
		return Viewport{}, false
	}
	vp := *g.pending
	g.pending = nil
	g.last = now
	return vp, true
}

// Pending reports whether a sample is waiting for Flush.
func (g *FrameGate) Pending() bool { return g.pending != nil }
