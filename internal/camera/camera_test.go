package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nz = Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3}

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestEffectiveZoom(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{0, 0},
		{5.3, 5},
		{5.999, 5},
		{6, 6},
		{16.2, 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Viewport{Zoom: tt.zoom}.EffectiveZoom(), "zoom %v", tt.zoom)
	}
}

func TestDiffers(t *testing.T) {
	tests := []struct {
		name string
		next Viewport
		want bool
	}{
		{"identical", nz, false},
		{"sub tolerance pan", Viewport{Longitude: 172.00005, Latitude: -41, Zoom: 5.3}, false},
		{"sub tolerance zoom", Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3005}, false},
		{"pan", Viewport{Longitude: 172.01, Latitude: -41, Zoom: 5.3}, true},
		{"zoom", Viewport{Longitude: 172, Latitude: -41, Zoom: 5.31}, true},
		{"bearing", Viewport{Longitude: 172, Latitude: -41, Zoom: 5.3, Bearing: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nz.Differs(tt.next, DefaultTolerance))
		})
	}
}

func TestOfferCoalesces(t *testing.T) {
	c := NewController(nz)
	assert.False(t, c.Offer(Viewport{Longitude: 172.00001, Latitude: -41, Zoom: 5.3}))
	assert.Equal(t, uint64(0), c.Version())

	assert.True(t, c.Offer(Viewport{Longitude: 173, Latitude: -41, Zoom: 5.3}))
	assert.Equal(t, uint64(1), c.Version())
	assert.Equal(t, 173.0, c.Viewport().Longitude)
}

func TestFlyToIsAuthoritativeImmediately(t *testing.T) {
	clock := newClock()
	c := NewController(nz, WithClock(clock.now))

	c.FlyTo(174.77, -41.29, 10)

	vp := c.Viewport()
	assert.Equal(t, 174.77, vp.Longitude)
	assert.Equal(t, 10.0, vp.Zoom)
	require.NotNil(t, vp.Transition)
	assert.Equal(t, DefaultFlyDuration, vp.Transition.Duration)
	assert.Equal(t, EaseCubicInOut, vp.Transition.Easing)
	assert.Equal(t, uint64(1), c.Version())

	start := c.Presented(clock.now())
	assert.Equal(t, 172.0, start.Longitude)
	assert.Equal(t, 5.3, start.Zoom)

	clock.advance(750 * time.Millisecond)
	mid := c.Presented(clock.now())
	assert.InDelta(t, (5.3+10)/2, mid.Zoom, 1e-9)

	clock.advance(time.Second)
	end := c.Presented(clock.now())
	assert.Equal(t, 10.0, end.Zoom)
	assert.Nil(t, end.Transition)
}

func TestOfferCancelsTransition(t *testing.T) {
	clock := newClock()
	c := NewController(nz, WithClock(clock.now))
	c.FlyTo(175, -40, 8)
	require.True(t, c.Offer(Viewport{Longitude: 170, Latitude: -44, Zoom: 6}))
	assert.Nil(t, c.Viewport().Transition)
	assert.Equal(t, 170.0, c.Presented(clock.now()).Longitude)
}

func TestSubscribeLatestWins(t *testing.T) {
	c := NewController(nz)
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	c.Offer(Viewport{Longitude: 100})
	c.Offer(Viewport{Longitude: 110})
	c.FlyTo(120, 0, 3)

	got := <-ch
	assert.Equal(t, 120.0, got.Longitude)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second value %v", extra)
	default:
	}
}

func TestUnsubscribe(t *testing.T) {
	c := NewController(nz)
	ch := c.Subscribe()

	c.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { c.Unsubscribe(ch) })
	assert.NotPanics(t, func() { c.Unsubscribe(make(chan Viewport, 1)) })
	assert.True(t, c.Offer(Viewport{Longitude: 100}), "no subscribers left to feed")
}

func TestEasing(t *testing.T) {
	for _, name := range []string{EaseLinear, EaseCubicInOut, EaseOutQuad, EaseOutExpo} {
		t.Run(name, func(t *testing.T) {
			e := LookupEasing(name)
			assert.InDelta(t, 0, e(0), 1e-9)
			assert.InDelta(t, 1, e(1), 1e-9)
			assert.LessOrEqual(t, e(0.25), e(0.75))
		})
	}
	assert.Equal(t, 0.3, LookupEasing("bogus")(0.3))
}

func TestFrameGate(t *testing.T) {
	clock := newClock()
	g := NewFrameGate(DefaultFrameInterval)

	_, ok := g.Offer(Viewport{Zoom: 1}, clock.now())
	assert.True(t, ok, "first sample passes")

	clock.advance(time.Millisecond)
	_, ok = g.Offer(Viewport{Zoom: 2}, clock.now())
	assert.False(t, ok)
	_, ok = g.Offer(Viewport{Zoom: 3}, clock.now())
	assert.False(t, ok)
	assert.True(t, g.Pending())

	_, ok = g.Flush(clock.now())
	assert.False(t, ok, "flush waits for the frame to end")

	clock.advance(DefaultFrameInterval)
	vp, ok := g.Flush(clock.now())
	require.True(t, ok)
	assert.Equal(t, 3.0, vp.Zoom, "latest sample wins")
	assert.False(t, g.Pending())

	_, ok = g.Flush(clock.now().Add(time.Hour))
	assert.False(t, ok)
}

func TestFrameGateTake(t *testing.T) {
	clock := newClock()
	g := NewFrameGate(DefaultFrameInterval)

	_, ok := g.Take(clock.now())
	assert.False(t, ok, "nothing pending")

	g.Offer(Viewport{Zoom: 1}, clock.now())
	clock.advance(time.Millisecond)
	g.Offer(Viewport{Zoom: 2}, clock.now())

	vp, ok := g.Take(clock.now())
	require.True(t, ok, "take ignores the frame interval")
	assert.Equal(t, 2.0, vp.Zoom)
	assert.False(t, g.Pending())

	_, ok = g.Offer(Viewport{Zoom: 3}, clock.now())
	assert.False(t, ok, "take starts a new frame")
}
