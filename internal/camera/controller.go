package camera

import (
	"sync"
	"time"
)

// DefaultFlyDuration matches the map's station fly-to animation.
const DefaultFlyDuration = 1500 * time.Millisecond

// Controller owns the authoritative viewport. All methods are safe for
// concurrent use.
type Controller struct {
	mu          sync.Mutex
	vp          Viewport
	tol         Tolerance
	flyDuration time.Duration
	easing      string
	now         func() time.Time
	version     uint64
	subs        map[chan Viewport]struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTolerance sets the coalescing tolerance.
func WithTolerance(tol Tolerance) Option {
	return func(c *Controller) { c.tol = tol }
}

// WithFlyDuration sets the default fly-to duration.
func WithFlyDuration(d time.Duration) Option {
	return func(c *Controller) { c.flyDuration = d }
}

// WithEasing sets the default fly-to easing by name.
func WithEasing(name string) Option {
	return func(c *Controller) { c.easing = name }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController returns a controller positioned at initial.
func NewController(initial Viewport, opts ...Option) *Controller {
	c := &Controller{
		vp:          initial,
		tol:         DefaultTolerance,
		flyDuration: DefaultFlyDuration,
		easing:      EaseCubicInOut,
		now:         time.Now,
		subs:        make(map[chan Viewport]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Viewport returns the authoritative viewport. During a fly-to this is
// already the destination.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

// Version increments on every accepted change.
func (c *Controller) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Presented returns the viewport as it should be drawn at now, part way
// through any running transition.
func (c *Controller) Presented(now time.Time) Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presented(now)
}

func (c *Controller) presented(now time.Time) Viewport {
	t := c.vp.Transition
	if t.Done(now) {
		out := c.vp
		out.Transition = nil
		return out
	}
	return lerp(t.From, c.vp, t.Progress(now))
}

// Offer proposes a viewport sample from a user gesture. It returns false and
// changes nothing when the sample is within tolerance of the current
// viewport. An accepted sample cancels any running transition.
func (c *Controller) Offer(vp Viewport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.vp.Differs(vp, c.tol) {
		return false
	}
	vp.Transition = nil
	c.set(vp)
	return true
}

// FlyTo animates to the coordinate and zoom with the default duration and
// easing. It returns immediately.
func (c *Controller) FlyTo(lon, lat, zoom float64) {
	c.FlyToWith(lon, lat, zoom, c.flyDuration, c.easing)
}

// FlyToWith is FlyTo with an explicit duration and easing.
func (c *Controller) FlyToWith(lon, lat, zoom float64, d time.Duration, easing string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	from := c.presented(now)
	c.set(Viewport{
		Longitude: lon,
		Latitude:  lat,
		Zoom:      zoom,
		Bearing:   c.vp.Bearing,
		Pitch:     c.vp.Pitch,
		Transition: &Transition{
			Duration:     d,
			Easing:       easing,
			Interpolator: "fly-to",
			From:         from,
			Start:        now,
		},
	})
}

func (c *Controller) set(vp Viewport) {
	c.vp = vp
	c.version++
	for ch := range c.subs {
		select {
		case ch <- vp:
		default:
			// latest wins
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- vp:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives the latest viewport after each
// accepted change.
func (c *Controller) Subscribe() chan Viewport {
	ch := make(chan Viewport, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Removing an
// unknown channel is a no-op.
func (c *Controller) Unsubscribe(ch chan Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[ch]; ok {
		delete(c.subs, ch)
		close(ch)
	}
}
