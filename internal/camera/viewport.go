// Package camera owns the map viewport: the authoritative camera state,
// animated fly-to transitions layered on top of it, and the coalescing and
// per-frame throttling of viewport samples coming from user gestures.
package camera

import (
	"math"
	"time"
)

// Viewport is the map camera.
type Viewport struct {
	Longitude  float64     `json:"longitude"`
	Latitude   float64     `json:"latitude"`
	Zoom       float64     `json:"zoom"`
	Bearing    float64     `json:"bearing"`
	Pitch      float64     `json:"pitch"`
	Transition *Transition `json:"transition,omitempty"`
}

// EffectiveZoom is the zoom truncated to the integer level used for index
// queries.
func (v Viewport) EffectiveZoom() int {
	return int(math.Floor(v.Zoom))
}

// Tolerance bounds the change below which two viewports are considered the
// same.
type Tolerance struct {
	Degrees float64 `json:"degrees" yaml:"degrees"`
	Zoom    float64 `json:"zoom" yaml:"zoom"`
}

// DefaultTolerance is a ten-thousandth of a degree and a thousandth of a
// zoom level.
var DefaultTolerance = Tolerance{Degrees: 1e-4, Zoom: 1e-3}

// Differs reports whether o is materially different from v.
func (v Viewport) Differs(o Viewport, tol Tolerance) bool {
	return math.Abs(v.Longitude-o.Longitude) > tol.Degrees ||
		math.Abs(v.Latitude-o.Latitude) > tol.Degrees ||
		math.Abs(v.Bearing-o.Bearing) > tol.Degrees ||
		math.Abs(v.Pitch-o.Pitch) > tol.Degrees ||
		math.Abs(v.Zoom-o.Zoom) > tol.Zoom
}

// Transition describes an in-flight animation towards the viewport that
// carries it.
type Transition struct {
	Duration     time.Duration `json:"duration"`
	Easing       string        `json:"easing"`
	Interpolator string        `json:"interpolator"`
	From         Viewport      `json:"-"`
	Start        time.Time     `json:"start"`
}

// Progress returns the eased completion of t at now, in [0, 1].
func (t *Transition) Progress(now time.Time) float64 {
	if t == nil || t.Duration <= 0 {
		return 1
	}
	elapsed := now.Sub(t.Start)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= t.Duration:
		return 1
	}
	return LookupEasing(t.Easing)(float64(elapsed) / float64(t.Duration))
}

// Done reports whether t has finished at now.
func (t *Transition) Done(now time.Time) bool {
	return t == nil || !now.Before(t.Start.Add(t.Duration))
}

// lerp interpolates from a to b linearly in all components.
func lerp(a, b Viewport, p float64) Viewport {
	mix := func(x, y float64) float64 { return x + (y-x)*p }
	return Viewport{
		Longitude: mix(a.Longitude, b.Longitude),
		Latitude:  mix(a.Latitude, b.Latitude),
		Zoom:      mix(a.Zoom, b.Zoom),
		Bearing:   mix(a.Bearing, b.Bearing),
		Pitch:     mix(a.Pitch, b.Pitch),
	}
}
