package camera

import "math"

// Easing maps linear progress in [0, 1] to eased progress in [0, 1].
type Easing func(t float64) float64

const (
	EaseLinear     = "linear"
	EaseCubicInOut = "cubic-in-out"
	EaseOutQuad    = "out-quad"
	EaseOutExpo    = "out-expo"
)

var easings = map[string]Easing{
	EaseLinear: func(t float64) float64 { return t },
	EaseCubicInOut: func(t float64) float64 {
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	},
	EaseOutQuad: func(t float64) float64 { return 1 - (1-t)*(1-t) },
	EaseOutExpo: func(t float64) float64 {
		if t >= 1 {
			return 1
		}
		return 1 - math.Pow(2, -10*t)
	},
}

// LookupEasing returns the named easing function, or linear easing for an
// unknown name.
func LookupEasing(name string) Easing {
	if e, ok := easings[name]; ok {
		return e
	}
	return easings[EaseLinear]
}
