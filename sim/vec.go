package sim

import "gonum.org/v1/gonum/spatial/r3"

// worldUp is the fixed up axis used by ground avoidance and rotation bases.
var worldUp = r3.Vec{Y: 1}

// unitOr returns the unit vector of v, or fallback when v is too short to
// carry a direction.
func unitOr(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return fallback
	}
	return r3.Scale(1/n, v)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
