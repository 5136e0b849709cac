package sim

import "gonum.org/v1/gonum/spatial/r3"

// Transform is one agent's world matrix in column-major order, the layout
// instanced-rendering consumers upload directly. Columns are right, up,
// forward (each scaled uniformly) and position.
type Transform [16]float64

// composeTransform builds the world matrix for an agent at pos looking
// along forward, with a basis derived from the world up axis. forward must
// be unit length.
func composeTransform(pos, forward r3.Vec, scale float64) Transform {
	right := unitOr(r3.Cross(worldUp, forward), r3.Vec{X: 1})
	up := r3.Cross(forward, right)
	return Transform{
		right.X * scale, right.Y * scale, right.Z * scale, 0,
		up.X * scale, up.Y * scale, up.Z * scale, 0,
		forward.X * scale, forward.Y * scale, forward.Z * scale, 0,
		pos.X, pos.Y, pos.Z, 1,
	}
}

// Position returns the translation column.
func (t Transform) Position() r3.Vec {
	return r3.Vec{X: t[12], Y: t[13], Z: t[14]}
}

// Forward returns the renormalized forward basis column.
func (t Transform) Forward() r3.Vec {
	return unitOr(r3.Vec{X: t[8], Y: t[9], Z: t[10]}, r3.Vec{Z: 1})
}

// Scale recovers the uniform scale factor from the right basis column.
func (t Transform) Scale() float64 {
	return r3.Norm(r3.Vec{X: t[0], Y: t[1], Z: t[2]})
}
