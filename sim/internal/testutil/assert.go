// Package testutil provides shared test infrastructure for the flock
// simulator: numeric assertion helpers used across sim/ and sim/buf/ test
// packages.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertVecEqual compares two vectors with absolute per-component tolerance.
func AssertVecEqual(t *testing.T, name string, want, got r3.Vec, tol float64) {
	t.Helper()
	if math.Abs(want.X-got.X) > tol || math.Abs(want.Y-got.Y) > tol || math.Abs(want.Z-got.Z) > tol {
		t.Errorf("%s: got %v, want %v (tol=%v)", name, got, want, tol)
	}
}

// AssertUnit fails unless v has unit length within tol.
func AssertUnit(t *testing.T, name string, v r3.Vec, tol float64) {
	t.Helper()
	if n := r3.Norm(v); math.Abs(n-1) > tol {
		t.Errorf("%s: norm %v, want 1 (tol=%v): %v", name, n, tol, v)
	}
}
