package constraints

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var coneSamples = [][]float64{
	{3, 4, 10},    // interior
	{3, 4, 5},     // boundary
	{3, 4, 1},     // outside, projects to the boundary
	{3, 4, -10},   // inside the polar cone
	{0, 0, 0},     // apex
	{-1, 2, 0.5},  // outside
	{0.1, 0, 0.2}, // interior
}

func TestSOCProjectionIsIdempotent(t *testing.T) {
	for _, z := range coneSamples {
		p := Project(SecondOrderCone, z)
		pp := Project(SecondOrderCone, p)
		if !floats.EqualApprox(p, pp, 1e-12) {
			t.Errorf("projection of %v not idempotent: %v vs %v", z, p, pp)
		}
		if Violation(SecondOrderCone, p) > 1e-12 {
			t.Errorf("projection of %v left the cone: %v", z, p)
		}
	}
}

func TestMoreauDecomposition(t *testing.T) {
	for _, s := range []Sense{Equality, Inequality, SecondOrderCone} {
		for _, z := range coneSamples {
			p := Project(s, z)
			q := ProjectPolar(s, z)
			sum := make([]float64, len(z))
			floats.AddTo(sum, p, q)
			if !floats.EqualApprox(sum, z, 1e-12) {
				t.Errorf("%s: Π_K + Π_K° = %v, want %v", s, sum, z)
			}
			if math.Abs(floats.Dot(p, q)) > 1e-10 {
				t.Errorf("%s: projections of %v not orthogonal", s, z)
			}
		}
	}
}

func TestPolarJacobianMatchesFiniteDifference(t *testing.T) {
	// skip points on cone boundaries where the projection is not smooth
	points := [][]float64{{3, 4, 10}, {3, 4, 1}, {3, 4, -10}, {-1, 2, 0.5}, {1, -1, -0.3}}
	for _, s := range []Sense{Equality, Inequality, SecondOrderCone} {
		for _, z := range points {
			want := mat.NewDense(len(z), len(z), nil)
			fd.Jacobian(want, func(y, x []float64) {
				copy(y, ProjectPolar(s, x))
			}, z, &fd.JacobianSettings{Formula: fd.Central})

			got := PolarJacobian(s, z)
			if !mat.EqualApprox(got, want, 1e-6) {
				t.Errorf("%s at %v:\n got %v\nwant %v", s, z, mat.Formatted(got), mat.Formatted(want))
			}
		}
	}
}

func TestViolation(t *testing.T) {
	tests := []struct {
		name  string
		sense Sense
		c     []float64
		want  float64
	}{
		{"equality", Equality, []float64{0.5, -2}, 2},
		{"inequality satisfied", Inequality, []float64{-1, -3}, 0},
		{"inequality violated", Inequality, []float64{-1, 0.25}, 0.25},
		{"cone interior", SecondOrderCone, []float64{3, 4, 6}, 0},
		{"cone exterior", SecondOrderCone, []float64{3, 4, 0}, 5 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Violation(tt.sense, tt.c); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Violation = %f, want %f", got, tt.want)
			}
		})
	}
}
