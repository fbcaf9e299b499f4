package constraints

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sense is the cone a constraint output must lie in.
type Sense int

const (
	// Equality requires c = 0.
	Equality Sense = iota
	// Inequality requires c ≤ 0 elementwise.
	Inequality
	// SecondOrderCone requires c = [v; s] with ‖v‖₂ ≤ s.
	SecondOrderCone
)

func (s Sense) String() string {
	switch s {
	case Equality:
		return "equality"
	case Inequality:
		return "inequality"
	case SecondOrderCone:
		return "second-order cone"
	default:
		return "unknown"
	}
}

// Project returns the Euclidean projection of z onto the cone K of sense s.
func Project(s Sense, z []float64) []float64 {
	out := make([]float64, len(z))
	switch s {
	case Equality:
	case Inequality:
		for i, v := range z {
			out[i] = math.Min(v, 0)
		}
	case SecondOrderCone:
		projectSOC(out, z)
	}
	return out
}

// ProjectPolar returns the projection of z onto the polar cone K°, the set
// the multipliers of a constraint of sense s live in.
func ProjectPolar(s Sense, z []float64) []float64 {
	switch s {
	case Equality:
		out := make([]float64, len(z))
		copy(out, z)
		return out
	case Inequality:
		out := make([]float64, len(z))
		for i, v := range z {
			out[i] = math.Max(v, 0)
		}
		return out
	default:
		neg := make([]float64, len(z))
		floats.ScaleTo(neg, -1, z)
		out := Project(SecondOrderCone, neg)
		floats.Scale(-1, out)
		return out
	}
}

// PolarJacobian returns ∂Π_{K°}(z)/∂z.
func PolarJacobian(s Sense, z []float64) *mat.Dense {
	p := len(z)
	jac := mat.NewDense(p, p, nil)
	switch s {
	case Equality:
		for i := 0; i < p; i++ {
			jac.Set(i, i, 1)
		}
	case Inequality:
		for i, v := range z {
			if v > 0 {
				jac.Set(i, i, 1)
			}
		}
	case SecondOrderCone:
		neg := make([]float64, p)
		floats.ScaleTo(neg, -1, z)
		socJacobian(jac, neg)
	}
	return jac
}

// Violation is the distance from c to the cone of sense s: the largest
// absolute residual for equality and inequality constraints and the
// Euclidean distance for a second-order cone.
func Violation(s Sense, c []float64) float64 {
	switch s {
	case Equality:
		return floats.Norm(c, math.Inf(1))
	case Inequality:
		v := 0.0
		for _, ci := range c {
			v = math.Max(v, ci)
		}
		return v
	default:
		proj := Project(SecondOrderCone, c)
		floats.Sub(proj, c)
		return floats.Norm(proj, 2)
	}
}

func splitSOC(z []float64) (v []float64, s, a float64) {
	p := len(z)
	v = z[:p-1]
	return v, z[p-1], floats.Norm(v, 2)
}

func projectSOC(dst, z []float64) {
	v, s, a := splitSOC(z)
	switch {
	case a <= s:
		copy(dst, z)
	case a <= -s:
		for i := range dst {
			dst[i] = 0
		}
	default:
		c := (a + s) / (2 * a)
		floats.ScaleTo(dst[:len(v)], c, v)
		dst[len(dst)-1] = c * a
	}
}

func socJacobian(dst *mat.Dense, z []float64) {
	v, s, a := splitSOC(z)
	p := len(z)
	switch {
	case a <= s:
		for i := 0; i < p; i++ {
			dst.Set(i, i, 1)
		}
	case a <= -s:
	default:
		c := (a + s) / (2 * a)
		k := s / (2 * a * a * a)
		for i := range v {
			for j := range v {
				val := -k * v[i] * v[j]
				if i == j {
					val += c
				}
				dst.Set(i, j, val)
			}
			dst.Set(i, p-1, v[i]/(2*a))
			dst.Set(p-1, i, v[i]/(2*a))
		}
		dst.Set(p-1, p-1, 0.5)
	}
}
