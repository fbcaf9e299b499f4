package constraints

import (
	"fmt"
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Bound enforces elementwise limits lo ≤ (x, u) ≤ hi. Infinite limits emit
// no output.
type Bound struct {
	n, m  int
	rows  []int     // position in z
	signs []float64 // -1 for a lower bound, +1 for an upper bound
	lims  []float64
}

// NewBound builds the constraint from limits on x and u. Nil slices mean
// unbounded.
func NewBound(n, m int, xmin, xmax, umin, umax []float64) (*Bound, error) {
	lo := make([]float64, n+m)
	hi := make([]float64, n+m)
	for i := range lo {
		lo[i], hi[i] = math.Inf(-1), math.Inf(1)
	}
	for _, s := range []struct {
		name string
		v    []float64
		dst  []float64
	}{
		{"xmin", xmin, lo[:n]}, {"xmax", xmax, hi[:n]},
		{"umin", umin, lo[n:]}, {"umax", umax, hi[n:]},
	} {
		if s.v == nil {
			continue
		}
		if err := dynamo.CheckDim("bound "+s.name, len(s.dst), len(s.v)); err != nil {
			return nil, err
		}
		copy(s.dst, s.v)
	}

	b := &Bound{n: n, m: m}
	for i := range lo {
		if lo[i] > hi[i] {
			return nil, fmt.Errorf("constraints: bound %d has lower %g above upper %g", i, lo[i], hi[i])
		}
		if !math.IsInf(lo[i], 0) {
			b.rows, b.signs, b.lims = append(b.rows, i), append(b.signs, -1), append(b.lims, lo[i])
		}
		if !math.IsInf(hi[i], 0) {
			b.rows, b.signs, b.lims = append(b.rows, i), append(b.signs, 1), append(b.lims, hi[i])
		}
	}
	if len(b.rows) == 0 {
		return nil, fmt.Errorf("constraints: bound has no finite limits")
	}
	return b, nil
}

func (b *Bound) StateDim() int   { return b.n }
func (b *Bound) ControlDim() int { return b.m }
func (b *Bound) OutputDim() int  { return len(b.rows) }
func (b *Bound) Sense() Sense    { return Inequality }
func (b *Bound) Domain() Domain  { return domainOf(b.rows, b.n) }

func (b *Bound) Evaluate(x dynamo.State, u dynamo.Control) []float64 {
	z := stack(x, u, b.m)
	out := make([]float64, len(b.rows))
	for i, r := range b.rows {
		// lower: lo − z ≤ 0, upper: z − hi ≤ 0
		out[i] = b.signs[i] * (z[r] - b.lims[i])
	}
	return out
}

func (b *Bound) Jacobian(x dynamo.State, u dynamo.Control) *mat.Dense {
	jac := mat.NewDense(len(b.rows), b.n+b.m, nil)
	for i, r := range b.rows {
		jac.Set(i, r, b.signs[i])
	}
	return jac
}
