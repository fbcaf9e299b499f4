package constraints

import (
	"fmt"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Norm bounds the Euclidean norm of a selected block: ‖z_sel‖₂ ≤ c. It emits
// [z_sel; c].
type Norm struct {
	n, m  int
	idx   []int
	bound float64
}

func NewNorm(n, m int, sel Selector, bound float64) (*Norm, error) {
	idx, err := ResolveSelector(sel, n, m)
	if err != nil {
		return nil, err
	}
	if bound < 0 {
		return nil, fmt.Errorf("constraints: norm bound must be non-negative, got %g", bound)
	}
	return &Norm{n: n, m: m, idx: idx, bound: bound}, nil
}

func (c *Norm) StateDim() int   { return c.n }
func (c *Norm) ControlDim() int { return c.m }
func (c *Norm) OutputDim() int  { return len(c.idx) + 1 }
func (c *Norm) Sense() Sense    { return SecondOrderCone }
func (c *Norm) Domain() Domain  { return domainOf(c.idx, c.n) }

func (c *Norm) Evaluate(x dynamo.State, u dynamo.Control) []float64 {
	z := stack(x, u, c.m)
	out := make([]float64, len(c.idx)+1)
	for i, j := range c.idx {
		out[i] = z[j]
	}
	out[len(c.idx)] = c.bound
	return out
}

func (c *Norm) Jacobian(x dynamo.State, u dynamo.Control) *mat.Dense {
	jac := mat.NewDense(len(c.idx)+1, c.n+c.m, nil)
	for i, j := range c.idx {
		jac.Set(i, j, 1)
	}
	return jac
}

// LinearSOC is the cone constraint ‖A z_sel‖₂ ≤ cᵀ z_sel on a selected block
// of z = (x, u). It emits [A z_sel; cᵀ z_sel] and has the constant Jacobian
// [A; cᵀ] placed at the selected columns.
type LinearSOC struct {
	n, m int
	idx  []int
	a    *mat.Dense
	c    []float64
	jac  *mat.Dense
}

func NewLinearSOC(n, m int, a *mat.Dense, c []float64, sel Selector) (*LinearSOC, error) {
	idx, err := ResolveSelector(sel, n, m)
	if err != nil {
		return nil, err
	}
	p, q := a.Dims()
	if err := dynamo.CheckDim("cone matrix columns", len(idx), q); err != nil {
		return nil, err
	}
	if err := dynamo.CheckDim("cone functional", len(idx), len(c)); err != nil {
		return nil, err
	}

	jac := mat.NewDense(p+1, n+m, nil)
	for col, j := range idx {
		for row := 0; row < p; row++ {
			jac.Set(row, j, a.At(row, col))
		}
		jac.Set(p, j, c[col])
	}
	return &LinearSOC{
		n: n, m: m, idx: idx,
		a:   mat.DenseCopyOf(a),
		c:   append([]float64(nil), c...),
		jac: jac,
	}, nil
}

func (c *LinearSOC) StateDim() int   { return c.n }
func (c *LinearSOC) ControlDim() int { return c.m }
func (c *LinearSOC) OutputDim() int  { r, _ := c.a.Dims(); return r + 1 }
func (c *LinearSOC) Sense() Sense    { return SecondOrderCone }
func (c *LinearSOC) Domain() Domain  { return domainOf(c.idx, c.n) }

func (c *LinearSOC) Evaluate(x dynamo.State, u dynamo.Control) []float64 {
	out := mat.NewVecDense(c.OutputDim(), nil)
	out.MulVec(c.jac, mat.NewVecDense(c.n+c.m, stack(x, u, c.m)))
	return out.RawVector().Data
}

func (c *LinearSOC) Jacobian(x dynamo.State, u dynamo.Control) *mat.Dense {
	return mat.DenseCopyOf(c.jac)
}
