package cost

import (
	"fmt"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Function is the cost attached to one knot point. Terminal costs ignore u.
type Function interface {
	StateDim() int
	ControlDim() int
	Terminal() bool
	Evaluate(x dynamo.State, u dynamo.Control) float64
	// Gradient returns ∂ℓ/∂x and ∂ℓ/∂u.
	Gradient(x dynamo.State, u dynamo.Control) (gx, gu []float64)
	// Hessian returns ∂²ℓ/∂x², ∂²ℓ/∂u² and ∂²ℓ/∂u∂x.
	Hessian(x dynamo.State, u dynamo.Control) (hxx, huu *mat.SymDense, hux *mat.Dense)
}

// Quadratic tracks a reference point:
//
//	ℓ(x, u) = ½(x−x̄)ᵀQ(x−x̄) + ½(u−ū)ᵀR(u−ū)
type Quadratic struct {
	Q, R     *mat.SymDense
	XRef     dynamo.State
	URef     dynamo.Control
	terminal bool
}

// NewQuadratic returns a stage cost. uref may be nil for a zero reference.
func NewQuadratic(q, r *mat.SymDense, xref dynamo.State, uref dynamo.Control) (*Quadratic, error) {
	n, m := q.SymmetricDim(), r.SymmetricDim()
	if err := dynamo.CheckDim("state reference", n, len(xref)); err != nil {
		return nil, err
	}
	if uref == nil {
		uref = make(dynamo.Control, m)
	}
	if err := dynamo.CheckDim("control reference", m, len(uref)); err != nil {
		return nil, err
	}
	return &Quadratic{Q: q, R: r, XRef: xref.Clone(), URef: uref.Clone()}, nil
}

// NewTerminal returns a terminal cost over the state only; m is the control
// dimension of the problem it belongs to.
func NewTerminal(qf *mat.SymDense, xref dynamo.State, m int) (*Quadratic, error) {
	if m < 1 {
		return nil, fmt.Errorf("terminal cost: control dimension must be positive, got %d", m)
	}
	c, err := NewQuadratic(qf, mat.NewSymDense(m, nil), xref, nil)
	if err != nil {
		return nil, fmt.Errorf("terminal cost: %w", err)
	}
	c.terminal = true
	return c, nil
}

func (c *Quadratic) StateDim() int   { return c.Q.SymmetricDim() }
func (c *Quadratic) ControlDim() int { return len(c.URef) }
func (c *Quadratic) Terminal() bool  { return c.terminal }

// SetReference replaces the tracked point. Nil leaves a component unchanged.
func (c *Quadratic) SetReference(xref dynamo.State, uref dynamo.Control) {
	if xref != nil {
		copy(c.XRef, xref)
	}
	if uref != nil && !c.terminal {
		copy(c.URef, uref)
	}
}

func (c *Quadratic) Evaluate(x dynamo.State, u dynamo.Control) float64 {
	dx := mat.NewVecDense(len(x), x.Sub(c.XRef))
	J := 0.5 * mat.Inner(dx, c.Q, dx)
	if !c.terminal && len(u) > 0 {
		du := mat.NewVecDense(len(u), dynamo.State(u).Sub(dynamo.State(c.URef)))
		J += 0.5 * mat.Inner(du, c.R, du)
	}
	return J
}

func (c *Quadratic) Gradient(x dynamo.State, u dynamo.Control) ([]float64, []float64) {
	gx := mat.NewVecDense(len(x), nil)
	gx.MulVec(c.Q, mat.NewVecDense(len(x), x.Sub(c.XRef)))
	gu := make([]float64, len(c.URef))
	if !c.terminal && len(u) > 0 {
		v := mat.NewVecDense(len(u), gu)
		v.MulVec(c.R, mat.NewVecDense(len(u), dynamo.State(u).Sub(dynamo.State(c.URef))))
	}
	return gx.RawVector().Data, gu
}

func (c *Quadratic) Hessian(x dynamo.State, u dynamo.Control) (*mat.SymDense, *mat.SymDense, *mat.Dense) {
	n, m := c.Q.SymmetricDim(), len(c.URef)
	hxx := mat.NewSymDense(n, nil)
	hxx.CopySym(c.Q)
	huu := mat.NewSymDense(m, nil)
	if !c.terminal {
		huu.CopySym(c.R)
	}
	return hxx, huu, mat.NewDense(m, n, nil)
}

// Diagonal builds a diagonal weight matrix.
func Diagonal(w ...float64) *mat.SymDense {
	s := mat.NewSymDense(len(w), nil)
	for i, v := range w {
		s.SetSym(i, i, v)
	}
	return s
}

// Scaled returns the identity of size n times w.
func Scaled(n int, w float64) *mat.SymDense {
	d := make([]float64, n)
	floats.AddConst(w, d)
	return Diagonal(d...)
}
