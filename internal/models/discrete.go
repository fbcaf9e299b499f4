package models

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Discrete is a discrete-time transition x' = f(x, u, dt) with its
// Jacobians. Implementations must be pure functions of their inputs.
type Discrete interface {
	StateDim() int
	ControlDim() int
	Step(x dynamo.State, u dynamo.Control, dt float64) dynamo.State
	// Jacobian returns ∂f/∂x (n×n) and ∂f/∂u (n×m).
	Jacobian(x dynamo.State, u dynamo.Control, dt float64) (A, B *mat.Dense)
}

// LinearAffine is x' = A x + B u + d for a fixed time step. The dt argument
// of Step and Jacobian is ignored.
type LinearAffine struct {
	A *mat.Dense
	B *mat.Dense
	D []float64
}

func NewLinearAffine(a, b *mat.Dense, d []float64) (*LinearAffine, error) {
	n, c := a.Dims()
	if err := dynamo.CheckDim("A columns", n, c); err != nil {
		return nil, err
	}
	br, _ := b.Dims()
	if err := dynamo.CheckDim("B rows", n, br); err != nil {
		return nil, err
	}
	if d == nil {
		d = make([]float64, n)
	}
	if err := dynamo.CheckDim("affine term", n, len(d)); err != nil {
		return nil, err
	}
	return &LinearAffine{A: a, B: b, D: d}, nil
}

func (l *LinearAffine) StateDim() int {
	n, _ := l.A.Dims()
	return n
}

func (l *LinearAffine) ControlDim() int {
	_, m := l.B.Dims()
	return m
}

func (l *LinearAffine) Step(x dynamo.State, u dynamo.Control, dt float64) dynamo.State {
	n := l.StateDim()
	next := mat.NewVecDense(n, nil)
	next.MulVec(l.A, mat.NewVecDense(len(x), x.Clone()))
	if len(u) > 0 {
		bu := mat.NewVecDense(n, nil)
		bu.MulVec(l.B, mat.NewVecDense(len(u), u.Clone()))
		next.AddVec(next, bu)
	}
	out := make(dynamo.State, n)
	for i := range out {
		out[i] = next.AtVec(i) + l.D[i]
	}
	return out
}

func (l *LinearAffine) Jacobian(x dynamo.State, u dynamo.Control, dt float64) (*mat.Dense, *mat.Dense) {
	return mat.DenseCopyOf(l.A), mat.DenseCopyOf(l.B)
}
