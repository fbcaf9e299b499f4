package constraints

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Domain tells which part of a knot point a constraint depends on.
type Domain int

const (
	StateOnly Domain = iota
	ControlOnly
	Stage
)

func (d Domain) String() string {
	switch d {
	case StateOnly:
		return "state"
	case ControlOnly:
		return "control"
	default:
		return "stage"
	}
}

// Constraint is a vector function of one knot point whose output must lie
// in the cone given by Sense.
type Constraint interface {
	StateDim() int
	ControlDim() int
	OutputDim() int
	Sense() Sense
	Domain() Domain
	Evaluate(x dynamo.State, u dynamo.Control) []float64
	// Jacobian returns the OutputDim×(n+m) derivative with respect to the
	// stacked vector (x, u).
	Jacobian(x dynamo.State, u dynamo.Control) *mat.Dense
}

// stack concatenates x and u, tolerating a nil control.
func stack(x dynamo.State, u dynamo.Control, m int) []float64 {
	z := make([]float64, len(x)+m)
	copy(z, x)
	copy(z[len(x):], u)
	return z
}
