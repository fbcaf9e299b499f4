package models

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Discretized turns a continuous system into a Discrete model by holding the
// control over one integrator step. Jacobians come from central finite
// differences over the stacked vector (x, u).
type Discretized struct {
	sys   dynamo.System
	integ dynamo.Integrator
}

func NewDiscretized(sys dynamo.System, integ dynamo.Integrator) *Discretized {
	return &Discretized{sys: sys, integ: integ}
}

func (d *Discretized) StateDim() int   { return d.sys.StateDim() }
func (d *Discretized) ControlDim() int { return d.sys.ControlDim() }

// System returns the wrapped continuous model.
func (d *Discretized) System() dynamo.System { return d.sys }

func (d *Discretized) Step(x dynamo.State, u dynamo.Control, dt float64) dynamo.State {
	return d.integ.Step(d.sys, x, u, 0, dt)
}

func (d *Discretized) Jacobian(x dynamo.State, u dynamo.Control, dt float64) (*mat.Dense, *mat.Dense) {
	n, m := len(x), len(u)
	z := make([]float64, n+m)
	copy(z, x)
	copy(z[n:], u)

	jac := mat.NewDense(n, n+m, nil)
	fd.Jacobian(jac, func(y, z []float64) {
		copy(y, d.Step(dynamo.State(z[:n]), dynamo.Control(z[n:]), dt))
	}, z, &fd.JacobianSettings{Formula: fd.Central})

	a := mat.DenseCopyOf(jac.Slice(0, n, 0, n))
	if m == 0 {
		return a, mat.NewDense(n, 1, nil)
	}
	b := mat.DenseCopyOf(jac.Slice(0, n, n, n+m))
	return a, b
}
