package constraints

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Goal pins the state to a target: x − x_goal = 0.
type Goal struct {
	xf dynamo.State
	m  int
}

func NewGoal(xf dynamo.State, m int) *Goal {
	return &Goal{xf: xf.Clone(), m: m}
}

func (g *Goal) StateDim() int   { return len(g.xf) }
func (g *Goal) ControlDim() int { return g.m }
func (g *Goal) OutputDim() int  { return len(g.xf) }
func (g *Goal) Sense() Sense    { return Equality }
func (g *Goal) Domain() Domain  { return StateOnly }

func (g *Goal) Evaluate(x dynamo.State, u dynamo.Control) []float64 {
	return x.Sub(g.xf)
}

func (g *Goal) Jacobian(x dynamo.State, u dynamo.Control) *mat.Dense {
	n := len(g.xf)
	jac := mat.NewDense(n, n+g.m, nil)
	for i := 0; i < n; i++ {
		jac.Set(i, i, 1)
	}
	return jac
}
