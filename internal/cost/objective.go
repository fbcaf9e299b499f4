package cost

import (
	"fmt"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Objective holds one cost per knot point; the last one is terminal.
type Objective struct {
	costs []*Quadratic
}

// NewLQR tracks the fixed goal (xf, uf) at every knot with a separate
// terminal weight Qf.
func NewLQR(q, r, qf *mat.SymDense, xf dynamo.State, uf dynamo.Control, N int) (*Objective, error) {
	if N < 2 {
		return nil, fmt.Errorf("cost: objective needs at least 2 knots, got %d", N)
	}
	xs := make([]dynamo.State, N)
	us := make([]dynamo.Control, N-1)
	for k := range xs {
		xs[k] = xf
	}
	for k := range us {
		us[k] = uf
	}
	return NewTracking(q, r, qf, xs, us)
}

// NewTracking follows a time-varying reference of N states and N-1 controls.
func NewTracking(q, r, qf *mat.SymDense, xref []dynamo.State, uref []dynamo.Control) (*Objective, error) {
	N := len(xref)
	if N < 2 {
		return nil, fmt.Errorf("cost: objective needs at least 2 knots, got %d", N)
	}
	if err := dynamo.CheckDim("control reference length", N-1, len(uref)); err != nil {
		return nil, err
	}
	obj := &Objective{costs: make([]*Quadratic, N)}
	for k := 0; k < N-1; k++ {
		c, err := NewQuadratic(q, r, xref[k], uref[k])
		if err != nil {
			return nil, fmt.Errorf("knot %d: %w", k, err)
		}
		obj.costs[k] = c
	}
	c, err := NewTerminal(qf, xref[N-1], r.SymmetricDim())
	if err != nil {
		return nil, err
	}
	obj.costs[N-1] = c
	return obj, nil
}

func (o *Objective) Len() int                   { return len(o.costs) }
func (o *Objective) Cost(k int) Function        { return o.costs[k] }
func (o *Objective) StateDim() int              { return o.costs[0].StateDim() }
func (o *Objective) ControlDim() int            { return o.costs[0].ControlDim() }
func (o *Objective) Quadratic(k int) *Quadratic { return o.costs[k] }

// SetReference moves the tracked point of knot k.
func (o *Objective) SetReference(k int, x dynamo.State, u dynamo.Control) {
	o.costs[k].SetReference(x, u)
}

// Total evaluates the objective over a trajectory of N states and N-1
// controls.
func (o *Objective) Total(xs []dynamo.State, us []dynamo.Control) float64 {
	J := 0.0
	N := len(o.costs)
	for k := 0; k < N-1; k++ {
		J += o.costs[k].Evaluate(xs[k], us[k])
	}
	return J + o.costs[N-1].Evaluate(xs[N-1], nil)
}
