package traj

import "github.com/san-kum/rocketland/internal/dynamo"

// KnotPoint is one time sample of a trajectory. The control stored on the
// terminal knot is ignored by every consumer.
type KnotPoint struct {
	x        dynamo.State
	u        dynamo.Control
	t        float64
	dt       float64
	terminal bool
}

func NewKnotPoint(x dynamo.State, u dynamo.Control, t, dt float64) KnotPoint {
	return KnotPoint{x: x.Clone(), u: u.Clone(), t: t, dt: dt}
}

// State returns a copy of the knot's state.
func (z KnotPoint) State() dynamo.State { return z.x.Clone() }

// Control returns a copy of the knot's control.
func (z KnotPoint) Control() dynamo.Control { return z.u.Clone() }

func (z KnotPoint) Time() float64   { return z.t }
func (z KnotPoint) Dt() float64     { return z.dt }
func (z KnotPoint) Terminal() bool  { return z.terminal }
func (z KnotPoint) StateDim() int   { return len(z.x) }
func (z KnotPoint) ControlDim() int { return len(z.u) }

// SetState overwrites the state in place; x must have the knot's dimension.
func (z *KnotPoint) SetState(x dynamo.State) error {
	if err := dynamo.CheckDim("knot state", len(z.x), len(x)); err != nil {
		return err
	}
	copy(z.x, x)
	return nil
}

// SetControl overwrites the control in place; u must have the knot's dimension.
func (z *KnotPoint) SetControl(u dynamo.Control) error {
	if err := dynamo.CheckDim("knot control", len(z.u), len(u)); err != nil {
		return err
	}
	copy(z.u, u)
	return nil
}
