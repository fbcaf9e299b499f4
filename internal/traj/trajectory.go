package traj

import (
	"errors"
	"fmt"

	"github.com/san-kum/rocketland/internal/dynamo"
)

var ErrTooShort = errors.New("traj: trajectory needs at least two knot points")

// Trajectory is an indexed array of N knot points with a uniform time step.
type Trajectory struct {
	knots []KnotPoint
	n, m  int
}

// New returns a zero trajectory of n states, m controls and N knot points
// starting at t0.
func New(n, m, N int, dt, t0 float64) (*Trajectory, error) {
	if N < 2 {
		return nil, ErrTooShort
	}
	if dt <= 0 {
		return nil, fmt.Errorf("traj: dt must be positive, got %g", dt)
	}
	knots := make([]KnotPoint, N)
	for k := range knots {
		knots[k] = KnotPoint{
			x:  make(dynamo.State, n),
			u:  make(dynamo.Control, m),
			t:  t0 + float64(k)*dt,
			dt: dt,
		}
	}
	knots[N-1].dt = 0
	knots[N-1].terminal = true
	return &Trajectory{knots: knots, n: n, m: m}, nil
}

// FromSamples builds a trajectory from N states and N-1 (or N) controls.
func FromSamples(xs []dynamo.State, us []dynamo.Control, dt, t0 float64) (*Trajectory, error) {
	if len(xs) < 2 {
		return nil, ErrTooShort
	}
	if len(us) != len(xs)-1 && len(us) != len(xs) {
		return nil, fmt.Errorf("traj: %d states need %d controls, got %d: %w",
			len(xs), len(xs)-1, len(us), dynamo.ErrDimensionMismatch)
	}
	n := len(xs[0])
	m := 0
	if len(us) > 0 {
		m = len(us[0])
	}
	tr, err := New(n, m, len(xs), dt, t0)
	if err != nil {
		return nil, err
	}
	for k := range xs {
		if err := tr.knots[k].SetState(xs[k]); err != nil {
			return nil, fmt.Errorf("knot %d: %w", k, err)
		}
		if k < len(us) {
			if err := tr.knots[k].SetControl(us[k]); err != nil {
				return nil, fmt.Errorf("knot %d: %w", k, err)
			}
		}
	}
	return tr, nil
}

func (tr *Trajectory) Len() int        { return len(tr.knots) }
func (tr *Trajectory) StateDim() int   { return tr.n }
func (tr *Trajectory) ControlDim() int { return tr.m }

// Dt returns the uniform step of the trajectory.
func (tr *Trajectory) Dt() float64 { return tr.knots[0].dt }

// T0 returns the time of the first knot point.
func (tr *Trajectory) T0() float64 { return tr.knots[0].t }

// Knot returns a copy of knot point k.
func (tr *Trajectory) Knot(k int) KnotPoint {
	z := tr.knots[k]
	return KnotPoint{x: z.x.Clone(), u: z.u.Clone(), t: z.t, dt: z.dt, terminal: z.terminal}
}

func (tr *Trajectory) State(k int) dynamo.State     { return tr.knots[k].State() }
func (tr *Trajectory) Control(k int) dynamo.Control { return tr.knots[k].Control() }

func (tr *Trajectory) SetState(k int, x dynamo.State) error {
	return tr.knots[k].SetState(x)
}

func (tr *Trajectory) SetControl(k int, u dynamo.Control) error {
	return tr.knots[k].SetControl(u)
}

// States returns copies of all N states.
func (tr *Trajectory) States() []dynamo.State {
	xs := make([]dynamo.State, len(tr.knots))
	for k := range tr.knots {
		xs[k] = tr.knots[k].State()
	}
	return xs
}

// Controls returns copies of the N-1 non-terminal controls.
func (tr *Trajectory) Controls() []dynamo.Control {
	us := make([]dynamo.Control, len(tr.knots)-1)
	for k := range us {
		us[k] = tr.knots[k].Control()
	}
	return us
}

func (tr *Trajectory) Times() []float64 {
	ts := make([]float64, len(tr.knots))
	for k := range tr.knots {
		ts[k] = tr.knots[k].t
	}
	return ts
}

// SetTimes restamps every knot starting at t0.
func (tr *Trajectory) SetTimes(t0 float64) {
	dt := tr.Dt()
	for k := range tr.knots {
		tr.knots[k].t = t0 + float64(k)*dt
	}
}

// Shift moves every state and control one knot towards the front and
// advances all times by one step. The last state and the last non-terminal
// control are kept, so they appear twice after the shift.
func (tr *Trajectory) Shift() {
	N := len(tr.knots)
	for k := 0; k < N-1; k++ {
		copy(tr.knots[k].x, tr.knots[k+1].x)
		if k < N-2 {
			copy(tr.knots[k].u, tr.knots[k+1].u)
		}
	}
	tr.SetTimes(tr.T0() + tr.Dt())
}
