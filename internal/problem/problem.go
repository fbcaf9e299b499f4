// Package problem bundles a discrete model, an objective and a constraint
// list into a fixed-horizon trajectory optimization problem.
package problem

import (
	"errors"
	"fmt"

	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/traj"
	"go.uber.org/multierr"
)

var ErrInvalidHorizon = errors.New("problem: invalid horizon")

// Problem owns the trajectory being optimized. The MPC loop mutates the time
// origin, the initial state, the tracked reference and the warm-start
// trajectory between solves.
type Problem struct {
	model       models.Discrete
	objective   *cost.Objective
	constraints *constraints.List
	x0          dynamo.State
	traj        *traj.Trajectory
}

// New validates every dimension before anything is allocated and reports all
// mismatches at once. The trajectory starts at x0 with zero controls; use
// [Problem.InitControls] or [Problem.InitStates] to warm start it.
func New(model models.Discrete, obj *cost.Objective, cons *constraints.List, x0 dynamo.State, dt, t0 float64) (*Problem, error) {
	if model == nil || obj == nil {
		return nil, fmt.Errorf("problem: model and objective are required")
	}
	n, m := model.StateDim(), model.ControlDim()
	N := obj.Len()
	if N < 2 {
		return nil, fmt.Errorf("%w: objective has %d knots", ErrInvalidHorizon, N)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("%w: time step %g", ErrInvalidHorizon, dt)
	}
	if cons == nil {
		cons = constraints.NewList(n, m, N)
	}

	err := multierr.Combine(
		dynamo.CheckDim("initial state", n, len(x0)),
		dynamo.CheckDim("objective state", n, obj.StateDim()),
		dynamo.CheckDim("objective control", m, obj.ControlDim()),
		dynamo.CheckDim("constraint state", n, cons.StateDim()),
		dynamo.CheckDim("constraint control", m, cons.ControlDim()),
		dynamo.CheckDim("constraint knots", N, cons.Knots()),
	)
	if err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	if !x0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}

	tr, err := traj.New(n, m, N, dt, t0)
	if err != nil {
		return nil, err
	}
	if err := tr.SetState(0, x0); err != nil {
		return nil, err
	}
	return &Problem{
		model:       model,
		objective:   obj,
		constraints: cons,
		x0:          x0.Clone(),
		traj:        tr,
	}, nil
}

func (p *Problem) Model() models.Discrete         { return p.model }
func (p *Problem) Objective() *cost.Objective     { return p.objective }
func (p *Problem) Constraints() *constraints.List { return p.constraints }
func (p *Problem) Trajectory() *traj.Trajectory   { return p.traj }
func (p *Problem) InitialState() dynamo.State     { return p.x0.Clone() }
func (p *Problem) Horizon() int                   { return p.traj.Len() }
func (p *Problem) StateDim() int                  { return p.model.StateDim() }
func (p *Problem) ControlDim() int                { return p.model.ControlDim() }
func (p *Problem) Dt() float64                    { return p.traj.Dt() }
func (p *Problem) T0() float64                    { return p.traj.T0() }

// SetInitialState replaces x0 and the first state of the trajectory.
func (p *Problem) SetInitialState(x0 dynamo.State) error {
	if err := dynamo.CheckDim("initial state", p.StateDim(), len(x0)); err != nil {
		return err
	}
	if !x0.IsValid() {
		return dynamo.ErrInvalidState
	}
	p.x0 = x0.Clone()
	return p.traj.SetState(0, x0)
}

// SetT0 moves the time origin of the trajectory.
func (p *Problem) SetT0(t0 float64) { p.traj.SetTimes(t0) }

// InitControls copies a control guess into the trajectory. A single control
// is applied at every stage.
func (p *Problem) InitControls(us []dynamo.Control) error {
	N := p.Horizon()
	if len(us) != 1 && len(us) != N-1 && len(us) != N {
		return fmt.Errorf("problem: %d controls for %d knots", len(us), N)
	}
	var errs error
	for k := 0; k < N-1; k++ {
		u := us[0]
		if len(us) > 1 {
			u = us[k]
		}
		errs = multierr.Append(errs, p.traj.SetControl(k, u))
	}
	return errs
}

// InitStates copies a state guess into knots 1..N-1. The first state always
// stays x0.
func (p *Problem) InitStates(xs []dynamo.State) error {
	N := p.Horizon()
	if len(xs) != N {
		return fmt.Errorf("problem: %d states for %d knots", len(xs), N)
	}
	var errs error
	for k := 1; k < N; k++ {
		errs = multierr.Append(errs, p.traj.SetState(k, xs[k]))
	}
	return errs
}

// Rollout simulates the model from x0 under the current controls and writes
// the resulting states into the trajectory.
func (p *Problem) Rollout() {
	N := p.Horizon()
	x := p.x0.Clone()
	_ = p.traj.SetState(0, x)
	for k := 0; k < N-1; k++ {
		x = p.model.Step(x, p.traj.Control(k), p.traj.Knot(k).Dt())
		_ = p.traj.SetState(k+1, x)
	}
}

// Cost evaluates the objective on the current trajectory.
func (p *Problem) Cost() float64 {
	return p.objective.Total(p.traj.States(), p.traj.Controls())
}

// MaxViolation evaluates the constraints on the current trajectory.
func (p *Problem) MaxViolation() float64 {
	return p.constraints.MaxViolation(p.traj.States(), p.traj.Controls())
}
