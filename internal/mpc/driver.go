// Package mpc runs a receding-horizon controller over a reference
// trajectory: every step applies the first control of the last solve,
// slides the tracked window by one knot and re-solves from a shifted warm
// start.
package mpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/problem"
	"github.com/san-kum/rocketland/internal/traj"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrHorizon = errors.New("mpc: horizon must lie in [2, reference length]")
	ErrDone    = errors.New("mpc: all iterations done")
)

// Config describes the tracking subproblem.
type Config struct {
	Horizon int
	// Iterations defaults to the reference length minus the horizon.
	Iterations int
	Q, R, Qf   *mat.SymDense
	// Solver options; the zero value selects altro.DefaultOptions.
	Solver altro.Options
}

// Step is the record of one MPC iteration.
type Step struct {
	Iteration     int
	Time          float64
	State         dynamo.State
	Control       dynamo.Control
	Status        altro.Status
	Iterations    int
	SolveTime     time.Duration
	Cost          float64
	Violation     float64
	TrackingError float64
}

type Option func(*Driver)

func WithLogger(l *zap.Logger) Option         { return func(d *Driver) { d.log = l } }
func WithClock(c clock.Clock) Option          { return func(d *Driver) { d.clock = c } }
func WithDisturbance(dist Disturbance) Option { return func(d *Driver) { d.dist = dist } }

// WithMetrics registers metrics that observe every applied state and control.
func WithMetrics(ms ...dynamo.Metric) Option {
	return func(d *Driver) { d.metrics = append(d.metrics, ms...) }
}

// Driver owns the tracking problem and its solver. It is not safe for
// concurrent use.
type Driver struct {
	model      models.Discrete
	refX       []dynamo.State
	refU       []dynamo.Control
	horizon    int
	iterations int

	problem *problem.Problem
	solver  *altro.Solver
	dropped []constraints.Entry

	dist    Disturbance
	clock   clock.Clock
	log     *zap.Logger
	metrics []dynamo.Metric

	x       dynamo.State
	t       float64
	offset  int
	started bool
	history []Step
}

// NewDriver builds the tracking subproblem over the first cfg.Horizon knots
// of ref. cons is indexed over the full reference; its ranges are clipped to
// the horizon and entries left empty are dropped.
func NewDriver(model models.Discrete, ref *traj.Trajectory, cons *constraints.List, cfg Config, opts ...Option) (*Driver, error) {
	H := cfg.Horizon
	if H < 2 || H > ref.Len() {
		return nil, fmt.Errorf("%w: horizon %d, reference %d", ErrHorizon, H, ref.Len())
	}
	d := &Driver{
		model:      model,
		refX:       ref.States(),
		refU:       ref.Controls(),
		horizon:    H,
		iterations: cfg.Iterations,
		dist:       None{},
		clock:      clock.New(),
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.Named("mpc")
	if d.iterations <= 0 {
		d.iterations = ref.Len() - H
	}

	xref := make([]dynamo.State, H)
	uref := make([]dynamo.Control, H-1)
	for k := 0; k < H; k++ {
		xref[k] = d.refState(k)
		if k < H-1 {
			uref[k] = d.refControl(k)
		}
	}
	obj, err := cost.NewTracking(cfg.Q, cfg.R, cfg.Qf, xref, uref)
	if err != nil {
		return nil, fmt.Errorf("mpc: tracking objective: %w", err)
	}

	if cons == nil {
		cons = constraints.NewList(model.StateDim(), model.ControlDim(), ref.Len())
	}
	clipped, dropped := cons.Clip(H)
	for _, e := range dropped {
		d.log.Info("constraint dropped from horizon",
			zap.Stringer("range", e.Range),
			zap.Stringer("sense", e.Constraint.Sense()),
			zap.Int("horizon", H))
	}
	d.dropped = dropped

	p, err := problem.New(model, obj, clipped, d.refState(0), ref.Dt(), ref.T0())
	if err != nil {
		return nil, err
	}
	if err := p.InitControls(uref); err != nil {
		return nil, err
	}
	if err := p.InitStates(xref); err != nil {
		return nil, err
	}

	solverOpts := cfg.Solver
	if solverOpts.MaxIterations == 0 {
		solverOpts = altro.DefaultOptions()
	}
	if solverOpts.Logger == nil {
		solverOpts.Logger = d.log
	}
	if solverOpts.Clock == nil {
		solverOpts.Clock = d.clock
	}
	solver, err := altro.New(p, solverOpts)
	if err != nil {
		return nil, err
	}

	d.problem, d.solver = p, solver
	d.x = d.refState(0)
	d.t = ref.T0()
	return d, nil
}

func (d *Driver) Problem() *problem.Problem    { return d.problem }
func (d *Driver) Solver() *altro.Solver        { return d.solver }
func (d *Driver) Dropped() []constraints.Entry { return d.dropped }
func (d *Driver) Iterations() int              { return d.iterations }
func (d *Driver) State() dynamo.State          { return d.x.Clone() }
func (d *Driver) Time() float64                { return d.t }
func (d *Driver) Offset() int                  { return d.offset }

func (d *Driver) History() []Step {
	return append([]Step(nil), d.history...)
}

// Done reports whether every iteration has run.
func (d *Driver) Done() bool { return len(d.history) >= d.iterations }

// Start runs the initial solve from the first reference state. Step calls it
// when needed.
func (d *Driver) Start(ctx context.Context) (altro.Stats, error) {
	stats, err := d.solver.Solve(ctx)
	if err != nil {
		return stats, err
	}
	d.started = true
	d.log.Debug("initial solve",
		zap.Stringer("status", stats.Status),
		zap.Int("iterations", stats.Iterations))
	return stats, nil
}

// Step advances the closed loop by one time step and re-solves.
func (d *Driver) Step(ctx context.Context) (Step, error) {
	if d.Done() {
		return Step{}, ErrDone
	}
	if !d.started {
		if _, err := d.Start(ctx); err != nil {
			return Step{}, err
		}
	}
	tr := d.problem.Trajectory()
	dt := tr.Dt()

	d.t += dt
	u := tr.Control(0)
	d.x = d.dist.Perturb(d.model.Step(d.x, u, dt))
	if !d.x.IsValid() {
		return Step{}, dynamo.SimError{Time: d.t, Step: len(d.history), Message: dynamo.ErrInvalidState.Error()}
	}
	for _, m := range d.metrics {
		m.Observe(d.x, u, d.t)
	}

	d.offset++
	obj := d.problem.Objective()
	for k := 0; k < d.horizon; k++ {
		obj.SetReference(k, d.refState(d.offset+k), d.refControl(d.offset+k))
	}

	tr.Shift()
	d.problem.SetT0(d.t)
	if err := d.problem.SetInitialState(d.x); err != nil {
		return Step{}, err
	}
	d.solver.ShiftDuals()

	start := d.clock.Now()
	stats, err := d.solver.Solve(ctx)
	if err != nil {
		return Step{}, err
	}
	step := Step{
		Iteration:     len(d.history),
		Time:          d.t,
		State:         d.x.Clone(),
		Control:       u,
		Status:        stats.Status,
		Iterations:    stats.Iterations,
		SolveTime:     d.clock.Since(start),
		Cost:          stats.Cost,
		Violation:     stats.Violation,
		TrackingError: d.x.Sub(d.refState(d.offset)).Norm(),
	}
	d.history = append(d.history, step)

	d.log.Debug("mpc step",
		zap.Int("iteration", step.Iteration),
		zap.Float64("time", step.Time),
		zap.Stringer("status", step.Status),
		zap.Int("solver_iterations", step.Iterations),
		zap.Float64("tracking_error", step.TrackingError),
		zap.Duration("solve_time", step.SolveTime))
	return step, nil
}

// Run steps until every iteration is done or ctx is cancelled.
func (d *Driver) Run(ctx context.Context) ([]Step, error) {
	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return d.History(), err
		}
		if _, err := d.Step(ctx); err != nil {
			return d.History(), err
		}
	}
	return d.History(), nil
}

// refState clamps k to the reference.
func (d *Driver) refState(k int) dynamo.State {
	return d.refX[min(k, len(d.refX)-1)].Clone()
}

func (d *Driver) refControl(k int) dynamo.Control {
	return d.refU[min(k, len(d.refU)-1)].Clone()
}
