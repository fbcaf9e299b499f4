package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/config"
	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/mpc"
	"github.com/san-kum/rocketland/internal/problem"
	"github.com/san-kum/rocketland/internal/traj"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// hoverer is implemented by models that know their equilibrium thrust.
type hoverer interface {
	HoverThrust() dynamo.Control
}

// Experiment builds and runs the landing scenario described by a config.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	log      *zap.Logger
	clock    clock.Clock

	sys   dynamo.System
	model models.Discrete
}

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option { return func(e *Experiment) { e.log = l } }
func WithClock(c clock.Clock) Option  { return func(e *Experiment) { e.clock = c } }
func WithRegistry(r *Registry) Option { return func(e *Experiment) { e.registry = r } }

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		log:      zap.NewNop(),
		clock:    clock.New(),
	}
	for _, o := range opts {
		o(e)
	}

	sys, err := e.registry.GetModel(cfg.Model, cfg.Rocket)
	if err != nil {
		return nil, err
	}
	model, err := e.registry.Discretize(sys, cfg.Integrator)
	if err != nil {
		return nil, err
	}
	e.sys, e.model = sys, model
	return e, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) System() dynamo.System  { return e.sys }
func (e *Experiment) Model() models.Discrete { return e.model }
func (e *Experiment) Registry() *Registry    { return e.registry }

// Constraints returns the landing constraints over N knots: the terminal
// goal, the ground, the thrust magnitude and angle, and the glide slope.
// State constraints start at knot 1 since x0 is fixed.
func (e *Experiment) Constraints(N int) (*constraints.List, error) {
	n, m := e.model.StateDim(), e.model.ControlDim()
	lim := e.cfg.Constraints
	list := constraints.NewList(n, m, N)

	var errs error
	add := func(c constraints.Constraint, err error, r constraints.Range) {
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		errs = multierr.Append(errs, list.Add(c, r))
	}

	add(constraints.NewGoal(make(dynamo.State, n), m), nil, constraints.Knots(N-1, N))

	if lim.Ground {
		floor := make([]float64, n)
		for i := range floor {
			floor[i] = math.Inf(-1)
		}
		floor[2] = 0
		ground, err := constraints.NewBound(n, m, floor, nil, nil, nil)
		add(ground, err, constraints.Knots(1, N))
	}
	if lim.MaxThrust > 0 {
		thrust, err := constraints.NewNorm(n, m, constraints.SelectControl(), lim.MaxThrust)
		add(thrust, err, constraints.Knots(0, N-1))
	}
	if lim.MaxAngle > 0 {
		lateral := mat.NewDense(2, m, nil)
		lateral.Set(0, 0, 1)
		lateral.Set(1, 1, 1)
		axis := make([]float64, m)
		axis[2] = math.Tan(lim.MaxAngle * math.Pi / 180)
		angle, err := constraints.NewLinearSOC(n, m, lateral, axis, constraints.SelectControl())
		add(angle, err, constraints.Knots(0, N-1))
	}
	if lim.GlideSlope > 0 && N > 2 {
		horizontal := mat.NewDense(2, n, nil)
		horizontal.Set(0, 0, 1)
		horizontal.Set(1, 1, 1)
		vertical := make([]float64, n)
		vertical[2] = math.Tan(lim.GlideSlope * math.Pi / 180)
		glide, err := constraints.NewLinearSOC(n, m, horizontal, vertical, constraints.SelectState())
		add(glide, err, constraints.Knots(1, N-1))
	}
	if errs != nil {
		return nil, errs
	}
	return list, nil
}

func (e *Experiment) hover() dynamo.Control {
	if h, ok := e.sys.(hoverer); ok {
		return h.HoverThrust()
	}
	return make(dynamo.Control, e.model.ControlDim())
}

// Problem builds the full-horizon landing problem, warm started at hover
// thrust.
func (e *Experiment) Problem() (*problem.Problem, error) {
	n, m, N := e.model.StateDim(), e.model.ControlDim(), e.cfg.Knots
	c := e.cfg.Cost
	obj, err := cost.NewLQR(cost.Scaled(n, c.State), cost.Scaled(m, c.Control), cost.Scaled(n, e.cfg.TerminalWeight()),
		make(dynamo.State, n), e.hover(), N)
	if err != nil {
		return nil, err
	}
	cons, err := e.Constraints(N)
	if err != nil {
		return nil, err
	}
	p, err := problem.New(e.model, obj, cons, e.cfg.GetInitState(), e.cfg.Dt, 0)
	if err != nil {
		return nil, err
	}
	if err := p.InitControls([]dynamo.Control{e.hover()}); err != nil {
		return nil, err
	}
	p.Rollout()
	return p, nil
}

func (e *Experiment) SolverOptions() altro.Options {
	s := e.cfg.Solver
	opts := altro.DefaultOptions()
	opts.CostTolerance = s.CostTolerance
	opts.GradientTolerance = s.GradientTolerance
	opts.ConstraintTolerance = s.ConstraintTolerance
	opts.PenaltyInitial = s.PenaltyInitial
	opts.PenaltyScaling = s.PenaltyScaling
	opts.PenaltyMax = s.PenaltyMax
	opts.MaxIterations = s.MaxIterations
	opts.MaxOuterIterations = s.MaxOuterIterations
	opts.Logger = e.log
	opts.Clock = e.clock
	return opts
}

// Result is a solved trajectory with its solver statistics.
type Result struct {
	dynamo.Result
	Stats altro.Stats
}

// Run solves the reference landing problem.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	p, err := e.Problem()
	if err != nil {
		return nil, err
	}
	solver, err := altro.New(p, e.SolverOptions())
	if err != nil {
		return nil, err
	}
	stats, err := solver.Solve(ctx)
	if err != nil {
		return nil, err
	}

	tr := p.Trajectory()
	res := &Result{
		Result: dynamo.Result{
			States:   tr.States(),
			Controls: tr.Controls(),
			Times:    tr.Times(),
			Metrics:  make(map[string]float64),
		},
		Stats: stats,
	}
	ms := e.registry.DefaultMetrics(e.sys)
	for k, x := range res.States {
		// the terminal knot has no control
		var u dynamo.Control
		if k < len(res.Controls) {
			u = res.Controls[k]
		}
		for _, m := range ms {
			m.Observe(x, u, res.Times[k])
		}
	}
	for _, m := range ms {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Metrics["cost"] = stats.Cost
	res.Metrics["violation"] = stats.Violation
	res.Metrics["iterations"] = float64(stats.Iterations)
	res.Metrics["outer_iterations"] = float64(stats.OuterIterations)
	res.Metrics["solve_time_ms"] = float64(stats.SolveTime.Microseconds()) / 1e3
	res.Metrics["terminal_error"] = res.States[len(res.States)-1].InfNorm()

	e.log.Info("reference solve",
		zap.Stringer("status", stats.Status),
		zap.Int("iterations", stats.Iterations),
		zap.Float64("cost", stats.Cost))
	return res, nil
}

// Driver builds the MPC driver that tracks ref, along with the metrics it
// feeds.
func (e *Experiment) Driver(ref *Result) (*mpc.Driver, []dynamo.Metric, error) {
	if ref == nil || len(ref.States) < 2 {
		return nil, nil, errors.New("experiment: empty reference")
	}
	tr, err := traj.FromSamples(ref.States, ref.Controls, e.cfg.Dt, ref.Times[0])
	if err != nil {
		return nil, nil, err
	}
	cons, err := e.Constraints(tr.Len())
	if err != nil {
		return nil, nil, err
	}

	mc := e.cfg.MPC
	q := cost.Diagonal(mc.StateWeights...)
	var qf mat.SymDense
	qf.ScaleSym(mc.TerminalScale, q)

	name := "none"
	if mc.Noise.Position > 0 || mc.Noise.Velocity > 0 {
		name = "uniform"
	}
	dist, err := e.registry.GetDisturbance(name, mc.Noise, e.cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	ms := e.registry.DefaultMetrics(e.sys)
	d, err := mpc.NewDriver(e.model, tr, cons, mpc.Config{
		Horizon:    mc.Horizon,
		Iterations: mc.Iterations,
		Q:          q,
		R:          cost.Scaled(e.model.ControlDim(), mc.ControlWeight),
		Qf:         &qf,
		Solver:     e.SolverOptions(),
	},
		mpc.WithLogger(e.log),
		mpc.WithClock(e.clock),
		mpc.WithDisturbance(dist),
		mpc.WithMetrics(ms...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("experiment: mpc: %w", err)
	}
	return d, ms, nil
}

// MPCResult is the closed-loop trajectory of an MPC run.
type MPCResult struct {
	dynamo.Result
	Steps []mpc.Step
}

// RunMPC tracks ref with the receding-horizon controller. Observers see
// every applied state and control.
func (e *Experiment) RunMPC(ctx context.Context, ref *Result, observers ...dynamo.Observer) (*MPCResult, error) {
	d, ms, err := e.Driver(ref)
	if err != nil {
		return nil, err
	}

	for !d.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step, err := d.Step(ctx)
		if err != nil {
			return nil, err
		}
		for _, o := range observers {
			o.OnStep(step.State, step.Control, step.Time)
		}
	}
	return Summarize(ref.States[0], ref.Times[0], d.History(), ms), nil
}

// Summarize turns the steps of an MPC run into a closed-loop result.
func Summarize(x0 dynamo.State, t0 float64, steps []mpc.Step, ms []dynamo.Metric) *MPCResult {
	res := &MPCResult{
		Result: dynamo.Result{
			States:  []dynamo.State{x0.Clone()},
			Times:   []float64{t0},
			Metrics: make(map[string]float64),
		},
		Steps: steps,
	}
	var solveMs, iters, worst float64
	failed := 0
	for _, s := range steps {
		res.States = append(res.States, s.State)
		res.Controls = append(res.Controls, s.Control)
		res.Times = append(res.Times, s.Time)
		solveMs += float64(s.SolveTime.Microseconds()) / 1e3
		iters += float64(s.Iterations)
		worst = math.Max(worst, s.TrackingError)
		if s.Status != altro.Succeeded {
			failed++
		}
	}
	for _, m := range ms {
		res.Metrics[m.Name()] = m.Value()
	}
	if n := float64(len(steps)); n > 0 {
		res.Metrics["mean_solve_ms"] = solveMs / n
		res.Metrics["mean_iterations"] = iters / n
	}
	res.Metrics["max_tracking_error"] = worst
	res.Metrics["failed_solves"] = float64(failed)
	return res
}
