// Package altro solves constrained trajectory optimization problems with an
// augmented Lagrangian wrapped around iterative LQR.
//
// The outer loop updates dual estimates λ ← Π_{K°}(λ + ρc) and grows the
// penalties ρ geometrically. The inner loop minimizes the augmented
// Lagrangian with a regularized Riccati backward pass and a forward rollout
// under a backtracking line search. Duals and penalties persist across
// Solve calls so that a re-solve starts warm; Reset clears them.
package altro

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/problem"
	"go.uber.org/zap"
)

// minExpectedDecrease is the predicted decrease below which the current
// iterate is taken as a stationary point of the inner problem.
const minExpectedDecrease = 1e-12

// Solver owns working copies of the trajectory and the multipliers of every
// constraint entry of its problem.
type Solver struct {
	problem *problem.Problem
	opts    Options
	log     *zap.Logger

	n, m, N int
	dt      float64

	xs, xc []dynamo.State
	us, uc []dynamo.Control
	duals  []*multipliers

	reg   float64
	stats Stats
}

func New(p *problem.Problem, opts Options) (*Solver, error) {
	if p == nil {
		return nil, errors.New("altro: nil problem")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("altro: invalid options: %w", err)
	}
	opts = opts.withDefaults()

	s := &Solver{
		problem: p,
		opts:    opts,
		log:     opts.Logger.Named("altro"),
		n:       p.StateDim(),
		m:       p.ControlDim(),
		N:       p.Horizon(),
		dt:      p.Dt(),
		duals:   newMultipliers(p.Constraints(), opts.PenaltyInitial),
	}
	s.xs, s.xc = make([]dynamo.State, s.N), make([]dynamo.State, s.N)
	for k := range s.xs {
		s.xs[k], s.xc[k] = make(dynamo.State, s.n), make(dynamo.State, s.n)
	}
	s.us, s.uc = make([]dynamo.Control, s.N-1), make([]dynamo.Control, s.N-1)
	for k := range s.us {
		s.us[k], s.uc[k] = make(dynamo.Control, s.m), make(dynamo.Control, s.m)
	}
	return s, nil
}

func (s *Solver) Problem() *problem.Problem { return s.problem }
func (s *Solver) Options() Options          { return s.opts }
func (s *Solver) Stats() Stats              { return s.stats }

// Reset sets every dual estimate to zero and every penalty to its initial
// value.
func (s *Solver) Reset() {
	for _, mu := range s.duals {
		mu.reset(s.opts.PenaltyInitial)
	}
}

// ShiftDuals moves the duals and penalties of every constraint entry one
// knot towards the front of its range, keeping the last one.
func (s *Solver) ShiftDuals() {
	for _, mu := range s.duals {
		mu.shift()
	}
}

// Multiplier returns copies of the dual estimate and the penalty of
// constraint entry i at knot k. ok is false when k is outside the entry's
// range.
func (s *Solver) Multiplier(i, k int) (lambda []float64, penalty float64, ok bool) {
	mu := s.duals[i]
	j := mu.at(k)
	if j < 0 {
		return nil, 0, false
	}
	return append([]float64(nil), mu.lambda[j]...), mu.penalty[j], true
}

// MaxPenalty returns the largest penalty over all constraints.
func (s *Solver) MaxPenalty() float64 {
	rho := 0.0
	for _, mu := range s.duals {
		rho = math.Max(rho, mu.maxPenalty())
	}
	return rho
}

type innerResult struct {
	status     Status
	converged  bool
	capped     bool
	cost       float64
	costChange float64
	gradient   float64
}

// Solve runs the solver from the controls currently stored in the problem
// trajectory and writes the final iterate back to it. Failing to converge is
// reported through Stats.Status, not as an error; the returned error is
// non-nil only when ctx is done.
func (s *Solver) Solve(ctx context.Context) (Stats, error) {
	start := s.opts.Clock.Now()
	s.stats = Stats{Status: Unsolved}
	s.reg = s.opts.RegularizationInitial
	s.load()

	if !s.simulate() {
		s.stats.Status = StateLimit
		return s.finish(start), nil
	}

	J := s.cost(s.xs, s.us)
	capped := false
	for outer := 0; ; outer++ {
		if outer >= s.opts.MaxOuterIterations {
			s.stats.Status = MaxOuterIterations
			if capped {
				s.stats.Status = MaxInnerIterations
			}
			break
		}
		s.stats.OuterIterations = outer + 1

		res, err := s.solveInner(ctx, outer, J)
		s.stats.CostChange, s.stats.Gradient = res.costChange, res.gradient
		if err != nil {
			s.finish(start)
			return s.stats, err
		}
		if res.status != Unsolved {
			s.stats.Status = res.status
			break
		}
		capped = res.capped

		viol := s.violation()
		s.log.Debug("outer iteration",
			zap.Int("outer", outer),
			zap.Int("iterations", s.stats.Iterations),
			zap.Float64("cost", res.cost),
			zap.Float64("cost_change", res.costChange),
			zap.Float64("gradient", res.gradient),
			zap.Float64("violation", viol),
			zap.Float64("penalty", s.MaxPenalty()),
		)
		if res.converged &&
			viol <= s.opts.ConstraintTolerance &&
			res.costChange <= s.opts.CostTolerance &&
			res.gradient <= s.opts.GradientTolerance {
			s.stats.Status = Succeeded
			break
		}

		for _, mu := range s.duals {
			mu.update(s.xs, s.us, s.opts)
		}
		J = s.cost(s.xs, s.us)
	}
	return s.finish(start), nil
}

func (s *Solver) solveInner(ctx context.Context, outer int, J float64) (innerResult, error) {
	res := innerResult{cost: J}
	for i := 0; i < s.opts.MaxInnerIterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.stats.Iterations >= s.opts.MaxIterations {
			res.status = MaxIterations
			return res, nil
		}
		s.stats.Iterations++

		pol, ok := s.regularizedBackwardPass()
		if !ok {
			res.status = RegularizationFailed
			return res, nil
		}
		res.gradient = pol.gradient

		if pol.expected(1) < minExpectedDecrease {
			res.costChange = 0
			res.converged = true
			s.record(outer, res, 0)
			return res, nil
		}

		Jn, alpha, step := s.forwardPass(pol, res.cost)
		if step != stepAccepted {
			res.costChange = 0
			if pol.expected(1) < s.opts.CostTolerance {
				res.converged = true
				s.record(outer, res, 0)
				return res, nil
			}
			s.record(outer, res, 0)
			if !s.increaseRegularization() {
				res.status = MaxLineSearchIterations
				if step == stepDiverged {
					res.status = StateLimit
				}
				return res, nil
			}
			continue
		}

		res.costChange = res.cost - Jn
		res.cost = Jn
		s.decreaseRegularization()
		s.record(outer, res, alpha)

		if res.costChange < s.opts.CostToleranceIntermediate &&
			res.gradient < s.opts.GradientToleranceIntermediate {
			res.converged = true
			return res, nil
		}
	}
	res.capped = true
	s.log.Debug("inner iteration cap reached", zap.Int("outer", outer))
	return res, nil
}

func (s *Solver) regularizedBackwardPass() (*policy, bool) {
	for {
		if pol, ok := s.backwardPass(s.reg); ok {
			return pol, true
		}
		if !s.increaseRegularization() {
			return nil, false
		}
	}
}

func (s *Solver) increaseRegularization() bool {
	s.reg = math.Max(s.reg*s.opts.RegularizationScaling, s.opts.RegularizationMin)
	return s.reg <= s.opts.RegularizationMax
}

func (s *Solver) decreaseRegularization() {
	s.reg /= s.opts.RegularizationScaling
	if s.reg < s.opts.RegularizationMin {
		s.reg = 0
	}
}

func (s *Solver) record(outer int, res innerResult, alpha float64) {
	s.stats.History = append(s.stats.History, Iteration{
		Iteration:      s.stats.Iterations,
		Outer:          outer,
		Cost:           res.cost,
		CostChange:     res.costChange,
		Gradient:       res.gradient,
		Violation:      s.violation(),
		PenaltyMax:     s.MaxPenalty(),
		Alpha:          alpha,
		Regularization: s.reg,
	})
}

// load copies x0 and the controls of the problem trajectory into the
// working buffers.
func (s *Solver) load() {
	copy(s.xs[0], s.problem.InitialState())
	tr := s.problem.Trajectory()
	for k := range s.us {
		copy(s.us[k], tr.Control(k))
	}
}

// simulate rolls the working controls out from x0.
func (s *Solver) simulate() bool {
	model := s.problem.Model()
	for k := 0; k < s.N-1; k++ {
		next := model.Step(s.xs[k], s.us[k], s.dt)
		if !s.admissible(next) {
			return false
		}
		copy(s.xs[k+1], next)
	}
	return true
}

// cost is the objective plus the augmented Lagrangian terms.
func (s *Solver) cost(xs []dynamo.State, us []dynamo.Control) float64 {
	obj := s.problem.Objective()
	J := 0.0
	for k := 0; k < s.N; k++ {
		var u dynamo.Control
		if k < s.N-1 {
			u = us[k]
		}
		J += obj.Cost(k).Evaluate(xs[k], u)
		for _, mu := range s.duals {
			J += mu.cost(k, xs[k], u)
		}
	}
	return J
}

func (s *Solver) violation() float64 {
	return s.problem.Constraints().MaxViolation(s.xs, s.us)
}

// finish writes the working trajectory back to the problem and fills in the
// summary statistics.
func (s *Solver) finish(start time.Time) Stats {
	tr := s.problem.Trajectory()
	for k := 0; k < s.N; k++ {
		_ = tr.SetState(k, s.xs[k])
		if k < s.N-1 {
			_ = tr.SetControl(k, s.us[k])
		}
	}
	s.stats.Cost = s.problem.Objective().Total(s.xs, s.us)
	s.stats.Violation = s.violation()
	s.stats.SolveTime = s.opts.Clock.Since(start)

	s.log.Info("solve finished",
		zap.Stringer("status", s.stats.Status),
		zap.Int("iterations", s.stats.Iterations),
		zap.Int("outer_iterations", s.stats.OuterIterations),
		zap.Float64("cost", s.stats.Cost),
		zap.Float64("violation", s.stats.Violation),
		zap.Duration("solve_time", s.stats.SolveTime),
	)
	return s.stats
}
