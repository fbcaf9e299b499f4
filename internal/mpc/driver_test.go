package mpc_test

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/mpc"
	"github.com/san-kum/rocketland/internal/traj"
	"gonum.org/v1/gonum/mat"
)

const (
	dt      = 0.1
	refLen  = 31
	horizon = 11
)

type stepCounter struct{ n int }

func (c *stepCounter) Name() string                                  { return "steps" }
func (c *stepCounter) Observe(dynamo.State, dynamo.Control, float64) { c.n++ }
func (c *stepCounter) Value() float64                                { return float64(c.n) }
func (c *stepCounter) Reset()                                        { c.n = 0 }

func doubleIntegrator() *models.LinearAffine {
	a := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	b := mat.NewDense(2, 1, []float64{0.5 * dt * dt, dt})
	sys, err := models.NewLinearAffine(a, b, nil)
	Expect(err).NotTo(HaveOccurred())
	return sys
}

// accelerating is the trajectory of a unit push from rest.
func accelerating(sys models.Discrete) *traj.Trajectory {
	xs := make([]dynamo.State, refLen)
	us := make([]dynamo.Control, refLen-1)
	xs[0] = dynamo.State{0, 0}
	for k := range us {
		us[k] = dynamo.Control{1}
		xs[k+1] = sys.Step(xs[k], us[k], dt)
	}
	tr, err := traj.FromSamples(xs, us, dt, 0)
	Expect(err).NotTo(HaveOccurred())
	return tr
}

func trackingConfig() mpc.Config {
	return mpc.Config{
		Horizon: horizon,
		Q:       cost.Scaled(2, 1),
		R:       cost.Scaled(1, 0.01),
		Qf:      cost.Scaled(2, 10),
		Solver:  altro.DefaultOptions(),
	}
}

var _ = Describe("Driver", func() {
	var (
		sys  *models.LinearAffine
		ref  *traj.Trajectory
		cons *constraints.List
		ctx  context.Context
	)

	BeforeEach(func() {
		sys = doubleIntegrator()
		ref = accelerating(sys)
		ctx = context.Background()

		cons = constraints.NewList(2, 1, refLen)
		limit, err := constraints.NewNorm(2, 1, constraints.SelectControl(), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(cons.Add(limit, constraints.Knots(0, refLen-1))).To(Succeed())
		Expect(cons.Add(constraints.NewGoal(ref.State(refLen-1), 1), constraints.Knots(refLen-1, refLen))).To(Succeed())
	})

	Describe("construction", func() {
		It("defaults the iteration count to reference length minus horizon", func() {
			d, err := mpc.NewDriver(sys, ref, cons, trackingConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Iterations()).To(Equal(refLen - horizon))
		})

		It("clips constraint ranges to the horizon", func() {
			d, err := mpc.NewDriver(sys, ref, cons, trackingConfig())
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Dropped()).To(HaveLen(1))
			Expect(d.Dropped()[0].Constraint.Sense()).To(Equal(constraints.Equality))

			clipped := d.Problem().Constraints()
			Expect(clipped.Knots()).To(Equal(horizon))
			Expect(clipped.Len()).To(Equal(1))
			Expect(clipped.Entry(0).Range).To(Equal(constraints.Knots(0, horizon-1)))
		})

		It("rejects horizons outside the reference", func() {
			cfg := trackingConfig()
			cfg.Horizon = 1
			_, err := mpc.NewDriver(sys, ref, cons, cfg)
			Expect(errors.Is(err, mpc.ErrHorizon)).To(BeTrue())

			cfg.Horizon = refLen + 1
			_, err = mpc.NewDriver(sys, ref, cons, cfg)
			Expect(errors.Is(err, mpc.ErrHorizon)).To(BeTrue())
		})
	})

	Describe("a single step", func() {
		var (
			d     *mpc.Driver
			steps *stepCounter
		)

		BeforeEach(func() {
			steps = &stepCounter{}
			var err error
			d, err = mpc.NewDriver(sys, ref, cons, trackingConfig(),
				mpc.WithClock(clock.NewMock()),
				mpc.WithMetrics(steps))
			Expect(err).NotTo(HaveOccurred())
		})

		It("applies the first control and slides the window", func() {
			x0 := d.State()
			u0 := d.Problem().Trajectory().Control(0)

			step, err := d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(step.Iteration).To(Equal(0))
			Expect(step.Time).To(BeNumerically("~", dt, 1e-12))
			Expect(d.Problem().T0()).To(BeNumerically("~", dt, 1e-12))
			Expect(d.Offset()).To(Equal(1))

			want := sys.Step(x0, u0, dt)
			Expect(step.State[0]).To(BeNumerically("~", want[0], 1e-12))
			Expect(step.State[1]).To(BeNumerically("~", want[1], 1e-12))
			Expect(d.Problem().InitialState()).To(Equal(step.State))

			xref := d.Problem().Objective().Quadratic(0).XRef
			Expect(xref[0]).To(BeNumerically("~", ref.State(1)[0], 1e-12))
		})

		It("follows a feasible reference exactly", func() {
			step, err := d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(step.Status).To(Equal(altro.Succeeded))
			Expect(step.TrackingError).To(BeNumerically("<", 1e-6))
		})

		It("times the solve with the injected clock", func() {
			step, err := d.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(step.SolveTime).To(BeZero())
		})

		It("feeds every applied step to the metrics", func() {
			for i := 0; i < 3; i++ {
				_, err := d.Step(ctx)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(steps.Value()).To(Equal(3.0))
		})
	})

	Describe("the closed loop", func() {
		It("runs the default number of iterations and stops", func() {
			d, err := mpc.NewDriver(sys, ref, cons, trackingConfig())
			Expect(err).NotTo(HaveOccurred())

			history, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(refLen - horizon))
			Expect(d.Done()).To(BeTrue())

			last := history[len(history)-1]
			Expect(last.Time).To(BeNumerically("~", float64(refLen-horizon)*dt, 1e-9))
			Expect(last.State.Sub(ref.State(refLen - horizon)).Norm()).To(BeNumerically("<", 1e-6))

			_, err = d.Step(ctx)
			Expect(err).To(MatchError(mpc.ErrDone))
		})

		It("stays near the reference under noise", func() {
			cfg := trackingConfig()
			cfg.Iterations = 10
			d, err := mpc.NewDriver(sys, ref, cons, cfg,
				mpc.WithDisturbance(mpc.NewUniformNoise(0.01, 0.001, 7)))
			Expect(err).NotTo(HaveOccurred())

			history, err := d.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(10))
			for _, s := range history {
				Expect(s.TrackingError).To(BeNumerically("<", 0.5))
			}
		})

		It("stops when the context is cancelled", func() {
			d, err := mpc.NewDriver(sys, ref, cons, trackingConfig())
			Expect(err).NotTo(HaveOccurred())

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			history, err := d.Run(cctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(history).To(BeEmpty())
		})
	})
})
