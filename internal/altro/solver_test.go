package altro

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/problem"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// landingProblem builds the rocket landing problem: glide from x0 to the
// origin under thrust magnitude, thrust angle, ground and glide slope
// constraints.
func landingProblem(t *testing.T, N int, dt float64, x0 dynamo.State) *problem.Problem {
	t.Helper()
	rocket := models.NewDefaultRocket()
	n, m := rocket.StateDim(), rocket.ControlDim()
	xf := make(dynamo.State, n)
	hover := rocket.HoverThrust()

	obj, err := cost.NewLQR(cost.Scaled(n, 1e-2), cost.Scaled(m, 1e-4), cost.Scaled(n, float64(N-1)*1e-2), xf, hover, N)
	if err != nil {
		t.Fatal(err)
	}

	cons := constraints.NewList(n, m, N)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(cons.Add(constraints.NewGoal(xf, m), constraints.Knots(N-1, N)))

	inf := math.Inf(-1)
	ground, err := constraints.NewBound(n, m, []float64{inf, inf, 0, inf, inf, inf}, nil, nil, nil)
	must(err)
	must(cons.Add(ground, constraints.Knots(1, N)))

	thrust, err := constraints.NewNorm(n, m, constraints.SelectControl(), 200)
	must(err)
	must(cons.Add(thrust, constraints.Knots(0, N-1)))

	lateral := mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0})
	angle, err := constraints.NewLinearSOC(n, m, lateral, []float64{0, 0, math.Tan(25 * math.Pi / 180)}, constraints.SelectControl())
	must(err)
	must(cons.Add(angle, constraints.Knots(0, N-1)))

	horizontal := mat.NewDense(2, 6, []float64{1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0})
	glide, err := constraints.NewLinearSOC(n, m, horizontal, []float64{0, 0, 1, 0, 0, 0}, constraints.SelectState())
	must(err)
	must(cons.Add(glide, constraints.Knots(1, N-1)))

	p, err := problem.New(rocket, obj, cons, x0, dt, 0)
	must(err)
	must(p.InitControls([]dynamo.Control{hover}))
	return p
}

func TestRocketLanding(t *testing.T) {
	if testing.Short() {
		t.Skip("full landing solve")
	}
	const N = 301
	p := landingProblem(t, N, 0.05, dynamo.State{4, 2, 20, -3, 2, -5})
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	stats, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Status != Succeeded {
		t.Fatalf("expected %s, got %s after %d iterations (violation %g)",
			Succeeded, stats.Status, stats.Iterations, stats.Violation)
	}
	if stats.Violation > s.Options().ConstraintTolerance {
		t.Errorf("violation %g above tolerance", stats.Violation)
	}

	xN := p.Trajectory().State(N - 1)
	if v := xN.InfNorm(); v >= 1e-5 {
		t.Errorf("terminal violation %g, want < 1e-5", v)
	}

	for k, u := range p.Trajectory().Controls() {
		if u.Norm() > 200+1e-4 {
			t.Fatalf("thrust %g above limit at knot %d", u.Norm(), k)
		}
	}

	// a second solve from the converged iterate starts warm
	again, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != Succeeded {
		t.Errorf("re-solve ended with %s", again.Status)
	}
	if again.Iterations > 10 || again.Iterations >= stats.Iterations {
		t.Errorf("re-solve took %d iterations (cold solve %d)", again.Iterations, stats.Iterations)
	}
}

func doubleIntegrator(t *testing.T) *models.LinearAffine {
	t.Helper()
	dt := 0.1
	a := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	b := mat.NewDense(2, 1, []float64{0.5 * dt * dt, dt})
	sys, err := models.NewLinearAffine(a, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestInactiveConstraintsConverge(t *testing.T) {
	const N = 21
	sys := doubleIntegrator(t)
	obj, err := cost.NewLQR(cost.Scaled(2, 1), cost.Scaled(1, 0.1), cost.Scaled(2, 10),
		dynamo.State{0, 0}, dynamo.Control{0}, N)
	if err != nil {
		t.Fatal(err)
	}
	cons := constraints.NewList(2, 1, N)
	limit, _ := constraints.NewNorm(2, 1, constraints.SelectControl(), 1e3)
	_ = cons.Add(limit, constraints.Knots(0, N-1))
	floor, _ := constraints.NewBound(2, 1, []float64{-1e3, -1e3}, []float64{1e3, 1e3}, nil, nil)
	_ = cons.Add(floor, constraints.Knots(1, N))

	p, err := problem.New(sys, obj, cons, dynamo.State{1, 0}, 0.1, 0)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Status != Succeeded {
		t.Fatalf("expected success, got %s", stats.Status)
	}
	if stats.Violation > s.Options().ConstraintTolerance {
		t.Errorf("violation %g above tolerance", stats.Violation)
	}
	if stats.OuterIterations != 1 {
		t.Errorf("inactive constraints should need one outer iteration, got %d", stats.OuterIterations)
	}
	// zero thrust leaves the state at (1, 0): 20 stages of 0.5 plus 0.5·10
	if stats.Cost >= 15 {
		t.Errorf("cost %g did not improve on zero thrust", stats.Cost)
	}
	if len(stats.History) != stats.Iterations {
		t.Errorf("history has %d entries for %d iterations", len(stats.History), stats.Iterations)
	}
}

func TestSolveStopsOnCancelledContext(t *testing.T) {
	p := landingProblem(t, 21, 0.1, dynamo.State{1, 1, 10, 0, 0, -1})
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := s.Solve(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if stats.Status != Unsolved {
		t.Errorf("expected %s, got %s", Unsolved, stats.Status)
	}
}

func TestIterationCap(t *testing.T) {
	p := landingProblem(t, 41, 0.1, dynamo.State{4, 2, 20, -3, 2, -5})
	opts := DefaultOptions()
	opts.MaxIterations = 1
	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Solve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Status == Succeeded {
		t.Fatal("one iteration should not solve the landing problem")
	}
	if stats.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", stats.Iterations)
	}
	// the iterate stays readable
	if x := p.Trajectory().State(0); x[2] != 20 {
		t.Errorf("unexpected first state %v", x)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	opts := DefaultOptions()
	opts.PenaltyScaling = 0.5
	opts.MaxOuterIterations = 0
	opts.LineSearchUpperBound = 0.9
	err := opts.Validate()
	if n := len(multierr.Errors(err)); n != 3 {
		t.Errorf("expected 3 errors, got %d: %v", n, err)
	}

	p := landingProblem(t, 11, 0.1, dynamo.State{1, 1, 10, 0, 0, -1})
	if _, err := New(p, opts); err == nil {
		t.Error("New should reject invalid options")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Succeeded, "succeeded"},
		{MaxOuterIterations, "max outer iterations"},
		{StateLimit, "state limit"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
