package problem

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/cost"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
	"go.uber.org/multierr"
)

func rocketObjective(t *testing.T, N int) *cost.Objective {
	t.Helper()
	obj, err := cost.NewLQR(cost.Scaled(6, 1e-2), cost.Scaled(3, 1e-4), cost.Scaled(6, 1),
		make(dynamo.State, 6), dynamo.Control{0, 0, 98.1}, N)
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func TestNew(t *testing.T) {
	rocket := models.NewDefaultRocket()
	x0 := dynamo.State{4, 2, 20, -3, 2, -5}
	p, err := New(rocket, rocketObjective(t, 11), nil, x0, 0.05, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Horizon() != 11 {
		t.Errorf("expected 11 knots, got %d", p.Horizon())
	}
	if got := p.Trajectory().State(0); got[2] != 20 {
		t.Errorf("first state should be x0, got %v", got)
	}
	if p.Constraints().Len() != 0 {
		t.Error("nil constraints should become an empty list")
	}
}

func TestNewReportsEveryMismatch(t *testing.T) {
	rocket := models.NewDefaultRocket()
	cons := constraints.NewList(4, 3, 12)

	_, err := New(rocket, rocketObjective(t, 11), cons, dynamo.State{1, 2}, 0.05, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	// initial state, constraint state and constraint knots
	if n := len(multierr.Errors(errors.Unwrap(err))); n != 3 {
		t.Errorf("expected 3 combined errors, got %d: %v", n, err)
	}

	var dimErr *dynamo.DimensionError
	if !errors.As(err, &dimErr) || dimErr.Component != "initial state" {
		t.Errorf("expected the initial state to be reported first, got %v", err)
	}
}

func TestNewRejectsBadHorizon(t *testing.T) {
	rocket := models.NewDefaultRocket()
	_, err := New(rocket, rocketObjective(t, 5), nil, make(dynamo.State, 6), 0, 0)
	if !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected invalid horizon, got %v", err)
	}
}

func TestNewRejectsNaN(t *testing.T) {
	rocket := models.NewDefaultRocket()
	x0 := dynamo.State{0, 0, math.NaN(), 0, 0, 0}
	if _, err := New(rocket, rocketObjective(t, 5), nil, x0, 0.1, 0); !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestRolloutHover(t *testing.T) {
	rocket := models.NewDefaultRocket()
	x0 := dynamo.State{1, 1, 10, 0, 0, 0}
	p, err := New(rocket, rocketObjective(t, 21), nil, x0, 0.05, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.InitControls([]dynamo.Control{rocket.HoverThrust()}); err != nil {
		t.Fatal(err)
	}
	p.Rollout()

	last := p.Trajectory().State(20)
	if d := last.Sub(x0).InfNorm(); d > 1e-9 {
		t.Errorf("hover drifted by %g", d)
	}
	if p.MaxViolation() != 0 {
		t.Error("empty constraint list should have no violation")
	}
	if p.Cost() <= 0 {
		t.Error("offset from the goal should cost something")
	}
}

func TestInitControlsLength(t *testing.T) {
	p, err := New(models.NewDefaultRocket(), rocketObjective(t, 5), nil, make(dynamo.State, 6), 0.1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.InitControls(make([]dynamo.Control, 3)); err == nil {
		t.Error("expected error for 3 controls on 5 knots")
	}
	us := []dynamo.Control{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}}
	if err := p.InitControls(us); err != nil {
		t.Fatal(err)
	}
	if u := p.Trajectory().Control(3); u[0] != 4 {
		t.Errorf("unexpected control %v", u)
	}
}

func TestSetInitialStateAndT0(t *testing.T) {
	p, err := New(models.NewDefaultRocket(), rocketObjective(t, 5), nil, make(dynamo.State, 6), 0.1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetInitialState(dynamo.State{1}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if err := p.SetInitialState(dynamo.State{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatal(err)
	}
	if x := p.InitialState(); x[5] != 6 {
		t.Errorf("unexpected x0 %v", x)
	}

	p.SetT0(2)
	ts := p.Trajectory().Times()
	if math.Abs(ts[0]-2) > 1e-12 || math.Abs(ts[4]-2.4) > 1e-12 {
		t.Errorf("unexpected times %v", ts)
	}
}
