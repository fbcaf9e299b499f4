package constraints

import (
	"errors"
	"testing"

	"github.com/san-kum/rocketland/internal/dynamo"
)

func TestListAdd(t *testing.T) {
	l := NewList(6, 3, 10)
	thrust, _ := NewNorm(6, 3, SelectControl(), 100)

	if err := l.Add(thrust, Knots(0, 9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Add(thrust, Knots(0, 10)); !errors.Is(err, ErrRange) {
		t.Errorf("control constraint on the terminal knot should fail, got %v", err)
	}
	if err := l.Add(NewGoal(make(dynamo.State, 6), 3), Knots(9, 10)); err != nil {
		t.Errorf("goal on the terminal knot should pass, got %v", err)
	}
	if err := l.Add(NewGoal(make(dynamo.State, 6), 3), Knots(9, 11)); !errors.Is(err, ErrRange) {
		t.Errorf("expected range error, got %v", err)
	}
	if err := l.Add(NewGoal(make(dynamo.State, 4), 3), Knots(0, 1)); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", l.Len())
	}

	dims := l.OutputDims()
	if dims[0] != 4 || dims[9] != 6 {
		t.Errorf("unexpected output dims %v", dims)
	}
}

func TestListClip(t *testing.T) {
	l := NewList(6, 3, 301)
	thrust, _ := NewNorm(6, 3, SelectControl(), 100)
	_ = l.Add(thrust, Knots(0, 300))
	_ = l.Add(NewGoal(make(dynamo.State, 6), 3), Knots(300, 301))
	ground, _ := NewBound(6, 3, []float64{-1e9, -1e9, 0, -1e9, -1e9, -1e9}, nil, nil, nil)
	_ = l.Add(ground, Knots(1, 301))

	clipped, dropped := l.Clip(21)
	if clipped.Knots() != 21 {
		t.Errorf("expected 21 knots, got %d", clipped.Knots())
	}
	if len(dropped) != 1 {
		t.Fatalf("expected the goal to be dropped, got %d dropped", len(dropped))
	}
	if clipped.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", clipped.Len())
	}
	if r := clipped.Entry(0).Range; r != Knots(0, 20) {
		t.Errorf("control constraint clipped to %s", r)
	}
	if r := clipped.Entry(1).Range; r != Knots(1, 21) {
		t.Errorf("state constraint clipped to %s", r)
	}
}

func TestMaxViolation(t *testing.T) {
	l := NewList(1, 1, 3)
	_ = l.Add(NewGoal(dynamo.State{0}, 1), Knots(2, 3))
	xs := []dynamo.State{{5}, {5}, {-0.5}}
	us := []dynamo.Control{{0}, {0}}
	if v := l.MaxViolation(xs, us); v != 0.5 {
		t.Errorf("expected violation 0.5, got %f", v)
	}
}
