package cost

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/dynamo"
)

func TestQuadraticEvaluate(t *testing.T) {
	c, err := NewQuadratic(Diagonal(2, 4), Diagonal(1), dynamo.State{1, 0}, dynamo.Control{3})
	if err != nil {
		t.Fatal(err)
	}
	// ½·2·1² + ½·4·1² + ½·1·1²
	got := c.Evaluate(dynamo.State{2, 1}, dynamo.Control{4})
	if math.Abs(got-3.5) > 1e-12 {
		t.Errorf("expected 3.5, got %f", got)
	}

	gx, gu := c.Gradient(dynamo.State{2, 1}, dynamo.Control{4})
	if gx[0] != 2 || gx[1] != 4 || gu[0] != 1 {
		t.Errorf("unexpected gradient %v %v", gx, gu)
	}
}

func TestTerminalIgnoresControl(t *testing.T) {
	c, err := NewTerminal(Scaled(2, 1), dynamo.State{0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	a := c.Evaluate(dynamo.State{1, 1}, dynamo.Control{100})
	b := c.Evaluate(dynamo.State{1, 1}, nil)
	if a != b || a != 1 {
		t.Errorf("terminal cost should ignore control: %f vs %f", a, b)
	}
	_, huu, _ := c.Hessian(nil, nil)
	if huu.At(0, 0) != 0 {
		t.Error("terminal control hessian should be zero")
	}
}

func TestReferenceDimension(t *testing.T) {
	_, err := NewQuadratic(Scaled(3, 1), Scaled(1, 1), dynamo.State{0, 0}, nil)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestTrackingObjective(t *testing.T) {
	xs := []dynamo.State{{0}, {1}, {2}}
	us := []dynamo.Control{{0}, {0}}
	obj, err := NewTracking(Scaled(1, 2), Scaled(1, 1), Scaled(1, 10), xs, us)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Len() != 3 {
		t.Fatalf("expected 3 costs, got %d", obj.Len())
	}
	if J := obj.Total(xs, us); J != 0 {
		t.Errorf("cost on the reference should be 0, got %f", J)
	}

	obj.SetReference(2, dynamo.State{3}, nil)
	if J := obj.Total(xs, us); math.Abs(J-5) > 1e-12 {
		t.Errorf("expected terminal cost 5 after moving reference, got %f", J)
	}
}

func TestLQRRejectsShortHorizon(t *testing.T) {
	if _, err := NewLQR(Scaled(1, 1), Scaled(1, 1), Scaled(1, 1), dynamo.State{0}, dynamo.Control{0}, 1); err == nil {
		t.Error("expected error for N=1")
	}
}
