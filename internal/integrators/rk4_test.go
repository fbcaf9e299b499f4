package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/dynamo"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int   { return 2 }
func (s *simpleDynamics) ControlDim() int { return 0 }

// constantAccel is a double integrator driven by its control.
type constantAccel struct{}

func (c *constantAccel) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], u[0]}
}

func (c *constantAccel) StateDim() int   { return 2 }
func (c *constantAccel) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x0 := dynamo.State{1.0, 0.0}
	u := dynamo.Control{}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestRK4ExactForConstantInput(t *testing.T) {
	integ := NewRK4()
	x := integ.Step(&constantAccel{}, dynamo.State{1, 2}, dynamo.Control{3}, 0, 0.5)

	wantP := 1 + 2*0.5 + 0.5*3*0.25
	wantV := 2 + 3*0.5
	if math.Abs(x[0]-wantP) > 1e-12 || math.Abs(x[1]-wantV) > 1e-12 {
		t.Errorf("got %v, want [%f %f]", x, wantP, wantV)
	}
}

func TestEulerStep(t *testing.T) {
	integ := NewEuler()
	x := integ.Step(&constantAccel{}, dynamo.State{1, 2}, dynamo.Control{3}, 0, 0.5)

	if x[0] != 2 || x[1] != 3.5 {
		t.Errorf("got %v, want [2 3.5]", x)
	}
}

func TestRK4DoesNotAliasInput(t *testing.T) {
	integ := NewRK4()
	x0 := dynamo.State{1, 0}
	x1 := integ.Step(&simpleDynamics{}, x0, nil, 0, 0.1)
	x1[0] = 42

	if x0[0] != 1 {
		t.Error("step mutated its input state")
	}
}
