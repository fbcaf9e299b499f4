package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/dynamo"
)

func TestRK45LongStepSubdivides(t *testing.T) {
	integ := NewRK45()
	x := integ.Step(&simpleDynamics{}, dynamo.State{1, 0}, nil, 0, 1.0)

	if math.Abs(x[0]-math.Cos(1)) > 1e-6 || math.Abs(x[1]+math.Sin(1)) > 1e-6 {
		t.Errorf("got %v, want [%f %f]", x, math.Cos(1), -math.Sin(1))
	}
}

func TestRK45RejectsLargeStep(t *testing.T) {
	integ := NewRK45()
	_, hNext, ok := integ.StepAdaptive(&simpleDynamics{}, dynamo.State{1, 0}, nil, 0, 2.0)
	if ok {
		t.Error("expected the error estimate to reject a 2 s step")
	}
	if hNext >= 2.0 {
		t.Errorf("suggested step %f did not shrink", hNext)
	}
}

func TestRK45ExactForConstantInput(t *testing.T) {
	integ := NewRK45()
	x := integ.Step(&constantAccel{}, dynamo.State{1, 2}, dynamo.Control{3}, 0, 0.5)

	wantP := 1 + 2*0.5 + 0.5*3*0.25
	wantV := 2 + 3*0.5
	if math.Abs(x[0]-wantP) > 1e-12 || math.Abs(x[1]-wantV) > 1e-12 {
		t.Errorf("got %v, want [%f %f]", x, wantP, wantV)
	}
}

func TestRK45EnergyDrift(t *testing.T) {
	integ := NewRK45()
	dyn := &simpleDynamics{}
	x := dynamo.State{1, 0}
	dt := 0.1

	for i := 0; i < 1000; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}
	energy := 0.5 * (x[0]*x[0] + x[1]*x[1])
	if drift := math.Abs(energy - 0.5); drift > 1e-4 {
		t.Errorf("energy drift %e", drift)
	}
}

func TestRK45DoesNotAliasInput(t *testing.T) {
	integ := NewRK45()
	x0 := dynamo.State{1, 0}
	x1 := integ.Step(&simpleDynamics{}, x0, nil, 0, 0.1)
	x1[0] = 42

	if x0[0] != 1 {
		t.Error("step mutated its input state")
	}
}
