package altro

import (
	"testing"

	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func thrustMultipliers(t *testing.T, N int, r constraints.Range) *multipliers {
	t.Helper()
	list := constraints.NewList(6, 3, N)
	thrust, err := constraints.NewNorm(6, 3, constraints.SelectControl(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := list.Add(thrust, r); err != nil {
		t.Fatal(err)
	}
	return newMultipliers(list, 10)[0]
}

func TestExpansionMatchesFiniteDifference(t *testing.T) {
	mu := thrustMultipliers(t, 5, constraints.Knots(0, 4))
	mu.lambda[1] = []float64{0.5, -0.2, 0.1, 0.3}

	z0 := []float64{1, 2, 3, 0, 0, 0, 3, 4, 5}
	f := func(z []float64) float64 {
		return mu.cost(1, dynamo.State(z[:6]), dynamo.Control(z[6:]))
	}
	want := fd.Gradient(nil, f, z0, &fd.Settings{Formula: fd.Central})

	g := mat.NewVecDense(9, nil)
	h := mat.NewDense(9, 9, nil)
	mu.expand(1, dynamo.State(z0[:6]), dynamo.Control(z0[6:]), g, h)

	if !floats.EqualApprox(g.RawVector().Data, want, 1e-5) {
		t.Errorf("gradient %v, want %v", g.RawVector().Data, want)
	}

	// the norm constraint is linear, so its Gauss-Newton Hessian is exact
	wantH := mat.NewSymDense(9, nil)
	fd.Hessian(wantH, f, z0, &fd.Settings{Formula: fd.Central})
	if !mat.EqualApprox(h, wantH, 1e-2) {
		t.Errorf("hessian\n%v\nwant\n%v", mat.Formatted(h), mat.Formatted(wantH))
	}
}

func TestExpansionOutsideRange(t *testing.T) {
	mu := thrustMultipliers(t, 5, constraints.Knots(1, 3))
	g := mat.NewVecDense(9, nil)
	h := mat.NewDense(9, 9, nil)
	mu.expand(0, make(dynamo.State, 6), dynamo.Control{10, 10, 10}, g, h)
	if mat.Norm(g, 2) != 0 || mat.Norm(h, 1) != 0 {
		t.Error("knot outside the range should not contribute")
	}
	if c := mu.cost(3, make(dynamo.State, 6), dynamo.Control{10, 10, 10}); c != 0 {
		t.Errorf("knot outside the range cost %g", c)
	}
}

func TestDualUpdate(t *testing.T) {
	mu := thrustMultipliers(t, 3, constraints.Knots(0, 2))
	xs := []dynamo.State{make(dynamo.State, 6), make(dynamo.State, 6), make(dynamo.State, 6)}
	us := []dynamo.Control{{3, 4, 0}, {0, 0, 1}}

	opts := DefaultOptions()
	mu.update(xs, us, opts)

	// ‖(3, 4, 0)‖ = 5 sits on the cone boundary: λ + ρc = 10·(3, 4, 0, 5)
	// lies in K, so its projection onto K° is zero
	for _, v := range mu.lambda[0] {
		if v != 0 {
			t.Errorf("expected zero dual on the boundary, got %v", mu.lambda[0])
			break
		}
	}
	if mu.penalty[0] != 10 || mu.penalty[1] != 10 {
		t.Errorf("satisfied knots should keep their penalty, got %v", mu.penalty)
	}

	us[1] = dynamo.Control{30, 40, 0}
	mu.update(xs, us, opts)
	if mu.penalty[0] != 10 || mu.penalty[1] != 100 {
		t.Errorf("only the violated knot should scale to 100, got %v", mu.penalty)
	}
	lam := mu.lambda[1]
	if constraints.Violation(constraints.SecondOrderCone, floats.ScaleTo(make([]float64, 4), -1, lam)) > 1e-9 {
		t.Errorf("dual %v should lie in the polar cone", lam)
	}
	if floats.Norm(lam, 2) == 0 {
		t.Error("violated constraint should get a non-zero dual")
	}

	opts.PenaltyMax = 150
	mu.update(xs, us, opts)
	if mu.penalty[1] != 150 {
		t.Errorf("penalty should clip at 150, got %g", mu.penalty[1])
	}
}

func TestShiftDualsAndReset(t *testing.T) {
	p := landingProblem(t, 11, 0.1, dynamo.State{1, 1, 10, 0, 0, -1})
	s, err := New(p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	// entry 2 is the thrust limit over knots [0, 10)
	mu := s.duals[2]
	for j := range mu.lambda {
		mu.lambda[j][0] = float64(j)
		mu.penalty[j] = float64(j + 1)
	}
	s.ShiftDuals()

	for k := 0; k < 9; k++ {
		lam, rho, ok := s.Multiplier(2, k)
		if !ok {
			t.Fatalf("knot %d should be in range", k)
		}
		if lam[0] != float64(k+1) || rho != float64(k+2) {
			t.Errorf("knot %d: got λ=%g ρ=%g", k, lam[0], rho)
		}
	}
	lam, rho, _ := s.Multiplier(2, 9)
	if lam[0] != 9 || rho != 10 {
		t.Errorf("last knot should be duplicated, got λ=%g ρ=%g", lam[0], rho)
	}
	if _, _, ok := s.Multiplier(2, 10); ok {
		t.Error("terminal knot is outside the thrust range")
	}

	lam[0] = -1
	if again, _, _ := s.Multiplier(2, 9); again[0] != 9 {
		t.Error("Multiplier should return a copy")
	}

	s.Reset()
	if s.MaxPenalty() != s.Options().PenaltyInitial {
		t.Errorf("reset penalty %g", s.MaxPenalty())
	}
	if lam, _, _ := s.Multiplier(2, 3); lam[0] != 0 {
		t.Errorf("reset dual %v", lam)
	}
}
