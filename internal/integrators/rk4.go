package integrators

import "github.com/san-kum/rocketland/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta method. Control is held
// constant over the step (zero-order hold), so RK4 reproduces the exact
// discretization of any system whose solution is a polynomial of degree
// four or less in time.
type RK4 struct {
	k       [4]dynamo.State
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

// stage evaluates the derivative at x + h*prev into r.k[i].
func (r *RK4) stage(i int, dyn dynamo.System, x dynamo.State, prev dynamo.State, h float64, u dynamo.Control, t float64) {
	arg := x
	if prev != nil {
		for j := range x {
			r.scratch[j] = x[j] + h*prev[j]
		}
		arg = r.scratch
	}
	copy(r.k[i], dyn.Derive(arg, u, t))
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.ensureScratch(n)

	half := 0.5 * dt
	r.stage(0, dyn, x, nil, 0, u, t)
	r.stage(1, dyn, x, r.k[0], half, u, t+half)
	r.stage(2, dyn, x, r.k[1], half, u, t+half)
	r.stage(3, dyn, x, r.k[2], dt, u, t+dt)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return result
}
