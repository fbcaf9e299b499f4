package integrators

import (
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. The fifth-order weights equal the last row
// of dpA, so the seventh stage is the derivative at the accepted point.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth minus fourth order weights
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 integrates each step of length dt with adaptive Dormand-Prince
// sub-steps, holding the control constant. Sub-steps shrink until the
// relative error estimate is below Tol.
type RK45 struct {
	Tol         float64
	MaxSubsteps int

	safety   float64
	minScale float64
	maxScale float64

	k       [7]dynamo.State
	scratch dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		Tol:         1e-8,
		MaxSubsteps: 1000,
		safety:      0.9,
		minScale:    0.2,
		maxScale:    10.0,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.scratch = make(dynamo.State, n)
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	r.ensureScratch(len(x))

	cur := x.Clone()
	remaining, h := dt, dt
	for i := 0; i < r.MaxSubsteps && remaining > 0; i++ {
		last := h >= remaining
		if last {
			h = remaining
		}
		next, hNext, ok := r.StepAdaptive(dyn, cur, u, t+dt-remaining, h)
		if ok || i == r.MaxSubsteps-1 {
			cur = next
			if last {
				remaining = 0
			} else {
				remaining -= h
			}
		}
		h = hNext
	}
	return cur
}

// StepAdaptive takes one Dormand-Prince step of length h and returns the
// fifth-order solution, the suggested next step and whether the error
// estimate met the tolerance.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h float64) (dynamo.State, float64, bool) {
	n := len(x)
	r.ensureScratch(n)

	var xNew dynamo.State
	for s := 0; s < 7; s++ {
		for j := 0; j < n; j++ {
			acc := 0.0
			for q := 0; q < s; q++ {
				acc += dpA[s][q] * r.k[q][j]
			}
			r.scratch[j] = x[j] + h*acc
		}
		if s == 6 {
			xNew = r.scratch.Clone()
		}
		copy(r.k[s], dyn.Derive(r.scratch, u, t+dpC[s]*h))
	}

	errMax := 0.0
	for j := 0; j < n; j++ {
		est := 0.0
		for s := 0; s < 7; s++ {
			est += dpE[s] * r.k[s][j]
		}
		scale := math.Abs(x[j]) + math.Abs(h*r.k[0][j]) + 1e-10
		errMax = math.Max(errMax, math.Abs(h*est)/scale)
	}

	ratio := errMax / r.Tol
	switch {
	case ratio > 1:
		return xNew, h * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25)), false
	case ratio > 0:
		return xNew, h * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2)), true
	default:
		return xNew, h * r.maxScale, true
	}
}
