package models

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultRocketMass = 10.0
	DefaultGravityZ   = -9.81
)

// Rocket is a point-mass lander with state (r, v) ∈ R⁶ and thrust u ∈ R³:
//
//	ṙ = v
//	v̇ = u/m + g
//
// The continuous form satisfies dynamo.System; Step and Jacobian use the
// exact zero-order-hold discretization.
type Rocket struct {
	Mass    float64
	Gravity [3]float64
}

func NewRocket(mass float64, gravity [3]float64) *Rocket {
	return &Rocket{Mass: mass, Gravity: gravity}
}

// NewDefaultRocket returns a 10 kg rocket under standard gravity.
func NewDefaultRocket() *Rocket {
	return NewRocket(DefaultRocketMass, [3]float64{0, 0, DefaultGravityZ})
}

func (r *Rocket) StateDim() int   { return 6 }
func (r *Rocket) ControlDim() int { return 3 }

func (r *Rocket) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, 6)
	copy(dx[:3], x[3:6])
	for i := 0; i < 3; i++ {
		dx[3+i] = r.Gravity[i]
		if i < len(u) {
			dx[3+i] += u[i] / r.Mass
		}
	}
	return dx
}

// Energy is the mechanical energy ½m|v|² − m g·r.
func (r *Rocket) Energy(x dynamo.State) float64 {
	v := []float64(x[3:6])
	ke := 0.5 * r.Mass * floats.Dot(v, v)
	pe := -r.Mass * floats.Dot(r.Gravity[:], []float64(x[0:3]))
	return ke + pe
}

// HoverThrust is the thrust that cancels gravity.
func (r *Rocket) HoverThrust() dynamo.Control {
	u := make(dynamo.Control, 3)
	for i := range u {
		u[i] = -r.Mass * r.Gravity[i]
	}
	return u
}

func (r *Rocket) Step(x dynamo.State, u dynamo.Control, dt float64) dynamo.State {
	next := make(dynamo.State, 6)
	for i := 0; i < 3; i++ {
		acc := r.Gravity[i]
		if i < len(u) {
			acc += u[i] / r.Mass
		}
		next[i] = x[i] + dt*x[3+i] + 0.5*dt*dt*acc
		next[3+i] = x[3+i] + dt*acc
	}
	return next
}

func (r *Rocket) Jacobian(x dynamo.State, u dynamo.Control, dt float64) (*mat.Dense, *mat.Dense) {
	a := mat.NewDense(6, 6, nil)
	b := mat.NewDense(6, 3, nil)
	for i := 0; i < 3; i++ {
		a.Set(i, i, 1)
		a.Set(3+i, 3+i, 1)
		a.Set(i, 3+i, dt)
		b.Set(i, i, 0.5*dt*dt/r.Mass)
		b.Set(3+i, i, dt/r.Mass)
	}
	return a, b
}

// Discretize returns the rocket as a LinearAffine model for a fixed dt.
func (r *Rocket) Discretize(dt float64) *LinearAffine {
	a, b := r.Jacobian(nil, nil, dt)
	d := r.Step(make(dynamo.State, 6), make(dynamo.Control, 3), dt)
	return &LinearAffine{A: a, B: b, D: d}
}
