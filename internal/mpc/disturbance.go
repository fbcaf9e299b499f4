package mpc

import (
	"math/rand/v2"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/stat/distuv"
)

// Disturbance perturbs the propagated state before it is fed back to the
// controller.
type Disturbance interface {
	Perturb(x dynamo.State) dynamo.State
}

// None leaves the state untouched.
type None struct{}

func (None) Perturb(x dynamo.State) dynamo.State { return x.Clone() }

// UniformNoise adds δ ~ U(−1, 1)·f·‖block‖∞ to every component, where f is
// PositionFraction on the first PositionDim components and VelocityFraction
// on the rest.
type UniformNoise struct {
	PositionFraction float64
	VelocityFraction float64
	// PositionDim defaults to half the state.
	PositionDim int

	dist distuv.Uniform
}

// NewUniformNoise returns a reproducible noise source for the given seed.
func NewUniformNoise(positionFraction, velocityFraction float64, seed uint64) *UniformNoise {
	return &UniformNoise{
		PositionFraction: positionFraction,
		VelocityFraction: velocityFraction,
		dist:             distuv.Uniform{Min: -1, Max: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)},
	}
}

func (u *UniformNoise) Perturb(x dynamo.State) dynamo.State {
	split := u.PositionDim
	if split <= 0 || split > len(x) {
		split = len(x) / 2
	}
	out := x.Clone()
	u.perturb(out[:split], u.PositionFraction)
	u.perturb(out[split:], u.VelocityFraction)
	return out
}

func (u *UniformNoise) perturb(block dynamo.State, frac float64) {
	scale := frac * block.InfNorm()
	for i := range block {
		block[i] += u.dist.Rand() * scale
	}
}
