package metrics

import (
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
)

// Energy reports the mechanical energy of the last observed state. Systems
// that are not Hamiltonian report zero.
type Energy struct {
	name    string
	dyn     dynamo.System
	last    float64
	samples int
}

func NewEnergy(dyn dynamo.System) *Energy {
	return &Energy{
		name: "terminal_energy",
		dyn:  dyn,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	h, ok := e.dyn.(dynamo.Hamiltonian)
	if !ok {
		return
	}
	e.last = h.Energy(x)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.last
}

func (e *Energy) Reset() {
	e.last = 0
	e.samples = 0
}

// EnergyDrift is the largest change of mechanical energy relative to the
// first observed state.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
	dyn           dynamo.System
}

func NewEnergyDrift(dyn dynamo.System) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		dyn:  dyn,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	ec, ok := e.dyn.(dynamo.Hamiltonian)
	if !ok {
		return
	}

	energy := ec.Energy(x)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++
	e.maxDrift = math.Max(e.maxDrift, math.Abs(energy-e.initialEnergy))
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
