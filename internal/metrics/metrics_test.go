package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/models"
)

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(nil, dynamo.Control{3, 4, 0}, 0)
	m.Observe(nil, dynamo.Control{0, 0, 1}, 0.1)
	if v := m.Value(); math.Abs(v-3) > 1e-12 {
		t.Errorf("expected mean norm 3, got %f", v)
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestPeakControl(t *testing.T) {
	m := NewPeakControl()
	m.Observe(nil, dynamo.Control{3, 4, 0}, 0)
	m.Observe(nil, dynamo.Control{0, 0, 1}, 0.1)
	if m.Value() != 5 {
		t.Errorf("expected peak 5, got %f", m.Value())
	}
}

func TestEnergy(t *testing.T) {
	rocket := models.NewDefaultRocket()
	m := NewEnergy(rocket)
	m.Observe(dynamo.State{0, 0, 10, 0, 0, 0}, nil, 0)
	m.Observe(dynamo.State{0, 0, 0, 0, 0, -2}, nil, 1)

	// ½·10·4
	if v := m.Value(); math.Abs(v-20) > 1e-9 {
		t.Errorf("expected terminal energy 20, got %f", v)
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	rocket := models.NewDefaultRocket()
	m := NewEnergyDrift(rocket)
	m.Observe(dynamo.State{0, 0, 10, 0, 0, 0}, nil, 0)
	m.Observe(dynamo.State{0, 0, 5, 0, 0, 0}, nil, 1)

	// m·g·Δh = 10·9.81·5
	if v := m.Value(); math.Abs(v-490.5) > 1e-9 {
		t.Errorf("expected drift 490.5, got %f", v)
	}
}

func TestStability(t *testing.T) {
	m := NewStability(10)
	m.Observe(dynamo.State{1, 2}, nil, 0)
	m.Observe(dynamo.State{11, 2}, nil, 0)
	if v := m.Value(); v != 0.5 {
		t.Errorf("expected 0.5, got %f", v)
	}
}

func TestClearance(t *testing.T) {
	m := NewClearance("min_altitude", 2)
	for _, z := range []float64{20, 3, 7} {
		m.Observe(dynamo.State{0, 0, z}, nil, 0)
	}
	if m.Value() != 3 {
		t.Errorf("expected 3, got %f", m.Value())
	}
	if m.Name() != "min_altitude" {
		t.Errorf("unexpected name %s", m.Name())
	}
}

func TestChatter(t *testing.T) {
	smooth := NewChatter()
	alternating := NewChatter()
	for k := 0; k < 32; k++ {
		smooth.Observe(nil, dynamo.Control{0, 0, 100 + float64(k)}, 0)
		alternating.Observe(nil, dynamo.Control{0, 0, 100 + 50*float64(k%2)}, 0)
	}
	smooth.Observe(nil, nil, 0)

	if v := smooth.Value(); v > 0.2 {
		t.Errorf("ramp chatter %f, want near 0", v)
	}
	if v := alternating.Value(); v < 0.9 {
		t.Errorf("bang-bang chatter %f, want near 1", v)
	}

	constant := NewChatter()
	for k := 0; k < 8; k++ {
		constant.Observe(nil, dynamo.Control{0, 0, 98.1}, 0)
	}
	if constant.Value() != 0 {
		t.Errorf("constant thrust chatter %f", constant.Value())
	}
	alternating.Reset()
	if alternating.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestControlEffortSkipsMissingControl(t *testing.T) {
	m := NewControlEffort()
	m.Observe(nil, dynamo.Control{0, 0, 2}, 0)
	m.Observe(nil, nil, 0.1)
	if m.Value() != 2 {
		t.Errorf("got %f, want 2", m.Value())
	}
}
