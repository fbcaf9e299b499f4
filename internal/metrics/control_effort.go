package metrics

import (
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
)

// ControlEffort is the mean Euclidean norm of the applied control. Knots
// without a control are skipped.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		return
	}
	c.sum += u.Norm()
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakControl is the largest control norm seen.
type PeakControl struct {
	peak float64
}

func NewPeakControl() *PeakControl { return &PeakControl{} }

func (p *PeakControl) Name() string { return "peak_control" }

func (p *PeakControl) Observe(x dynamo.State, u dynamo.Control, t float64) {
	p.peak = math.Max(p.peak, u.Norm())
}

func (p *PeakControl) Value() float64 { return p.peak }
func (p *PeakControl) Reset()         { p.peak = 0 }
