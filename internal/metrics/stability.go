package metrics

import (
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
)

// Stability is the fraction of samples whose state stays within threshold
// in every component.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	for _, val := range x {
		if math.Abs(val) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Clearance is the smallest value one state component takes, such as the
// altitude of a lander.
type Clearance struct {
	name  string
	index int
	min   float64
	seen  bool
}

func NewClearance(name string, index int) *Clearance {
	return &Clearance{name: name, index: index}
}

func (c *Clearance) Name() string { return c.name }

func (c *Clearance) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if c.index >= len(x) {
		return
	}
	if !c.seen || x[c.index] < c.min {
		c.min = x[c.index]
		c.seen = true
	}
}

func (c *Clearance) Value() float64 { return c.min }

func (c *Clearance) Reset() {
	c.min = 0
	c.seen = false
}
