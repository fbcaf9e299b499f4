package metrics

import (
	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Chatter is the share of the thrust magnitude's spectral power above half
// the Nyquist frequency. A smooth burn scores near 0, a bang-bang one near 1.
type Chatter struct {
	thrust []float64
}

func NewChatter() *Chatter { return &Chatter{} }

func (c *Chatter) Name() string { return "thrust_chatter" }

func (c *Chatter) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		return
	}
	c.thrust = append(c.thrust, u.Norm())
}

func (c *Chatter) Value() float64 {
	n := len(c.thrust)
	if n < 4 {
		return 0
	}
	mean := stat.Mean(c.thrust, nil)
	seq := make([]float64, n)
	for i, v := range c.thrust {
		seq[i] = v - mean
	}

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)
	var total, high float64
	for k := 1; k < len(coeff); k++ {
		p := real(coeff[k])*real(coeff[k]) + imag(coeff[k])*imag(coeff[k])
		total += p
		if 2*k > len(coeff) {
			high += p
		}
	}
	if total < 1e-12 {
		return 0
	}
	return high / total
}

func (c *Chatter) Reset() { c.thrust = c.thrust[:0] }
