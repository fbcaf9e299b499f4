package altro

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options configures a Solver. It is copied at construction and read-only
// afterwards.
type Options struct {
	// CostTolerance bounds the last cost change of a successful solve.
	CostTolerance float64
	// CostToleranceIntermediate ends an inner solve.
	CostToleranceIntermediate float64
	// GradientTolerance bounds the normalized feedforward step of a
	// successful solve.
	GradientTolerance float64
	// GradientToleranceIntermediate ends an inner solve.
	GradientToleranceIntermediate float64
	// ConstraintTolerance bounds the maximum constraint violation.
	ConstraintTolerance float64

	PenaltyInitial float64
	PenaltyScaling float64
	PenaltyMax     float64
	DualMax        float64

	// MaxIterations caps the total number of inner iterations.
	MaxIterations           int
	MaxOuterIterations      int
	MaxInnerIterations      int
	MaxLineSearchIterations int

	RegularizationInitial float64
	RegularizationMin     float64
	RegularizationMax     float64
	RegularizationScaling float64

	// A line search step is accepted when actual/expected decrease lies in
	// [LineSearchLowerBound, LineSearchUpperBound].
	LineSearchLowerBound float64
	LineSearchUpperBound float64
	LineSearchDecrease   float64

	// MaxStateValue aborts rollouts whose states blow up.
	MaxStateValue float64

	Logger *zap.Logger
	Clock  clock.Clock
}

func DefaultOptions() Options {
	return Options{
		CostTolerance:                 1e-4,
		CostToleranceIntermediate:     1e-3,
		GradientTolerance:             10,
		GradientToleranceIntermediate: 1,
		ConstraintTolerance:           1e-6,

		PenaltyInitial: 1,
		PenaltyScaling: 10,
		PenaltyMax:     1e8,
		DualMax:        1e8,

		MaxIterations:           500,
		MaxOuterIterations:      30,
		MaxInnerIterations:      100,
		MaxLineSearchIterations: 20,

		RegularizationInitial: 0,
		RegularizationMin:     1e-8,
		RegularizationMax:     1e8,
		RegularizationScaling: 10,

		LineSearchLowerBound: 1e-8,
		LineSearchUpperBound: 10,
		LineSearchDecrease:   0.5,

		MaxStateValue: 1e8,
	}
}

// Validate reports every invalid field.
func (o Options) Validate() error {
	var err error
	positive := func(name string, v float64) {
		if !(v > 0) {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %g", name, v))
		}
	}
	atLeastOne := func(name string, v int) {
		if v < 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be at least 1, got %d", name, v))
		}
	}

	positive("CostTolerance", o.CostTolerance)
	positive("CostToleranceIntermediate", o.CostToleranceIntermediate)
	positive("GradientTolerance", o.GradientTolerance)
	positive("GradientToleranceIntermediate", o.GradientToleranceIntermediate)
	positive("ConstraintTolerance", o.ConstraintTolerance)
	positive("PenaltyInitial", o.PenaltyInitial)
	positive("PenaltyMax", o.PenaltyMax)
	positive("DualMax", o.DualMax)
	positive("RegularizationMin", o.RegularizationMin)
	positive("RegularizationMax", o.RegularizationMax)
	positive("MaxStateValue", o.MaxStateValue)

	atLeastOne("MaxIterations", o.MaxIterations)
	atLeastOne("MaxOuterIterations", o.MaxOuterIterations)
	atLeastOne("MaxInnerIterations", o.MaxInnerIterations)
	atLeastOne("MaxLineSearchIterations", o.MaxLineSearchIterations)

	if o.PenaltyScaling < 1 {
		err = multierr.Append(err, fmt.Errorf("PenaltyScaling must be at least 1, got %g", o.PenaltyScaling))
	}
	if o.PenaltyInitial > o.PenaltyMax {
		err = multierr.Append(err, fmt.Errorf("PenaltyInitial %g exceeds PenaltyMax %g", o.PenaltyInitial, o.PenaltyMax))
	}
	if o.RegularizationScaling <= 1 {
		err = multierr.Append(err, fmt.Errorf("RegularizationScaling must exceed 1, got %g", o.RegularizationScaling))
	}
	if o.RegularizationInitial < 0 || o.RegularizationInitial > o.RegularizationMax {
		err = multierr.Append(err, fmt.Errorf("RegularizationInitial %g outside [0, %g]", o.RegularizationInitial, o.RegularizationMax))
	}
	if !(o.LineSearchLowerBound > 0 && o.LineSearchLowerBound < 1 && o.LineSearchUpperBound > 1) {
		err = multierr.Append(err, fmt.Errorf("line search bounds [%g, %g] must bracket 1",
			o.LineSearchLowerBound, o.LineSearchUpperBound))
	}
	if !(o.LineSearchDecrease > 0 && o.LineSearchDecrease < 1) {
		err = multierr.Append(err, fmt.Errorf("LineSearchDecrease must lie in (0, 1), got %g", o.LineSearchDecrease))
	}
	return err
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
