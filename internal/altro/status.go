package altro

import "time"

// Status is the outcome of a solve. Anything other than Succeeded means an
// iteration cap or a numerical guard stopped the solver; the best iterate is
// still written to the problem trajectory.
type Status int

const (
	Unsolved Status = iota
	Succeeded
	MaxIterations
	MaxOuterIterations
	MaxInnerIterations
	MaxLineSearchIterations
	RegularizationFailed
	StateLimit
)

var statusNames = map[Status]string{
	Unsolved:                "unsolved",
	Succeeded:               "succeeded",
	MaxIterations:           "max iterations",
	MaxOuterIterations:      "max outer iterations",
	MaxInnerIterations:      "max inner iterations",
	MaxLineSearchIterations: "max line search iterations",
	RegularizationFailed:    "regularization failed",
	StateLimit:              "state limit",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Iteration records one inner iteration.
type Iteration struct {
	Iteration      int
	Outer          int
	Cost           float64
	CostChange     float64
	Gradient       float64
	Violation      float64
	PenaltyMax     float64
	Alpha          float64
	Regularization float64
}

type Stats struct {
	Status          Status
	Iterations      int
	OuterIterations int
	Cost            float64
	CostChange      float64
	Gradient        float64
	Violation       float64
	SolveTime       time.Duration
	History         []Iteration
}
