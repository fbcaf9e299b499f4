package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors shared by models, problems and solvers.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// DimensionError names the component whose size disagrees with the model.
type DimensionError struct {
	Component string
	Want      int
	Got       int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: want dimension %d, got %d", e.Component, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckDim returns a *DimensionError when got != want.
func CheckDim(component string, want, got int) error {
	if want == got {
		return nil
	}
	return &DimensionError{Component: component, Want: want, Got: got}
}
