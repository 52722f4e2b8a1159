package mech

import "errors"

// Domain errors for kinematics and simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("mech: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched joint-space dimensions.
	ErrDimensionMismatch = errors.New("mech: dimension mismatch")

	// ErrNoConvergence indicates an iterative solve stopped at its
	// iteration budget above tolerance.
	ErrNoConvergence = errors.New("mech: solver did not converge")

	// ErrSingularSystem indicates a factorization of the constraint or
	// mass system failed.
	ErrSingularSystem = errors.New("mech: singular system")

	// ErrParameterBounds indicates a parameter outside its valid range.
	ErrParameterBounds = errors.New("mech: parameter out of valid bounds")
)

// StepError wraps an error with the step at which it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string { return e.Wrapped.Error() }
func (e *StepError) Unwrap() error { return e.Wrapped }
