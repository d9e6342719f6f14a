package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrPhaseOrder indicates a pipeline operation called out of order.
	ErrPhaseOrder = errors.New("dynamo: pipeline operation out of order")

	// ErrUnknownVariable indicates a name missing from the metadata tables.
	ErrUnknownVariable = errors.New("dynamo: unknown variable")

	// ErrNotConstant indicates an override of a non-CONSTANT variable.
	ErrNotConstant = errors.New("dynamo: variable is not a constant")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched state/module dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and module")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// PhaseError reports the phase an operation needed and the phase it found.
type PhaseError struct {
	Op   string
	Want Phase
	Got  Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("dynamo: %s requires phase %s, instance is %s", e.Op, e.Want, e.Got)
}

func (e *PhaseError) Unwrap() error {
	return ErrPhaseOrder
}
