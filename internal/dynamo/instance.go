package dynamo

import "fmt"

// Phase is how far an Instance has progressed through the module pipeline.
type Phase int

const (
	Allocated Phase = iota
	Initialized
	Ready
)

func (p Phase) String() string {
	switch p {
	case Allocated:
		return "allocated"
	case Initialized:
		return "initialized"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Instance owns the vectors of one simulation run.
type Instance struct {
	Module    Module
	States    State
	Rates     State
	Variables State

	phase       Phase
	evaluations int
}

// NewInstance allocates the state, rate and variable vectors of m.
// Every entry starts as NaN.
func NewInstance(m Module) *Instance {
	states := m.CreateStatesArray()
	return &Instance{
		Module:    m,
		States:    states,
		Rates:     NewState(len(states)),
		Variables: m.CreateVariablesArray(),
		phase:     Allocated,
	}
}

func (in *Instance) Phase() Phase { return in.phase }

// Evaluations counts rate computations made through Derive and ComputeRates.
func (in *Instance) Evaluations() int { return in.evaluations }

func (in *Instance) StateDim() int { return len(in.States) }

func (in *Instance) require(op string, want Phase) error {
	if in.phase != want {
		return &PhaseError{Op: op, Want: want, Got: in.phase}
	}
	return nil
}

func (in *Instance) Initialize() error {
	if err := in.require("initialize", Allocated); err != nil {
		return err
	}
	in.Module.InitializeStatesAndConstants(in.States, in.Variables)
	in.phase = Initialized
	return nil
}

// SetConstant overrides a CONSTANT entry. Only valid between Initialize and
// ComputeComputedConstants so that computed constants see the new value.
func (in *Instance) SetConstant(name string, v float64) error {
	if err := in.require("set constant", Initialized); err != nil {
		return err
	}
	idx, err := in.variableIndex(name)
	if err != nil {
		return err
	}
	if t := in.Module.VariableInfo()[idx].Type; t != Constant {
		return fmt.Errorf("%w: %s is %s", ErrNotConstant, name, t)
	}
	in.Variables[idx] = v
	return nil
}

// SetState overrides an initial state value.
func (in *Instance) SetState(name string, v float64) error {
	if err := in.require("set state", Initialized); err != nil {
		return err
	}
	idx, err := in.stateIndex(name)
	if err != nil {
		return err
	}
	in.States[idx] = v
	return nil
}

func (in *Instance) ComputeComputedConstants() error {
	if err := in.require("compute computed constants", Initialized); err != nil {
		return err
	}
	in.Module.ComputeComputedConstants(in.Variables)
	in.phase = Ready
	return nil
}

// ComputeRates writes the rates at the current states into in.Rates.
func (in *Instance) ComputeRates(voi float64) (State, error) {
	if err := in.require("compute rates", Ready); err != nil {
		return nil, err
	}
	in.Module.ComputeRates(voi, in.States, in.Rates, in.Variables)
	in.evaluations++
	return in.Rates, nil
}

// ComputeVariables refreshes the rates and then the ALGEBRAIC entries at the
// current states.
func (in *Instance) ComputeVariables(voi float64) error {
	if _, err := in.ComputeRates(voi); err != nil {
		return err
	}
	in.Module.ComputeVariables(voi, in.States, in.Rates, in.Variables)
	return nil
}

// Derive evaluates the rates of a trial state into a fresh vector. No phase
// check: before ComputeComputedConstants the NaN sentinels flow into the
// result.
func (in *Instance) Derive(x State, t float64) State {
	rates := NewState(len(x))
	in.Module.ComputeRates(t, x, rates, in.Variables)
	in.evaluations++
	return rates
}

// Variable returns the current value of a named variable.
func (in *Instance) Variable(name string) (float64, error) {
	idx, err := in.variableIndex(name)
	if err != nil {
		return 0, err
	}
	return in.Variables[idx], nil
}

// State returns the current value of a named state.
func (in *Instance) State(name string) (float64, error) {
	idx, err := in.stateIndex(name)
	if err != nil {
		return 0, err
	}
	return in.States[idx], nil
}

func (in *Instance) variableIndex(name string) (int, error) {
	for i, v := range in.Module.VariableInfo() {
		if v.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in %s", ErrUnknownVariable, name, in.Module.Name())
}

func (in *Instance) stateIndex(name string) (int, error) {
	for i, s := range in.Module.StateInfo() {
		if s.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: state %q in %s", ErrUnknownVariable, name, in.Module.Name())
}
