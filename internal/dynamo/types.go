package dynamo

import (
	"fmt"
	"math"
)

type State []float64

// NewState returns a vector of length n filled with the undefined sentinel.
func NewState(n int) State {
	s := make(State, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// VariableType is the role of an entry in the variable vector.
type VariableType int

const (
	Constant VariableType = iota + 1
	ComputedConstant
	Algebraic
)

var variableTypeNames = map[VariableType]string{
	Constant:         "constant",
	ComputedConstant: "computed_constant",
	Algebraic:        "algebraic",
}

func (t VariableType) String() string {
	if name, ok := variableTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t VariableType) MarshalText() ([]byte, error) {
	name, ok := variableTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("dynamo: unknown variable type %d", int(t))
	}
	return []byte(name), nil
}

func (t *VariableType) UnmarshalText(text []byte) error {
	for vt, name := range variableTypeNames {
		if name == string(text) {
			*t = vt
			return nil
		}
	}
	return fmt.Errorf("dynamo: unknown variable type %q", text)
}

// Info labels the variable of integration or one state index.
type Info struct {
	Name      string `json:"name"`
	Units     string `json:"units"`
	Component string `json:"component"`
}

// VariableInfo labels one index of the variable vector.
type VariableInfo struct {
	Info
	Type VariableType `json:"type"`
}

// Module is the call surface of a generated ODE system.
type Module interface {
	Name() string
	VOIInfo() Info
	StateInfo() []Info
	VariableInfo() []VariableInfo

	CreateStatesArray() State
	CreateVariablesArray() State
	InitializeStatesAndConstants(states, variables []float64)
	ComputeComputedConstants(variables []float64)
	ComputeRates(voi float64, states, rates, variables []float64)
	ComputeVariables(voi float64, states, rates, variables []float64)
}

// System is what integrators advance: dx/dt = f(x, t).
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

// Invariant is implemented by modules with a conserved quantity.
type Invariant interface {
	Invariant(states, variables []float64) float64
}

type Integrator interface {
	Step(sys System, x State, t, dt float64) State
}

// AdaptiveIntegrator returns the new state, the step it actually took and
// the step it proposes next.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt, tol float64) (State, float64, float64, error)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(s Sample)
}

// Sample is the data recorded at one reporting point.
type Sample struct {
	Time      float64
	States    State
	Rates     State
	Variables State
}

type Config struct {
	Dt            float64
	Duration      float64
	Tolerance     float64
	MaxDt         float64
	MinDt         float64
	Adaptive      bool
	ValidateState bool
	// OutputEvery records every n-th step; 0 means every step.
	OutputEvery int
	// Constants and States override initial values by name before the
	// computed constants are evaluated.
	Constants map[string]float64
	States    map[string]float64
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		Tolerance:     1e-6,
		MaxDt:         0.1,
		MinDt:         1e-8,
		Adaptive:      false,
		ValidateState: true,
		OutputEvery:   1,
	}
}

type Result struct {
	Times          []float64
	States         []State
	Rates          []State
	Variables      []State
	Metrics        map[string]float64
	InvariantDrift float64
	StepsTaken     int
	Evaluations    int
	Errors         []error
}

// Final returns the last recorded state, or nil for an empty result.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}

// Series extracts one state index across all samples.
func (r *Result) Series(idx int) []float64 {
	out := make([]float64, 0, len(r.States))
	for _, s := range r.States {
		if idx < len(s) {
			out = append(out, s[idx])
		}
	}
	return out
}
