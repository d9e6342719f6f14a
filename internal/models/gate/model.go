// Package gate wraps the generated generic gate module:
// dX/dt = alpha_X*(1-X) - beta_X*X.
package gate

import "github.com/san-kum/cellsim/internal/dynamo"

const Name = "gate"

type Model struct{}

func New() *Model { return &Model{} }

func (m *Model) Name() string         { return Name }
func (m *Model) VOIInfo() dynamo.Info { return VOIInfo }

func (m *Model) StateInfo() []dynamo.Info {
	out := make([]dynamo.Info, StateCount)
	copy(out, StateInfo[:])
	return out
}

func (m *Model) VariableInfo() []dynamo.VariableInfo {
	out := make([]dynamo.VariableInfo, VariableCount)
	copy(out, VariableInfo[:])
	return out
}

func (m *Model) CreateStatesArray() dynamo.State    { return CreateStatesArray() }
func (m *Model) CreateVariablesArray() dynamo.State { return CreateVariablesArray() }

func (m *Model) InitializeStatesAndConstants(states, variables []float64) {
	InitializeStatesAndConstants(states, variables)
}

func (m *Model) ComputeComputedConstants(variables []float64) {
	ComputeComputedConstants(variables)
}

func (m *Model) ComputeRates(voi float64, states, rates, variables []float64) {
	ComputeRates(voi, states, rates, variables)
}

func (m *Model) ComputeVariables(voi float64, states, rates, variables []float64) {
	ComputeVariables(voi, states, rates, variables)
}

// SteadyState returns alpha_X/(alpha_X+beta_X), the value X relaxes to.
func SteadyState(variables []float64) float64 {
	return variables[0] / (variables[0] + variables[1])
}
