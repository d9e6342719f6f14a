// Package predatorprey wraps the generated predator-prey module.
//
// The generated file holds the metadata tables and the pipeline functions;
// this file adapts them to [dynamo.Module] and adds the conserved quantity
// used to monitor integration drift.
package predatorprey

import (
	"math"

	"github.com/san-kum/cellsim/internal/dynamo"
)

const Name = "predator_prey"

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

// Invariant returns a*ln(y_f) + b*y_f - c*ln(y_s) - d*y_s, which is constant
// along exact trajectories with positive populations.
func (m *Model) Invariant(states, variables []float64) float64 {
	ys, yf := states[0], states[1]
	a, b, d, c := variables[0], variables[1], variables[2], variables[3]
	return a*math.Log(yf) + b*yf - c*math.Log(ys) - d*ys
}
