package integrators

import (
	"testing"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/models/predatorprey"
)

func benchInstance(b *testing.B) *dynamo.Instance {
	b.Helper()
	inst := dynamo.NewInstance(predatorprey.New())
	if err := inst.Initialize(); err != nil {
		b.Fatal(err)
	}
	if err := inst.ComputeComputedConstants(); err != nil {
		b.Fatal(err)
	}
	return inst
}

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	inst := benchInstance(b)
	x := inst.States.Clone()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(inst, x, 0, 0.001)
	}
}

func BenchmarkRK4(b *testing.B) {
	integrator := NewRK4()
	inst := benchInstance(b)
	x := inst.States.Clone()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(inst, x, 0, 0.001)
	}
}

func BenchmarkRK45(b *testing.B) {
	integrator := NewRK45()
	inst := benchInstance(b)
	x := inst.States.Clone()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(inst, x, 0, 0.001)
	}
}

func BenchmarkComputeRates(b *testing.B) {
	states, variables := predatorprey.CreateStatesArray(), predatorprey.CreateVariablesArray()
	predatorprey.InitializeStatesAndConstants(states, variables)
	predatorprey.ComputeComputedConstants(variables)
	rates := make([]float64, predatorprey.StateCount)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		predatorprey.ComputeRates(0, states, rates, variables)
	}
}
