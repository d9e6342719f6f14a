package sim

import (
	"fmt"

	"github.com/san-kum/cellsim/internal/dynamo"
)

// Replay rebuilds the rates and algebraic variables of stored samples. The
// instance is prepared with cfg's overrides, so cfg must match the run that
// produced the samples.
func Replay(m dynamo.Module, cfg dynamo.Config, times []float64, states [][]float64) (*dynamo.Result, error) {
	if len(times) != len(states) {
		return nil, fmt.Errorf("replay: %d times but %d states", len(times), len(states))
	}
	inst, err := Prepare(m, cfg)
	if err != nil {
		return nil, err
	}

	result := &dynamo.Result{
		Times:     append([]float64(nil), times...),
		States:    make([]dynamo.State, 0, len(states)),
		Rates:     make([]dynamo.State, 0, len(states)),
		Variables: make([]dynamo.State, 0, len(states)),
		Metrics:   make(map[string]float64),
	}

	for i, st := range states {
		if len(st) != inst.StateDim() {
			return nil, fmt.Errorf("replay sample %d: %w", i, dynamo.ErrDimensionMismatch)
		}
		copy(inst.States, st)
		if err := inst.ComputeVariables(times[i]); err != nil {
			return nil, err
		}
		result.States = append(result.States, inst.States.Clone())
		result.Rates = append(result.Rates, inst.Rates.Clone())
		result.Variables = append(result.Variables, inst.Variables.Clone())
	}

	return result, nil
}
