package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/experiment"
	"github.com/san-kum/cellsim/internal/storage"
)

const scenarioYAML = `
name: gate then prey
description: two short runs
steps:
  - label: gate
    model: gate
    duration: 5
    save: true
    constants:
      alpha_X: 0.2
  - model: predator_prey
    duration: 2
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0644))
	return path
}

func TestLoadScenarioDefaults(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t))
	require.NoError(t, err)

	assert.Equal(t, "gate then prey", sc.Name)
	require.Len(t, sc.Steps, 2)

	gate := sc.Steps[0]
	assert.Equal(t, "gate", gate.Model)
	assert.Equal(t, 5.0, gate.Duration)
	assert.Equal(t, config.DefaultIntegrator, gate.Integrator)
	assert.Equal(t, config.DefaultDt, gate.Dt)
	assert.True(t, gate.Save)
	assert.Equal(t, map[string]float64{"alpha_X": 0.2}, gate.Constants)

	assert.False(t, sc.Steps[1].Save)
	assert.Empty(t, sc.Steps[1].Label)
}

func TestLoadScenarioErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\n"), 0644))
	_, err = LoadScenario(path)
	assert.ErrorContains(t, err, "no steps")
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t))
	require.NoError(t, err)

	st := storage.New(t.TempDir())
	r := NewRunner(experiment.NewRegistry(), st, nil)

	results, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "gate", results[0].Label)
	assert.NotEmpty(t, results[0].RunID)
	assert.Equal(t, "step2", results[1].Label)
	assert.Empty(t, results[1].RunID)

	meta, err := st.Load(results[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, 0.2, meta.Constants["alpha_X"])
}

func TestRunScenarioStopsAtFailure(t *testing.T) {
	sc := &Scenario{Steps: []Step{{Config: *config.DefaultConfig()}, {Config: *config.DefaultConfig()}}}
	sc.Steps[0].Duration = 1
	sc.Steps[1].Model = "nope"

	results, err := NewRunner(experiment.NewRegistry(), nil, nil).RunScenario(context.Background(), sc)
	assert.ErrorContains(t, err, "step 2")
	assert.Len(t, results, 1)
}

func TestRunScanSteadyStateGrowsWithAlpha(t *testing.T) {
	base := config.GetPreset("gate", "default")
	base.Duration = 60
	base.OutputEvery = 100

	r := NewRunner(experiment.NewRegistry(), nil, nil)
	points, err := r.RunScan(context.Background(), Scan{
		Base:     base,
		Constant: "alpha_X",
		Min:      0.1,
		Max:      0.5,
		Points:   5,
	}, 2)
	require.NoError(t, err)
	require.Len(t, points, 5)

	assert.InDelta(t, 0.1, points[0].Value, 1e-12)
	assert.InDelta(t, 0.5, points[4].Value, 1e-12)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Final[0], points[i-1].Final[0])
		assert.False(t, points[i].Failed)
	}
	assert.InDelta(t, 0.5, points[4].Final[0], 1e-6)
	assert.Nil(t, base.Constants, "scan must not modify the base config")
}

func TestRunScanErrors(t *testing.T) {
	r := NewRunner(experiment.NewRegistry(), nil, nil)
	base := config.DefaultConfig()

	_, err := r.RunScan(context.Background(), Scan{Base: base, Constant: "a", Min: 0, Max: 1, Points: 1}, 0)
	assert.Error(t, err)
	_, err = r.RunScan(context.Background(), Scan{Base: base, Constant: "a", Min: 1, Max: 1, Points: 3}, 0)
	assert.Error(t, err)
	_, err = r.RunScan(context.Background(), Scan{Base: base, Constant: "c", Min: 0, Max: 1, Points: 2}, 0)
	assert.Error(t, err, "c is a computed constant")
}

func TestRunMonteCarloDeterministic(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 5
	mc := MonteCarlo{Base: base, Perturbation: 0.2, Trials: 8, Seed: 42}

	r := NewRunner(experiment.NewRegistry(), nil, nil)
	first, err := r.RunMonteCarlo(context.Background(), mc, 4)
	require.NoError(t, err)
	second, err := r.RunMonteCarlo(context.Background(), mc, 1)
	require.NoError(t, err)

	require.Len(t, first, 8)
	assert.Equal(t, first, second)

	for _, tr := range first {
		assert.InDelta(t, 2.0, tr.Initial["y_s"], 0.4+1e-12)
		assert.InDelta(t, 1.0, tr.Initial["y_f"], 0.2+1e-12)
	}
	stable, unstable := MonteCarloStats(first)
	assert.Equal(t, 8, stable)
	assert.Zero(t, unstable)
}

func TestRunMonteCarloZeroStateUsesAbsoluteScale(t *testing.T) {
	base := config.GetPreset("gate", "default")
	base.Duration = 1
	r := NewRunner(experiment.NewRegistry(), nil, nil)

	trials, err := r.RunMonteCarlo(context.Background(), MonteCarlo{Base: base, Perturbation: 0.1, Trials: 4, Seed: 7}, 0)
	require.NoError(t, err)
	for _, tr := range trials {
		assert.NotZero(t, tr.Initial["X"])
		assert.LessOrEqual(t, tr.Initial["X"], 0.1)
	}
}
