package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/integrators"
	"github.com/san-kum/cellsim/internal/models/predatorprey"
	"github.com/san-kum/cellsim/internal/sim"
)

func runPredatorPrey(t *testing.T) *dynamo.Result {
	t.Helper()
	cfg := dynamo.DefaultConfig()
	cfg.Duration = 1.0
	cfg.OutputEvery = 10
	result, err := sim.New(predatorprey.New(), integrators.NewRK4()).Run(context.Background(), cfg)
	require.NoError(t, err)
	return result
}

var testInfo = RunInfo{Model: "predator_prey", Integrator: "rk4", Dt: 0.01, Duration: 1.0, OutputEvery: 10}

func TestStoreSaveLoad(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			st := New(t.TempDir(), WithCompression(compress))
			require.NoError(t, st.Init())

			result := runPredatorPrey(t)
			result.Metrics["bounded"] = 1

			runID, err := st.Save(testInfo, predatorprey.New(), result)
			require.NoError(t, err)
			require.NotEmpty(t, runID)

			meta, err := st.Load(runID)
			require.NoError(t, err)
			assert.Equal(t, "predator_prey", meta.Model)
			assert.Equal(t, 1.0, meta.Metrics["bounded"])
			assert.Equal(t, "thousands_of_fish", meta.StateInfo[1].Units)
			assert.Equal(t, dynamo.ComputedConstant, meta.VariableInfo[3].Type)
			assert.Equal(t, len(result.Times), meta.Samples)
			assert.InDelta(t, -0.8, meta.FinalVariables[3], 1e-15)

			states, times, err := st.LoadStates(runID)
			require.NoError(t, err)
			require.Len(t, times, len(result.Times))
			for i := range states {
				assert.Equal(t, []float64(result.States[i]), states[i], "sample %d", i)
				assert.Equal(t, result.Times[i], times[i])
			}
		})
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	result := runPredatorPrey(t)

	plainID, err := New(dir).Save(testInfo, predatorprey.New(), result)
	require.NoError(t, err)
	zstdID, err := New(dir, WithCompression(true)).Save(testInfo, predatorprey.New(), result)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, plainID, "metadata.json"))
	assert.FileExists(t, filepath.Join(dir, plainID, "states.csv"))
	assert.FileExists(t, filepath.Join(dir, zstdID, "states.csv.zst"))
	assert.NoFileExists(t, filepath.Join(dir, zstdID, "states.csv"))

	data, err := os.ReadFile(filepath.Join(dir, plainID, "states.csv"))
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "time,y_s,y_f,dy_s/dtime,dy_f/dtime", header)
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, st.Init())
	result := runPredatorPrey(t)
	first, err := st.Save(testInfo, predatorprey.New(), result)
	require.NoError(t, err)
	second, err := st.Save(testInfo, predatorprey.New(), result)
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}

func TestStoreSaveNonFinite(t *testing.T) {
	st := New(t.TempDir())
	result := runPredatorPrey(t)
	result.Metrics["invariant_drift"] = math.NaN()
	result.Metrics["amplitude_y_s"] = math.Inf(1)
	result.Metrics["bounded"] = 0
	result.InvariantDrift = math.NaN()
	result.Variables[len(result.Variables)-1][0] = math.Inf(-1)

	runID, err := st.Save(testInfo, predatorprey.New(), result)
	require.NoError(t, err)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(meta.Metrics["invariant_drift"]))
	assert.True(t, math.IsInf(meta.Metrics["amplitude_y_s"], 1))
	assert.Equal(t, 0.0, meta.Metrics["bounded"])
	assert.True(t, math.IsNaN(meta.InvariantDrift))
	assert.True(t, math.IsInf(meta.FinalVariables[0], -1))
	assert.InDelta(t, -0.8, meta.FinalVariables[3], 1e-15)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStoreSaveExtinctPrey(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.Duration = 1.0
	cfg.States = map[string]float64{"y_s": 0}
	result, err := sim.New(predatorprey.New(), integrators.NewRK4()).Run(context.Background(), cfg)
	require.NoError(t, err)
	require.True(t, math.IsNaN(result.InvariantDrift), "ln(0) makes the invariant undefined")

	info := testInfo
	info.States = cfg.States
	st := New(t.TempDir())
	runID, err := st.Save(info, predatorprey.New(), result)
	require.NoError(t, err)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(meta.InvariantDrift))
	assert.Equal(t, 0.0, meta.States["y_s"])
}

func TestStoreSaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	result := runPredatorPrey(t)
	result.States[2] = dynamo.State{1}

	_, err := st.Save(testInfo, predatorprey.New(), result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStoreListSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	_, err := st.Save(testInfo, predatorprey.New(), runPredatorPrey(t))
	require.NoError(t, err)

	hidden := filepath.Join(dir, ".saving-left-over")
	require.NoError(t, os.Mkdir(hidden, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "metadata.json"), []byte(`{"id":"x"}`), 0644))

	runs, err := st.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStoreLoadMissing(t *testing.T) {
	_, err := New(t.TempDir()).Load("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestWriteJSON(t *testing.T) {
	result := runPredatorPrey(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testInfo, predatorprey.New(), result))

	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "rk4", data.Integrator)
	assert.Equal(t, "y_f", data.StateInfo[1].Name)
	assert.Len(t, data.States, len(result.States))
	assert.Len(t, data.Variables, len(result.Variables))
	assert.InDelta(t, 1.2, float64(data.Rates[0][0]), 1e-12)
}

func TestWriteJSONNonFinite(t *testing.T) {
	result := runPredatorPrey(t)
	result.Metrics["invariant_drift"] = math.NaN()
	result.States[1][0] = math.Inf(1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testInfo, predatorprey.New(), result))

	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.True(t, math.IsNaN(float64(data.Metrics["invariant_drift"])))
	assert.True(t, math.IsInf(float64(data.States[1][0]), 1))
	assert.Equal(t, 2.0, float64(data.States[0][0]))
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	result := runPredatorPrey(t)

	require.NoError(t, ExportCSV(path, predatorprey.New(), result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, len(result.Times)+1)
	assert.True(t, strings.HasPrefix(lines[1], "0,2,1,"), "first row: %s", lines[1])
}
