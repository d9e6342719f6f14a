package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/cellsim/internal/dynamo"
)

const (
	metadataFile   = "metadata.json"
	statesFile     = "states.csv"
	compressedFile = "states.csv.zst"
)

// ErrRunNotFound is returned for a run id with no metadata on disk.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir  string
	compress bool
}

type Option func(*Store)

// WithCompression writes state tables as zstd-compressed CSV.
func WithCompression(enabled bool) Option {
	return func(s *Store) { s.compress = enabled }
}

func New(baseDir string, opts ...Option) *Store {
	s := &Store{baseDir: baseDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was configured.
type RunInfo struct {
	Model       string             `json:"model"`
	Integrator  string             `json:"integrator"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Adaptive    bool               `json:"adaptive"`
	OutputEvery int                `json:"output_every"`
	Constants   map[string]float64 `json:"constants,omitempty"`
	States      map[string]float64 `json:"states,omitempty"`
}

type RunMetadata struct {
	RunInfo
	ID             string                `json:"id"`
	Timestamp      time.Time             `json:"timestamp"`
	VOI            dynamo.Info           `json:"voi"`
	StateInfo      []dynamo.Info         `json:"state_info"`
	VariableInfo   []dynamo.VariableInfo `json:"variable_info"`
	FinalVariables []float64             `json:"final_variables,omitempty"`
	Metrics        map[string]float64    `json:"metrics"`
	InvariantDrift float64               `json:"invariant_drift"`
	StepsTaken     int                   `json:"steps_taken"`
	Evaluations    int                   `json:"evaluations"`
	Samples        int                   `json:"samples"`
	Errors         []string              `json:"errors,omitempty"`
	StatesFile     string                `json:"states_file"`
}

// MarshalJSON writes the float fields that may hold NaN or infinities as
// Number. The outer fields shadow the embedded ones of the same name.
func (m RunMetadata) MarshalJSON() ([]byte, error) {
	type plain RunMetadata
	return json.Marshal(struct {
		plain
		Constants      map[string]Number `json:"constants,omitempty"`
		States         map[string]Number `json:"states,omitempty"`
		FinalVariables []Number          `json:"final_variables,omitempty"`
		Metrics        map[string]Number `json:"metrics"`
		InvariantDrift Number            `json:"invariant_drift"`
	}{
		plain:          plain(m),
		Constants:      toNumberMap(m.Constants),
		States:         toNumberMap(m.States),
		FinalVariables: toNumbers(m.FinalVariables),
		Metrics:        toNumberMap(m.Metrics),
		InvariantDrift: Number(m.InvariantDrift),
	})
}

func (m *RunMetadata) UnmarshalJSON(data []byte) error {
	type plain RunMetadata
	aux := struct {
		*plain
		Constants      map[string]Number `json:"constants,omitempty"`
		States         map[string]Number `json:"states,omitempty"`
		FinalVariables []Number          `json:"final_variables,omitempty"`
		Metrics        map[string]Number `json:"metrics"`
		InvariantDrift Number            `json:"invariant_drift"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Constants = fromNumberMap(aux.Constants)
	m.States = fromNumberMap(aux.States)
	m.FinalVariables = fromNumbers(aux.FinalVariables)
	m.Metrics = fromNumberMap(aux.Metrics)
	m.InvariantDrift = float64(aux.InvariantDrift)
	return nil
}

// Save writes the metadata and the state table of one run and returns its id.
// Columns are the variable of integration, the states and then their rates.
// The run is written to a hidden directory and renamed into place, so a
// failed save leaves nothing behind.
func (s *Store) Save(info RunInfo, m dynamo.Module, result *dynamo.Result) (id string, err error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", info.Model, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", err
	}
	tmpDir, err := os.MkdirTemp(s.baseDir, ".saving-"+runID+"-")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmpDir)
		}
	}()

	name := statesFile
	if s.compress {
		name = compressedFile
	}

	meta := RunMetadata{
		RunInfo:        info,
		ID:             runID,
		Timestamp:      now,
		VOI:            m.VOIInfo(),
		StateInfo:      m.StateInfo(),
		VariableInfo:   m.VariableInfo(),
		Metrics:        result.Metrics,
		InvariantDrift: result.InvariantDrift,
		StepsTaken:     result.StepsTaken,
		Evaluations:    result.Evaluations,
		Samples:        len(result.Times),
		StatesFile:     name,
	}
	if len(result.Variables) > 0 {
		meta.FinalVariables = result.Variables[len(result.Variables)-1]
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(tmpDir, metadataFile), meta); err != nil {
		return "", fmt.Errorf("write %s metadata: %w", runID, err)
	}
	if err := s.writeStates(filepath.Join(tmpDir, name), m, result); err != nil {
		return "", fmt.Errorf("write %s states: %w", runID, err)
	}
	if err := os.Rename(tmpDir, runDir); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

func (s *Store) writeStates(path string, m dynamo.Module, result *dynamo.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var out io.Writer = f
	var enc *zstd.Encoder
	if s.compress {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		out = enc
	}

	if err := WriteCSV(out, m, result); err != nil {
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return f.Close()
}

// WriteCSV writes the sample table of result with headers taken from the
// module metadata.
func WriteCSV(out io.Writer, m dynamo.Module, result *dynamo.Result) error {
	w := csv.NewWriter(out)

	header := []string{m.VOIInfo().Name}
	states := m.StateInfo()
	for _, st := range states {
		header = append(header, st.Name)
	}
	for _, st := range states {
		header = append(header, "d"+st.Name+"/d"+m.VOIInfo().Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	if len(result.Times) != len(result.States) {
		return fmt.Errorf("%d times but %d samples: %w", len(result.Times), len(result.States), dynamo.ErrDimensionMismatch)
	}
	for i := range result.States {
		if len(result.States[i]) != len(states) {
			return fmt.Errorf("sample %d: %w", i, dynamo.ErrDimensionMismatch)
		}
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if i < len(result.Rates) && len(result.Rates[i]) > 0 {
			if len(result.Rates[i]) != len(states) {
				return fmt.Errorf("sample %d rates: %w", i, dynamo.ErrDimensionMismatch)
			}
			for _, val := range result.Rates[i] {
				row = append(row, formatFloat(val))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", runID, err)
	}

	return &meta, nil
}

// LoadStates reads back the sample times and state vectors of a run. Rate
// columns are skipped.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, meta.StatesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var in io.Reader = file
	if meta.StatesFile == compressedFile {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, err
		}
		defer dec.Close()
		in = dec
	}

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	n := len(meta.StateInfo)
	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) < n+1 {
			return nil, nil, fmt.Errorf("row %d: expected at least %d columns, got %d", i+1, n+1, len(record))
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		state := make([]float64, n)
		for j := range state {
			if state[j], err = strconv.ParseFloat(record[j+1], 64); err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		times = append(times, t)
		states = append(states, state)
	}

	return states, times, nil
}
