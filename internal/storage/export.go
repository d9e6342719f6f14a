package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/cellsim/internal/dynamo"
)

// ExportData is the JSON form of a full trajectory. Sample values are Number
// so that a diverged run still encodes.
type ExportData struct {
	RunInfo
	VOI          dynamo.Info           `json:"voi"`
	StateInfo    []dynamo.Info         `json:"state_info"`
	VariableInfo []dynamo.VariableInfo `json:"variable_info"`
	Steps        int                   `json:"steps"`
	Times        []Number              `json:"times"`
	States       [][]Number            `json:"states"`
	Rates        [][]Number            `json:"rates"`
	Variables    [][]Number            `json:"variables"`
	Metrics      map[string]Number     `json:"metrics"`
}

func NewExportData(info RunInfo, m dynamo.Module, result *dynamo.Result) ExportData {
	return ExportData{
		RunInfo:      info,
		VOI:          m.VOIInfo(),
		StateInfo:    m.StateInfo(),
		VariableInfo: m.VariableInfo(),
		Steps:        result.StepsTaken,
		Times:        toNumbers(result.Times),
		States:       rows(result.States),
		Rates:        rows(result.Rates),
		Variables:    rows(result.Variables),
		Metrics:      toNumberMap(result.Metrics),
	}
}

func rows(in []dynamo.State) [][]Number {
	out := make([][]Number, len(in))
	for i, s := range in {
		out[i] = toNumbers(s)
	}
	return out
}

// WriteJSON encodes the full trajectory of a run, indented.
func WriteJSON(w io.Writer, info RunInfo, m dynamo.Module, result *dynamo.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(info, m, result))
}

func ExportJSON(path string, info RunInfo, m dynamo.Module, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, info, m, result); err != nil {
		return err
	}
	return file.Close()
}

func ExportJSONStdout(info RunInfo, m dynamo.Module, result *dynamo.Result) error {
	return WriteJSON(os.Stdout, info, m, result)
}

func ExportCSV(path string, m dynamo.Module, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteCSV(file, m, result); err != nil {
		return err
	}
	return file.Close()
}
