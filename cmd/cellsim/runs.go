package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cellsim/internal/analysis"
	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/experiment"
	"github.com/san-kum/cellsim/internal/export"
	"github.com/san-kum/cellsim/internal/sim"
	"github.com/san-kum/cellsim/internal/storage"
)

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := store().List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tDURATION\tDT\tINTEG\tSAMPLES\tERRORS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g %s\t%g\t%s\t%d\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.VOI.Units,
			run.Dt,
			run.Integrator,
			run.Samples,
			len(run.Errors),
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, [][]float64, []float64, error) {
	st := store()
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	states, times, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(states) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, states, times, nil
}

// replayRun rebuilds the rates and algebraic variables of a stored run from
// its state table and recorded overrides.
func replayRun(runID string) (*storage.RunMetadata, dynamo.Module, *dynamo.Result, error) {
	meta, states, times, err := loadRun(runID)
	if err != nil {
		return nil, nil, nil, err
	}
	m, err := experiment.NewRegistry().GetModel(meta.Model)
	if err != nil {
		return nil, nil, nil, err
	}

	cfg := dynamo.Config{
		Dt:        meta.Dt,
		Duration:  meta.Duration,
		Constants: meta.Constants,
		States:    meta.States,
	}
	result, err := sim.Replay(m, cfg, times, states)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	result.Metrics = meta.Metrics
	result.InvariantDrift = meta.InvariantDrift
	result.StepsTaken = meta.StepsTaken
	result.Evaluations = meta.Evaluations

	return meta, m, result, nil
}

func column(states [][]float64, idx int) []float64 {
	out := make([]float64, len(states))
	for i, s := range states {
		out[i] = s[idx]
	}
	return out
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\nmodel: %s\n\n", meta.ID, meta.Model)

	series := make([][]float64, len(meta.StateInfo))
	for i, info := range meta.StateInfo {
		series[i] = column(states, i)
		graph := asciigraph.Plot(series[i],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s (%s) vs %s (%s)", info.Name, info.Units, meta.VOI.Name, meta.VOI.Units)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if svgPath != "" {
		svg := export.TimeSeriesToSVG(times, series, 800, 400)
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, states, _, err := loadRun(args[0])
	if err != nil {
		return err
	}

	dim := len(meta.StateInfo)
	if xAxis < 0 || xAxis >= dim || yAxis < 0 || yAxis >= dim {
		return fmt.Errorf("axis out of range: %s has %d states", meta.Model, dim)
	}

	portrait := &analysis.PhasePortrait2D{
		XIndex: xAxis,
		YIndex: yAxis,
		XLabel: meta.StateInfo[xAxis].Name,
		YLabel: meta.StateInfo[yAxis].Name,
		Points: make([]analysis.Point, len(states)),
	}
	for i, s := range states {
		portrait.Points[i] = analysis.Point{X: s[xAxis], Y: s[yAxis]}
	}

	fmt.Printf("phase portrait: %s\n\n", meta.ID)
	fmt.Println(analysis.PhasePortraitToASCII(portrait, 70, 25))

	if svgPath != "" {
		svg := export.TrajectoryToSVG(portrait.Points, 600, 600, export.DefaultPalette[0])
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, states, times, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("model: %s\n\n", meta.Model)

	uniform := analysis.IsUniform(times, 1e-6)
	if !uniform {
		fmt.Println("samples are unevenly spaced, resampling onto a uniform grid")
	}

	for i, info := range meta.StateInfo {
		data := column(states, i)
		h := 0.0
		if len(times) > 1 {
			h = times[1] - times[0]
		}
		if !uniform {
			if data, h, err = analysis.Resample(times, data, len(times)); err != nil {
				return err
			}
		}

		period, err := analysis.DominantPeriod(data, h)
		switch {
		case errors.Is(err, analysis.ErrShortSeries):
			return err
		case err != nil:
			fmt.Printf("%-10s no oscillation (%v)\n", info.Name, err)
			continue
		}
		fmt.Printf("%-10s period %.4g %s  frequency %.4g 1/%s\n", info.Name, period, meta.VOI.Units, 1/period, meta.VOI.Units)

		if i == 0 {
			ps := analysis.PowerSpectrum(data)
			if n := len(ps) / 4; n > 1 {
				fmt.Println()
				fmt.Println(asciigraph.Plot(ps[:n],
					asciigraph.Height(12),
					asciigraph.Width(80),
					asciigraph.Caption("power spectrum ("+info.Name+")"),
				))
				fmt.Println()
			}
		}
	}

	if len(meta.StateInfo) < 2 {
		return nil
	}
	return poincare(meta, column(states, 0))
}

// poincare integrates the stored configuration again and cuts the
// trajectory where the first state rises through its mean.
func poincare(meta *storage.RunMetadata, first []float64) error {
	reg := experiment.NewRegistry()
	m, err := reg.GetModel(meta.Model)
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(meta.Integrator)
	if err != nil {
		return err
	}
	inst, err := sim.Prepare(m, dynamo.Config{Constants: meta.Constants, States: meta.States})
	if err != nil {
		return err
	}

	threshold := floats.Sum(first) / float64(len(first))
	section := analysis.GeneratePoincareSection(inst, integ, 0, threshold, 0, 1, meta.Dt, meta.Duration)

	fmt.Printf("\npoincare section: %s rising through %.4g (%d crossings)\n",
		meta.StateInfo[0].Name, threshold, len(section.Times))
	if p := section.MeanPeriod(); p > 0 {
		fmt.Printf("mean return time %.4g %s\n", p, meta.VOI.Units)
	}
	fmt.Println(analysis.PoincareSectionToASCII(section, 50, 12))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, m, result, err := replayRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.ExportJSONStdout(meta.RunInfo, m, result)
	}
	if err := storage.ExportJSON(outPath, meta.RunInfo, m, result); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, m, result, err := replayRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.WriteCSV(os.Stdout, m, result)
	}
	if err := storage.ExportCSV(outPath, m, result); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outPath)
	return nil
}
