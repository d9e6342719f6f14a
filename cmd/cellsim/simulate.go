package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/experiment"
	"github.com/san-kum/cellsim/internal/optim"
	"github.com/san-kum/cellsim/internal/sim"
	"github.com/san-kum/cellsim/internal/storage"
	"github.com/san-kum/cellsim/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(experiment.NewRegistry(), logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	st := store()
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(runInfo(cfg), exp.Module(), result)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	level.Info(logger).Log("msg", "run saved", "id", runID, "dir", settings.GetString("data"))

	m := exp.Module()
	fmt.Printf("run %s\n", runID)
	fmt.Printf("model: %s  integrator: %s  adaptive: %t\n", cfg.Model, cfg.Integrator, cfg.Adaptive)
	fmt.Printf("steps: %d  samples: %d  evaluations: %d  elapsed: %s\n\n",
		result.StepsTaken, len(result.Times), result.Evaluations, elapsed.Round(time.Microsecond))

	if final := result.Final(); final != nil {
		voi := m.VOIInfo()
		fmt.Printf("final state at %s = %g %s\n", voi.Name, result.Times[len(result.Times)-1], voi.Units)
		for i, info := range m.StateInfo() {
			fmt.Printf("  %-10s %14.6f  %s\n", info.Name, final[i], info.Units)
		}
		fmt.Println()
	}

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-20s %.6g\n", name, result.Metrics[name])
	}
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}

	return runErr
}

func runInfo(cfg *config.Config) storage.RunInfo {
	return storage.RunInfo{
		Model:       cfg.Model,
		Integrator:  cfg.Integrator,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Adaptive:    cfg.Adaptive,
		OutputEvery: cfg.OutputEvery,
		Constants:   cfg.Constants,
		States:      cfg.States,
	}
}

func modelInfo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	m, err := experiment.NewRegistry().GetModel(cfg.Model)
	if err != nil {
		return err
	}

	inst, err := sim.Prepare(m, cfg.Sim())
	if err != nil {
		return err
	}
	rates, err := inst.ComputeRates(0)
	if err != nil {
		return err
	}

	fmt.Println(viz.MetadataTable(m, inst.Variables))
	fmt.Println()
	voi := m.VOIInfo().Name
	for i, info := range m.StateInfo() {
		fmt.Printf("%-10s %12.6g   d%s/d%s %+.6g\n", info.Name, inst.States[i], info.Name, voi, rates[i])
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	m, err := reg.GetModel(base.Model)
	if err != nil {
		return err
	}
	_, hasInvariant := m.(dynamo.Invariant)

	fmt.Printf("comparing integrators for %s (dt=%.4f, duration=%.1f, adaptive=%t)\n\n",
		base.Model, base.Dt, base.Duration, base.Adaptive)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := []string{"INTEGRATOR"}
	for _, s := range m.StateInfo() {
		header = append(header, strings.ToUpper(s.Name))
	}
	header = append(header, "STEPS", "EVALS", "DRIFT", "TIME_MS")
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, name := range args[1:] {
		cfg := base.Clone()
		cfg.Integrator = name

		exp := experiment.New(cfg)
		if err := exp.Setup(reg, logger); err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		start := time.Now()
		result, err := exp.Run(cmd.Context())
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", name, err)
			continue
		}

		row := []string{name}
		for _, v := range result.Final() {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		drift := "-"
		if hasInvariant {
			drift = fmt.Sprintf("%.2e", result.InvariantDrift)
		}
		row = append(row,
			fmt.Sprintf("%d", result.StepsTaken),
			fmt.Sprintf("%d", result.Evaluations),
			drift,
			fmt.Sprintf("%.2f", float64(elapsed.Microseconds())/1000),
		)
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return w.Flush()
}

func sweepConstants(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("at least one --grid is required")
	}
	if metric == "" {
		return errors.New("--metric is required")
	}

	reg := experiment.NewRegistry()
	search := optim.NewGridSearch(names, ranges).WithLimit(parallel)

	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		if cfg.Constants == nil {
			cfg.Constants = make(map[string]float64, len(params))
		}
		for k, v := range params {
			cfg.Constants[k] = v
		}
		exp := experiment.New(cfg)
		if err := exp.Setup(reg, logger); err != nil {
			return nil, err
		}
		return exp, nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	best, bestValue, evals, err := search.Search(ctx, build, metric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
	for _, ev := range evals {
		row := make([]string, 0, len(names)+2)
		for _, name := range names {
			row = append(row, fmt.Sprintf("%g", ev.Params[name]))
		}
		row = append(row, fmt.Sprintf("%.6g", ev.Value))
		mark := ""
		if ev.Value == bestValue && sameParams(ev.Params, best) {
			mark = "*"
		}
		row = append(row, mark)
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func sameParams(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func listPresets(cmd *cobra.Command, args []string) error {
	models := experiment.NewRegistry().ListModels()
	if len(args) > 0 {
		models = args
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tPRESET\tINTEG\tDT\tDURATION\tOVERRIDES")
	for _, model := range models {
		for _, name := range config.ListPresets(model) {
			p := config.GetPreset(model, name)
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%s\n",
				model, name, p.Integrator, p.Dt, p.Duration, overrideSummary(p))
		}
	}
	return w.Flush()
}

func overrideSummary(cfg *config.Config) string {
	var parts []string
	for _, values := range []map[string]float64{cfg.Constants, cfg.States} {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%g", k, values[k]))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	m, err := reg.GetModel(cfg.Model)
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}

	model, err := viz.NewModel(m, integ, cfg.Sim(), tickSteps)
	if err != nil {
		return err
	}

	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(viz.Model); ok && fm.Err() != nil {
		return fm.Err()
	}
	return nil
}

// traceRun streams samples to stdout as CSV without storing the run.
func traceRun(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(experiment.NewRegistry(), logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m := exp.Module()
	header := []string{m.VOIInfo().Name}
	for _, s := range m.StateInfo() {
		header = append(header, s.Name)
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	fmt.Fprintln(out, strings.Join(header, ","))

	return exp.Simulator().RunWithCallback(ctx, cfg.Sim(), func(t float64, x dynamo.State) bool {
		row := make([]string, 0, len(x)+1)
		row = append(row, strconv.FormatFloat(t, 'g', -1, 64))
		for _, v := range x {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		_, err := fmt.Fprintln(out, strings.Join(row, ","))
		return err == nil
	})
}
