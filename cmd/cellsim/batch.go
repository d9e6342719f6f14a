package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/cellsim/internal/automation"
	"github.com/san-kum/cellsim/internal/experiment"
)

func scanRun(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if scanConstant == "" {
		return errors.New("--constant is required")
	}

	reg := experiment.NewRegistry()
	m, err := reg.GetModel(base.Model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := automation.NewRunner(reg, nil, logger)
	points, err := r.RunScan(ctx, automation.Scan{
		Base:     base,
		Constant: scanConstant,
		Min:      scanMin,
		Max:      scanMax,
		Points:   scanPoints,
	}, parallel)
	if err != nil {
		return err
	}

	var metricNames []string
	if len(points) > 0 {
		for name := range points[0].Metrics {
			metricNames = append(metricNames, name)
		}
		sort.Strings(metricNames)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := []string{strings.ToUpper(scanConstant)}
	for _, s := range m.StateInfo() {
		header = append(header, "FINAL_"+strings.ToUpper(s.Name))
	}
	for _, name := range metricNames {
		header = append(header, strings.ToUpper(name))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, p := range points {
		row := []string{fmt.Sprintf("%g", p.Value)}
		for _, v := range p.Final {
			row = append(row, fmt.Sprintf("%.6g", v))
		}
		for _, name := range metricNames {
			row = append(row, fmt.Sprintf("%.4g", p.Metrics[name]))
		}
		if p.Failed {
			row = append(row, "failed")
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := automation.NewRunner(experiment.NewRegistry(), nil, logger)
	results, err := r.RunMonteCarlo(ctx, automation.MonteCarlo{
		Base:         base,
		Perturbation: perturbation,
		Trials:       trials,
		Seed:         seed,
	}, parallel)
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("%s: %d trials, perturbation %g, seed %d\n", base.Model, trials, perturbation, seed)
	fmt.Printf("stable: %d  unstable: %d\n", stable, unstable)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := automation.NewRunner(experiment.NewRegistry(), store(), logger)
	results, err := r.RunScenario(ctx, sc)

	if sc.Name != "" {
		fmt.Printf("scenario: %s\n", sc.Name)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSAMPLES\tSTEPS\tERRORS\tRUN")
	for _, sr := range results {
		runID := sr.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", sr.Label, len(sr.Result.Times), sr.Result.StepsTaken, len(sr.Result.Errors), runID)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
