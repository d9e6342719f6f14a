package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/logging"
	"github.com/san-kum/cellsim/internal/storage"
)

var (
	settings = viper.New()
	logger   = log.NewNopLogger()

	dt             float64
	duration       float64
	integrator     string
	outputEvery    int
	adaptive       bool
	tolerance      float64
	configFile     string
	preset         string
	constOverrides map[string]string
	stateOverrides map[string]string

	xAxis     int
	yAxis     int
	svgPath   string
	outPath   string
	metric    string
	grid      []string
	parallel  int
	tickSteps int

	scanConstant string
	scanMin      float64
	scanMax      float64
	scanPoints   int
	trials       int
	perturbation float64
	seed         int64
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cellsim",
		Short:        "simulate generated cell models",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(os.Stderr, settings.GetString("log_level"))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("data", ".cellsim", "data directory")
	flags.String("log-level", "warn", "log level (debug, info, warn, error, none)")
	flags.Bool("compress", false, "store state tables as zstd-compressed csv")

	settings.SetEnvPrefix("CELLSIM")
	settings.AutomaticEnv()
	_ = settings.BindPFlag("data", flags.Lookup("data"))
	_ = settings.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = settings.BindPFlag("compress", flags.Lookup("compress"))

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a simulation and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	infoCmd := &cobra.Command{
		Use:   "info [model]",
		Short: "show the variable table of a model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  modelInfo,
	}
	addRunFlags(infoCmd)

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the states of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the time series to an svg file")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "draw the phase portrait of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x", 0, "state index on the x axis")
	phaseCmd.Flags().IntVar(&yAxis, "y", 1, "state index on the y axis")
	phaseCmd.Flags().StringVar(&svgPath, "svg", "", "also write the trajectory to an svg file")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectral analysis of every state",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [model] [integrator...]",
		Short: "run one configuration with several integrators",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareIntegrators,
	}
	addRunFlags(compareCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "grid search over constants minimizing a metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepConstants,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&grid, "grid", nil, "constant grid, e.g. --grid alpha_X=0.05,0.1,0.5")
	sweepCmd.Flags().StringVar(&metric, "metric", "", "metric to minimize")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = GOMAXPROCS)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run with rates and variables as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the state table of a run as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "integrate a model interactively in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&tickSteps, "steps-per-frame", 5, "integration steps per frame")

	scanCmd := &cobra.Command{
		Use:   "scan [model]",
		Short: "vary one constant over an evenly spaced range",
		Args:  cobra.MaximumNArgs(1),
		RunE:  scanRun,
	}
	addRunFlags(scanCmd)
	scanCmd.Flags().StringVar(&scanConstant, "constant", "", "constant to vary")
	scanCmd.Flags().Float64Var(&scanMin, "min", 0, "first value")
	scanCmd.Flags().Float64Var(&scanMax, "max", 1, "last value")
	scanCmd.Flags().IntVar(&scanPoints, "points", 11, "number of values")
	scanCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = GOMAXPROCS)")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [model]",
		Short: "monte carlo runs with perturbed initial states",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addRunFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	ensembleCmd.Flags().Float64Var(&perturbation, "perturb", 0.1, "relative perturbation of the initial states")
	ensembleCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	ensembleCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent runs (0 = GOMAXPROCS)")

	traceCmd := &cobra.Command{
		Use:   "trace [model]",
		Short: "stream samples to stdout as csv without storing",
		Args:  cobra.MaximumNArgs(1),
		RunE:  traceRun,
	}
	addRunFlags(traceCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a yaml scenario in order",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, listCmd, infoCmd, plotCmd, phaseCmd, analyzeCmd,
		compareCmd, sweepCmd, scanCmd, ensembleCmd, scenarioCmd, traceCmd, presetsCmd,
		exportJSONCmd, exportCSVCmd, liveCmd)

	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	cmd.Flags().IntVar(&outputEvery, "output-every", config.DefaultOutputEvery, "record every n-th step")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "adaptive stepping")
	cmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive error tolerance")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringToStringVar(&constOverrides, "set", nil, "override a constant, e.g. --set a=1.5")
	cmd.Flags().StringToStringVar(&stateOverrides, "init", nil, "override an initial state, e.g. --init y_f=0.5")
}

func store() *storage.Store {
	return storage.New(settings.GetString("data"), storage.WithCompression(settings.GetBool("compress")))
}

// resolveConfig layers a preset, a config file and the changed flags, in
// that order. A model argument wins over both files.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (available: %s)",
				preset, cfg.Model, strings.Join(config.ListPresets(cfg.Model), ", "))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Model = args[0]
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("output-every") {
		cfg.OutputEvery = outputEvery
	}
	if flags.Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}

	var err error
	if cfg.Constants, err = mergeOverrides(cfg.Constants, constOverrides); err != nil {
		return nil, fmt.Errorf("--set: %w", err)
	}
	if cfg.States, err = mergeOverrides(cfg.States, stateOverrides); err != nil {
		return nil, fmt.Errorf("--init: %w", err)
	}

	return cfg, cfg.Validate()
}

func mergeOverrides(dst map[string]float64, raw map[string]string) (map[string]float64, error) {
	if len(raw) == 0 {
		return dst, nil
	}
	if dst == nil {
		dst = make(map[string]float64, len(raw))
	}
	for name, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		dst[name] = v
	}
	return dst, nil
}

// parseGrid reads name=v1,v2,... entries into parallel name and value lists.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("invalid grid %q, want name=v1,v2", entry)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}
