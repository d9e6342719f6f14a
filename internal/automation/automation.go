package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/experiment"
	"github.com/san-kum/cellsim/internal/sim"
	"github.com/san-kum/cellsim/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one run of a scenario. Keys it leaves out take the values of
// config.DefaultConfig.
type Step struct {
	config.Config `yaml:",inline"`
	Label         string `yaml:"label"`
	Save          bool   `yaml:"save"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type plain Step
	p := plain{Config: *config.DefaultConfig()}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	return nil
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	return &scenario, nil
}

// Runner executes batches of experiments. A nil Store disables saving.
type Runner struct {
	Registry *experiment.Registry
	Store    *storage.Store
	Logger   log.Logger
}

func NewRunner(reg *experiment.Registry, st *storage.Store, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{Registry: reg, Store: st, Logger: logger}
}

func (r *Runner) run(ctx context.Context, cfg *config.Config) (*experiment.Experiment, *dynamo.Result, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(r.Registry, r.Logger); err != nil {
		return nil, nil, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return exp, result, nil
}

// StepResult is the outcome of one scenario step. RunID is empty for steps
// that were not saved.
type StepResult struct {
	Label  string
	RunID  string
	Result *dynamo.Result
}

// RunScenario executes all steps in order and stops at the first failure.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		label := step.Label
		if label == "" {
			label = fmt.Sprintf("step%d", i+1)
		}
		level.Info(r.Logger).Log("msg", "scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "label", label, "model", step.Model)

		cfg := step.Config.Clone()
		exp, result, err := r.run(ctx, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, label, err)
		}

		sr := StepResult{Label: label, Result: result}
		if step.Save && r.Store != nil {
			if err := r.Store.Init(); err != nil {
				return results, err
			}
			info := storage.RunInfo{
				Model:       cfg.Model,
				Integrator:  cfg.Integrator,
				Dt:          cfg.Dt,
				Duration:    cfg.Duration,
				Adaptive:    cfg.Adaptive,
				OutputEvery: cfg.OutputEvery,
				Constants:   cfg.Constants,
				States:      cfg.States,
			}
			if sr.RunID, err = r.Store.Save(info, exp.Module(), result); err != nil {
				return results, fmt.Errorf("step %d (%s) save: %w", i+1, label, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// Scan varies one constant over Points evenly spaced values in [Min, Max].
type Scan struct {
	Base     *config.Config
	Constant string
	Min      float64
	Max      float64
	Points   int
}

// ScanPoint holds the outcome of one scanned value.
type ScanPoint struct {
	Value   float64
	Final   dynamo.State
	Metrics map[string]float64
	Failed  bool
}

// RunScan runs every value of the scan in parallel, at most limit at a time.
func (r *Runner) RunScan(ctx context.Context, scan Scan, limit int) ([]ScanPoint, error) {
	if scan.Points < 2 {
		return nil, errors.New("scan needs at least two points")
	}
	if scan.Max <= scan.Min {
		return nil, fmt.Errorf("scan range [%g, %g] is empty", scan.Min, scan.Max)
	}

	values := floats.Span(make([]float64, scan.Points), scan.Min, scan.Max)
	points := make([]ScanPoint, len(values))

	err := dynamo.Sweep(ctx, len(values), limit, func(ctx context.Context, idx int) error {
		cfg := scan.Base.Clone()
		if cfg.Constants == nil {
			cfg.Constants = make(map[string]float64, 1)
		}
		cfg.Constants[scan.Constant] = values[idx]

		_, result, err := r.run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s=%g: %w", scan.Constant, values[idx], err)
		}
		points[idx] = ScanPoint{
			Value:   values[idx],
			Final:   result.Final(),
			Metrics: result.Metrics,
			Failed:  len(result.Errors) > 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return points, nil
}

// MonteCarlo perturbs every initial state by a uniform relative amount in
// [-Perturbation, Perturbation]. States that start at zero are perturbed on
// an absolute scale instead.
type MonteCarlo struct {
	Base         *config.Config
	Perturbation float64
	Trials       int
	Seed         int64
}

// Trial holds the outcome of one Monte Carlo run.
type Trial struct {
	ID      int
	Initial map[string]float64
	Final   dynamo.State
	Stable  bool
}

// RunMonteCarlo executes the trials in parallel. Trial i draws from a source
// seeded with Seed+i, so results do not depend on scheduling.
func (r *Runner) RunMonteCarlo(ctx context.Context, mc MonteCarlo, limit int) ([]Trial, error) {
	if mc.Trials < 1 {
		return nil, errors.New("monte carlo needs at least one trial")
	}

	m, err := r.Registry.GetModel(mc.Base.Model)
	if err != nil {
		return nil, err
	}
	inst, err := sim.Prepare(m, mc.Base.Sim())
	if err != nil {
		return nil, err
	}
	names := m.StateInfo()
	base := inst.States.Clone()

	trials := make([]Trial, mc.Trials)
	err = dynamo.Sweep(ctx, mc.Trials, limit, func(ctx context.Context, idx int) error {
		rng := rand.New(rand.NewSource(mc.Seed + int64(idx)))

		cfg := mc.Base.Clone()
		cfg.States = make(map[string]float64, len(names))
		for i, info := range names {
			scale := math.Abs(base[i])
			if scale == 0 {
				scale = 1
			}
			cfg.States[info.Name] = base[i] + (rng.Float64()-0.5)*2*mc.Perturbation*scale
		}

		_, result, err := r.run(ctx, cfg)
		if err != nil {
			return fmt.Errorf("trial %d: %w", idx, err)
		}

		trials[idx] = Trial{
			ID:      idx,
			Initial: cfg.States,
			Final:   result.Final(),
			Stable:  len(result.Errors) == 0 && result.Metrics["bounded"] == 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stable, unstable := MonteCarloStats(trials)
	level.Info(r.Logger).Log("msg", "monte carlo complete", "model", mc.Base.Model, "stable", stable, "unstable", unstable)
	return trials, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(trials []Trial) (stableCount int, unstableCount int) {
	for _, t := range trials {
		if t.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
