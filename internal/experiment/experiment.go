package experiment

import (
	"context"
	"errors"

	"github.com/go-kit/log"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/sim"
)

// Experiment is one configured run: a module, an integrator and the default
// metrics, built from a run config.
type Experiment struct {
	cfg       *config.Config
	module    dynamo.Module
	simulator *sim.Simulator
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg}
}

// Setup resolves the model and integrator names and prepares the metrics.
// A nil logger discards log output.
func (e *Experiment) Setup(reg *Registry, logger log.Logger, opts ...sim.Option) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	m, err := reg.GetModel(e.cfg.Model)
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}

	// The metrics need the computed constants the run will see.
	inst, err := sim.Prepare(m, e.cfg.Sim())
	if err != nil {
		return err
	}

	simOpts := []sim.Option{sim.WithLogger(logger)}
	for _, metric := range reg.DefaultMetrics(m, inst.Variables) {
		simOpts = append(simOpts, sim.WithMetric(metric))
	}
	simOpts = append(simOpts, opts...)

	e.module = m
	e.simulator = sim.New(m, integ, simOpts...)
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, errors.New("experiment not setup")
	}
	return e.simulator.Run(ctx, e.cfg.Sim())
}

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Module() dynamo.Module { return e.module }

func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
