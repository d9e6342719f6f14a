package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/san-kum/cellsim/internal/dynamo"
)

type Simulator struct {
	module     dynamo.Module
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     log.Logger
}

type Option func(*Simulator)

// WithLogger sets the run logger. A nil logger keeps the default no-op one.
func WithLogger(l log.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetric(m dynamo.Metric) Option {
	return func(s *Simulator) { s.metrics = append(s.metrics, m) }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func New(m dynamo.Module, integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		module:     m,
		integrator: integrator,
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Module() dynamo.Module { return s.module }

// Prepare allocates and initializes an Instance of m, applies the overrides
// in cfg and evaluates the computed constants.
func Prepare(m dynamo.Module, cfg dynamo.Config) (*dynamo.Instance, error) {
	inst := dynamo.NewInstance(m)
	if err := inst.Initialize(); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(cfg.Constants) {
		if err := inst.SetConstant(name, cfg.Constants[name]); err != nil {
			return nil, fmt.Errorf("override constant: %w", err)
		}
	}
	for _, name := range sortedKeys(cfg.States) {
		if err := inst.SetState(name, cfg.States[name]); err != nil {
			return nil, fmt.Errorf("override state: %w", err)
		}
	}
	if err := inst.ComputeComputedConstants(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Run integrates the module from t=0 to cfg.Duration. A cancelled context
// returns the samples recorded so far together with ctx.Err(). A non-finite
// state stops the run and is reported in Result.Errors, not as an error.
func (s *Simulator) Run(ctx context.Context, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	inst, err := Prepare(s.module, cfg)
	if err != nil {
		return nil, err
	}

	logger := log.With(s.logger, "model", s.module.Name())
	level.Debug(logger).Log("msg", "run start", "dt", cfg.Dt, "duration", cfg.Duration, "adaptive", cfg.Adaptive)

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &dynamo.Result{
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	x0 := inst.States.Clone()
	h0, hasInvariant := s.invariant(x0, inst.Variables)

	final, steps, runErr := s.loop(ctx, cfg, inst, func(smp dynamo.Sample) bool {
		result.Times = append(result.Times, smp.Time)
		result.States = append(result.States, smp.States)
		result.Rates = append(result.Rates, smp.Rates)
		result.Variables = append(result.Variables, smp.Variables)
		return true
	})
	result.StepsTaken = steps
	result.Evaluations = inst.Evaluations()

	var simErr *dynamo.SimulationError
	if errors.As(runErr, &simErr) {
		level.Warn(logger).Log("msg", "run aborted", "step", simErr.Step, "t", simErr.Time, "err", simErr.Wrapped)
		result.Errors = append(result.Errors, simErr)
		runErr = nil
	}

	if hasInvariant {
		h1, _ := s.invariant(final, inst.Variables)
		result.InvariantDrift = relativeDrift(h0, h1)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	if runErr != nil {
		level.Warn(logger).Log("msg", "run interrupted", "steps", steps, "err", runErr)
		return result, runErr
	}
	level.Info(logger).Log("msg", "run complete", "steps", steps, "samples", len(result.Times), "evaluations", result.Evaluations)
	return result, nil
}

// RunWithCallback streams every reporting point to fn instead of collecting
// a Result. Returning false from fn ends the run without error.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg dynamo.Config, fn func(t float64, states dynamo.State) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	inst, err := Prepare(s.module, cfg)
	if err != nil {
		return err
	}
	_, _, err = s.loop(ctx, cfg, inst, func(smp dynamo.Sample) bool {
		return fn(smp.Time, smp.States)
	})
	return err
}

func (s *Simulator) loop(ctx context.Context, cfg dynamo.Config, inst *dynamo.Instance, emit func(dynamo.Sample) bool) (dynamo.State, int, error) {
	every := cfg.OutputEvery
	if every == 0 {
		every = 1
	}
	// Fixed stepping takes whole steps of cfg.Dt and, when cfg.Duration is
	// not a multiple of it, one shorter step that ends exactly on it.
	steps := int(cfg.Duration/cfg.Dt + 1e-9)
	total := steps
	if cfg.Duration-float64(steps)*cfg.Dt > 1e-9*cfg.Dt {
		total++
	}
	minDt := cfg.MinDt
	if minDt <= 0 {
		minDt = 1e-12
	}
	more := func(step int, t float64) bool {
		if cfg.Adaptive {
			return cfg.Duration-t > minDt
		}
		return step < total
	}

	x := inst.States.Clone()
	t := 0.0
	dt := cfg.Dt

	smp, err := s.sample(inst, x, t)
	if err != nil {
		return x, 0, err
	}
	if !emit(smp) {
		return x, 0, nil
	}
	s.observe(x, t)

	step := 0
	for more(step, t) {
		select {
		case <-ctx.Done():
			return x, step, ctx.Err()
		default:
		}

		var newX dynamo.State
		var stepErr error
		taken := dt
		if cfg.Adaptive {
			h := math.Min(dt, cfg.Duration-t)
			var next float64
			newX, taken, next, stepErr = s.adaptiveStep(inst, x, t, h, cfg)
			if stepErr == nil && taken < minDt && cfg.Duration-t > taken {
				stepErr = dynamo.ErrStepTooSmall
			}
			dt = next
			if cfg.MaxDt > 0 && dt > cfg.MaxDt {
				dt = cfg.MaxDt
			}
		} else {
			if step == steps {
				taken = cfg.Duration - t
			}
			newX = s.integrator.Step(inst, x, t, taken)
		}

		if stepErr != nil {
			return x, step, &dynamo.SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: stepErr}
		}
		if cfg.ValidateState && !newX.IsValid() {
			return x, step, &dynamo.SimulationError{Step: step, Time: t, State: newX, Wrapped: dynamo.ErrInvalidState}
		}

		x = newX
		step++
		switch {
		case cfg.Adaptive:
			t += taken
		case step > steps:
			t = cfg.Duration
		default:
			t = float64(step) * cfg.Dt
		}
		s.observe(x, t)

		if step%every == 0 || !more(step, t) {
			smp, err := s.sample(inst, x, t)
			if err != nil {
				return x, step, err
			}
			if !emit(smp) {
				return x, step, nil
			}
		}
	}

	return x, step, nil
}

func (s *Simulator) observe(x dynamo.State, t float64) {
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
}

// sample loads x into the instance, evaluates the algebraic variables and
// hands copies to the observers.
func (s *Simulator) sample(inst *dynamo.Instance, x dynamo.State, t float64) (dynamo.Sample, error) {
	copy(inst.States, x)
	if err := inst.ComputeVariables(t); err != nil {
		return dynamo.Sample{}, err
	}
	smp := dynamo.Sample{
		Time:      t,
		States:    inst.States.Clone(),
		Rates:     inst.Rates.Clone(),
		Variables: inst.Variables.Clone(),
	}
	for _, obs := range s.observers {
		obs.OnSample(smp)
	}
	return smp, nil
}

// adaptiveStep defers to the integrator's own error control when it has one
// and falls back to step doubling otherwise.
func (s *Simulator) adaptiveStep(sys dynamo.System, x dynamo.State, t, dt float64, cfg dynamo.Config) (dynamo.State, float64, float64, error) {
	if cfg.MaxDt > 0 && dt > cfg.MaxDt {
		dt = cfg.MaxDt
	}
	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		return adaptive.StepAdaptive(sys, x, t, dt, cfg.Tolerance)
	}

	for {
		x1 := s.integrator.Step(sys, x, t, dt)
		xHalf := s.integrator.Step(sys, x, t, dt/2)
		x2 := s.integrator.Step(sys, xHalf, t+dt/2, dt/2)

		errNorm := x1.Sub(x2).Norm()
		if errNorm > cfg.Tolerance {
			if dt/2 < cfg.MinDt {
				return x, dt, dt, dynamo.ErrStepTooSmall
			}
			dt /= 2
			continue
		}

		next := dt
		if errNorm < cfg.Tolerance/10 {
			next = dt * 2
		}
		return x2, dt, next, nil
	}
}

func (s *Simulator) invariant(x dynamo.State, variables dynamo.State) (float64, bool) {
	inv, ok := s.module.(dynamo.Invariant)
	if !ok {
		return 0, false
	}
	return inv.Invariant(x, variables), true
}

func relativeDrift(h0, h1 float64) float64 {
	if h0 == 0 {
		return math.Abs(h1)
	}
	return math.Abs(h1-h0) / math.Abs(h0)
}

func validateConfig(cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for adaptive stepping")
	}
	if cfg.OutputEvery < 0 {
		return fmt.Errorf("output_every must not be negative, got %d", cfg.OutputEvery)
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
