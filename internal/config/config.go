package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cellsim/internal/dynamo"
)

const (
	DefaultModel       = "predator_prey"
	DefaultIntegrator  = "rk4"
	DefaultDt          = 0.01
	DefaultDuration    = 50.0
	DefaultOutputEvery = 1
	DefaultTolerance   = 1e-6
)

// Config is a YAML run description. Constants and States override the
// module's initial values by metadata name.
type Config struct {
	Model       string             `yaml:"model"`
	Integrator  string             `yaml:"integrator"`
	Dt          float64            `yaml:"dt"`
	Duration    float64            `yaml:"duration"`
	OutputEvery int                `yaml:"output_every"`
	Adaptive    bool               `yaml:"adaptive"`
	Tolerance   float64            `yaml:"tolerance"`
	Constants   map[string]float64 `yaml:"constants,omitempty"`
	States      map[string]float64 `yaml:"states,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:       DefaultModel,
		Integrator:  DefaultIntegrator,
		Dt:          DefaultDt,
		Duration:    DefaultDuration,
		OutputEvery: DefaultOutputEvery,
		Tolerance:   DefaultTolerance,
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of a copy of base. Keys missing from the file
// keep base's values and the override maps are merged.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Integrator == "" {
		errs = append(errs, errors.New("integrator is required"))
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %g", c.Duration))
	}
	if c.OutputEvery < 0 {
		errs = append(errs, fmt.Errorf("output_every must not be negative, got %d", c.OutputEvery))
	}
	if c.Adaptive && c.Tolerance <= 0 {
		errs = append(errs, errors.New("tolerance must be positive for adaptive stepping"))
	}
	return errors.Join(errs...)
}

// Sim converts the run description into simulator settings.
func (c *Config) Sim() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.Dt = c.Dt
	cfg.Duration = c.Duration
	cfg.OutputEvery = c.OutputEvery
	cfg.Adaptive = c.Adaptive
	if c.Tolerance > 0 {
		cfg.Tolerance = c.Tolerance
	}
	if c.Dt > cfg.MaxDt {
		cfg.MaxDt = c.Dt
	}
	cfg.Constants = copyValues(c.Constants)
	cfg.States = copyValues(c.States)
	return cfg
}

func (c *Config) Clone() *Config {
	out := *c
	out.Constants = copyValues(c.Constants)
	out.States = copyValues(c.States)
	return &out
}

func copyValues(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
