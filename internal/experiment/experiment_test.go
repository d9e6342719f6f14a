package experiment

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kit/log"

	"github.com/san-kum/cellsim/internal/config"
	"github.com/san-kum/cellsim/internal/dynamo"
)

func TestRegistryLookups(t *testing.T) {
	reg := NewRegistry()

	if got := reg.ListModels(); len(got) != 2 || got[0] != "gate" || got[1] != "predator_prey" {
		t.Errorf("ListModels() = %v", got)
	}
	if got := reg.ListIntegrators(); len(got) != 3 || got[0] != "euler" || got[2] != "rk45" {
		t.Errorf("ListIntegrators() = %v", got)
	}

	m, err := reg.GetModel("predator_prey")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if m.Name() != "predator_prey" {
		t.Errorf("unexpected module %s", m.Name())
	}

	a, _ := reg.GetIntegrator("rk4")
	b, _ := reg.GetIntegrator("rk4")
	if a == b {
		t.Error("integrators must not be shared between lookups")
	}
}

func TestRegistryUnknownNames(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.GetModel("lorenz")
	if err == nil || !strings.Contains(err.Error(), "predator_prey") {
		t.Errorf("expected error listing available models, got %v", err)
	}
	_, err = reg.GetIntegrator("verlet")
	if err == nil || !strings.Contains(err.Error(), "rk45") {
		t.Errorf("expected error listing available integrators, got %v", err)
	}
}

func TestDefaultMetrics(t *testing.T) {
	reg := NewRegistry()

	pp, _ := reg.GetModel("predator_prey")
	names := metricNames(reg.DefaultMetrics(pp, dynamo.State{1.2, -0.6, 0.3, -0.8}))
	for _, want := range []string{"bounded", "amplitude_y_s", "amplitude_y_f", "invariant_drift"} {
		if !names[want] {
			t.Errorf("predator_prey metrics missing %s: %v", want, names)
		}
	}

	g, _ := reg.GetModel("gate")
	names = metricNames(reg.DefaultMetrics(g, dynamo.State{0.1, 0.5}))
	if names["invariant_drift"] {
		t.Error("gate has no invariant")
	}
}

func metricNames(ms []dynamo.Metric) map[string]bool {
	out := make(map[string]bool)
	for _, m := range ms {
		out[m.Name()] = true
	}
	return out
}

func TestExperimentRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 10

	exp := New(cfg)
	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("expected error before setup")
	}

	if err := exp.Setup(NewRegistry(), log.NewNopLogger()); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Metrics["bounded"] != 1.0 {
		t.Errorf("populations should stay bounded, got %v", result.Metrics["bounded"])
	}
	if result.Metrics["amplitude_y_f"] <= 0 {
		t.Error("expected the fish population to oscillate")
	}
	if drift := result.Metrics["invariant_drift"]; drift > 1e-4 {
		t.Errorf("invariant drift too large: %e", drift)
	}
}

func TestExperimentSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown model", func(c *config.Config) { c.Model = "lorenz" }},
		{"unknown integrator", func(c *config.Config) { c.Integrator = "verlet" }},
		{"invalid dt", func(c *config.Config) { c.Dt = 0 }},
		{"bad override", func(c *config.Config) { c.Constants = map[string]float64{"c": 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if err := New(cfg).Setup(NewRegistry(), log.NewNopLogger()); err == nil {
				t.Error("expected setup error")
			}
		})
	}
}

func TestExperimentNilLogger(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 1

	exp := New(cfg)
	if err := exp.Setup(NewRegistry(), nil); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Times) == 0 {
		t.Error("expected samples")
	}
}
