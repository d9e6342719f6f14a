package experiment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/cellsim/internal/dynamo"
	"github.com/san-kum/cellsim/internal/integrators"
	"github.com/san-kum/cellsim/internal/metrics"
	"github.com/san-kum/cellsim/internal/models/gate"
	"github.com/san-kum/cellsim/internal/models/predatorprey"
)

// Registry maps model and integrator names to constructors. Every lookup
// returns a fresh value, so parallel runs never share an integrator.
type Registry struct {
	models      map[string]func() dynamo.Module
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() dynamo.Module),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.models[predatorprey.Name] = func() dynamo.Module { return predatorprey.New() }
	r.models[gate.Name] = func() dynamo.Module { return gate.New() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	return r
}

func (r *Registry) GetModel(name string) (dynamo.Module, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %s)", name, strings.Join(r.ListModels(), ", "))
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %s)", name, strings.Join(r.ListIntegrators(), ", "))
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedNames(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedNames(r.integrators)
}

// DefaultMetrics returns the metrics reported for every run of m. variables
// must hold m's constants and computed constants.
func (r *Registry) DefaultMetrics(m dynamo.Module, variables dynamo.State) []dynamo.Metric {
	out := []dynamo.Metric{metrics.NewBounded(1e6)}
	for i, s := range m.StateInfo() {
		out = append(out, metrics.NewExtrema(i, s.Name))
	}
	if inv, ok := m.(dynamo.Invariant); ok {
		out = append(out, metrics.NewInvariantDrift(inv, variables))
	}
	return out
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
