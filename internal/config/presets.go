package config

import "sort"

var Presets = map[string]map[string]*Config{
	"predator_prey": {
		"default": {
			Model: "predator_prey", Integrator: "rk4", Dt: 0.01, Duration: 50.0, OutputEvery: 1,
		},
		"fish_boom": {
			Model: "predator_prey", Integrator: "rk4", Dt: 0.01, Duration: 50.0, OutputEvery: 1,
			States: map[string]float64{"y_f": 3.0},
		},
		"shark_heavy": {
			Model: "predator_prey", Integrator: "rk4", Dt: 0.01, Duration: 50.0, OutputEvery: 1,
			States: map[string]float64{"y_s": 4.0},
		},
		"hungry": {
			Model: "predator_prey", Integrator: "rk45", Dt: 0.05, Duration: 80.0, OutputEvery: 1,
			Adaptive: true, Tolerance: 1e-8,
			Constants: map[string]float64{"b": -1.2},
		},
	},
	"gate": {
		"default": {
			Model: "gate", Integrator: "rk4", Dt: 0.01, Duration: 20.0, OutputEvery: 1,
		},
		"open": {
			Model: "gate", Integrator: "rk4", Dt: 0.01, Duration: 20.0, OutputEvery: 1,
			States: map[string]float64{"X": 1.0},
		},
		"slow": {
			Model: "gate", Integrator: "rk4", Dt: 0.05, Duration: 100.0, OutputEvery: 2,
			Constants: map[string]float64{"alpha_X": 0.02, "beta_X": 0.1},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
