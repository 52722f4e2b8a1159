package config

import (
	"math"

	"linkagelab/internal/linkage"
)

var Presets = map[string]*Config{
	"drop": {
		Linkage: linkage.DefaultParams(), Stepper: "symplectic_euler",
		Dt: 0.005, Duration: 10.0,
		InitState: InitStateConfig{Crank: math.Pi / 4},
	},
	"spin": {
		Linkage: linkage.DefaultParams(), Stepper: "symplectic_euler",
		Dt: 0.002, Duration: 15.0,
		InitState: InitStateConfig{Crank: math.Pi / 2, CrankRate: 4.0},
	},
	"gentle": {
		Linkage: linkage.DefaultParams(), Stepper: "rk4",
		Dt: 0.005, Duration: 20.0,
		InitState: InitStateConfig{Crank: math.Pi/2 - 0.1},
	},
	"fine": {
		Linkage: linkage.DefaultParams(), Stepper: "rk4",
		Dt: 0.001, Duration: 10.0,
		InitState: InitStateConfig{Crank: math.Pi / 4},
	},
	"loose": {
		Linkage: looseParams(), Stepper: "symplectic_euler",
		Dt: 0.005, Duration: 10.0,
		InitState: InitStateConfig{Crank: math.Pi / 4},
	},
}

func looseParams() linkage.Params {
	p := linkage.DefaultParams()
	p.CorrectorKp = 1.0
	return p
}

// GetPreset returns a copy of the named preset, so callers can layer
// overrides on it without touching the shared table.
func GetPreset(name string) *Config {
	stored, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *stored
	if cfg.Solver.MaxIter == 0 {
		cfg.Solver = DefaultConfig().Solver
	}
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
