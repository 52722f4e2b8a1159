package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"linkagelab/internal/linkage"
	"linkagelab/internal/mech"
)

const (
	DefaultDt       = 0.005
	DefaultDuration = 10.0
	DefaultCrank    = math.Pi / 4
)

type Config struct {
	Linkage   linkage.Params  `yaml:"linkage"`
	Stepper   string          `yaml:"stepper"`
	Dt        float64         `yaml:"dt"`
	Duration  float64         `yaml:"duration"`
	Seed      int64           `yaml:"seed"`
	InitState InitStateConfig `yaml:"init_state"`
	Solver    SolverConfig    `yaml:"solver"`
}

// InitStateConfig picks a start on the closed branch by crank angle.
// The parallelogram family (theta, pi-theta, theta) satisfies the loop
// closure for every crank angle, so these two numbers always give a
// consistent state.
type InitStateConfig struct {
	Crank     float64 `yaml:"crank"`
	CrankRate float64 `yaml:"crank_rate"`
}

type SolverConfig struct {
	MaxIter int     `yaml:"max_iter"`
	Tol     float64 `yaml:"tol"`
	Mu      float64 `yaml:"mu"`
	Rho     float64 `yaml:"rho"`
}

func DefaultConfig() *Config {
	return &Config{
		Linkage:  linkage.DefaultParams(),
		Stepper:  "symplectic_euler",
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		InitState: InitStateConfig{
			Crank: DefaultCrank,
		},
		Solver: SolverConfig{
			MaxIter: 100,
			Tol:     1e-10,
			Mu:      1e-4,
			Rho:     1e-10,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
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
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt=%g", mech.ErrParameterBounds, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration=%g", mech.ErrParameterBounds, c.Duration)
	}
	if c.Solver.MaxIter < 1 {
		return fmt.Errorf("%w: solver max_iter=%d", mech.ErrParameterBounds, c.Solver.MaxIter)
	}
	return c.Linkage.Validate()
}

// GetInitState returns joint positions and velocities on the closed
// branch for the configured crank angle and rate.
func (c *Config) GetInitState() (mech.Vector, mech.Vector) {
	th := c.InitState.Crank
	w := c.InitState.CrankRate
	q := mech.Vector{th, math.Pi - th, th}
	v := mech.Vector{w, -w, w}
	return q, v
}

func (c *Config) SimConfig() mech.Config {
	return mech.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Seed:          c.Seed,
		ValidateState: true,
	}
}
