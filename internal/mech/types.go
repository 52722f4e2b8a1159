package mech

import (
	"fmt"
	"math"
)

// Vector is a configuration, velocity, or torque vector over the joint space.
type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (v Vector) NormInf() float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func (v Vector) Add(o Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] + o[i]
	}
	return r
}

func (v Vector) Sub(o Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] - o[i]
	}
	return r
}

func (v Vector) Scale(s float64) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] * s
	}
	return r
}

// Accel computes joint accelerations for the current configuration and
// velocity under an applied torque. Implemented by the constrained forward
// dynamics; steppers only see this.
type Accel func(q, v, tau Vector, t float64) (Vector, error)

// Stepper advances (q, v) by one timestep using an acceleration oracle.
type Stepper interface {
	Step(q, v, tau Vector, t, dt float64, accel Accel) (Vector, Vector, error)
}

// Metric accumulates a scalar observation over a simulation run.
type Metric interface {
	Name() string
	Observe(q, v Vector, t float64)
	Value() float64
	Reset()
}

// Observer receives every simulation step, for live views and recorders.
type Observer interface {
	OnStep(q, v Vector, t float64)
}

// EnergyComputer reports total mechanical energy for drift tracking.
type EnergyComputer interface {
	Energy(q, v Vector) float64
}

// Configurable exposes runtime-tunable parameters to the live view.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Config holds simulation run parameters.
type Config struct {
	Dt            float64
	Duration      float64
	Seed          int64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            5e-3,
		Duration:      10.0,
		ValidateState: true,
	}
}

// Result collects the trajectory and diagnostics of a run.
type Result struct {
	Positions  []Vector
	Velocities []Vector
	Times      []float64
	// Violations is the closure constraint norm at each recorded step.
	Violations  []float64
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Errors      []error
}

// SimError carries step context for failures inside the run loop.
type SimError struct {
	Time float64
	Step int
	Err  error
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e SimError) Unwrap() error { return e.Err }
