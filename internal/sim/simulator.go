package sim

import (
	"context"
	"fmt"
	"math"

	"linkagelab/internal/mech"
)

// System is the mechanism under simulation: it reports energy and the
// loop-closure violation for diagnostics.
type System interface {
	Energy(q, v mech.Vector) float64
	Violation(q mech.Vector) float64
}

// TorqueFunc supplies the applied joint torque at each step.
type TorqueFunc func(q, v mech.Vector, t float64) mech.Vector

// Simulator advances a constrained mechanism and records the trajectory.
type Simulator struct {
	system    System
	accel     mech.Accel
	stepper   mech.Stepper
	torque    TorqueFunc
	metrics   []mech.Metric
	observers []mech.Observer
}

func New(system System, accel mech.Accel, stepper mech.Stepper) *Simulator {
	return &Simulator{
		system:  system,
		accel:   accel,
		stepper: stepper,
	}
}

func (s *Simulator) AddMetric(m mech.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o mech.Observer) { s.observers = append(s.observers, o) }

// WithTorque installs an applied-torque source; the default is zero
// torque, free motion under gravity.
func (s *Simulator) WithTorque(fn TorqueFunc) *Simulator {
	s.torque = fn
	return s
}

func (s *Simulator) validateConfig(cfg mech.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt=%g", mech.ErrParameterBounds, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration=%g", mech.ErrParameterBounds, cfg.Duration)
	}
	return nil
}

// Run integrates from (q0, v0) over cfg.Duration. The context is checked
// every step; on cancellation the partial result is returned with the
// context error.
func (s *Simulator) Run(ctx context.Context, q0, v0 mech.Vector, cfg mech.Config) (*mech.Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(q0) != len(v0) {
		return nil, fmt.Errorf("%w: nq=%d nv=%d", mech.ErrDimensionMismatch, len(q0), len(v0))
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &mech.Result{
		Positions:  make([]mech.Vector, 0, steps+1),
		Velocities: make([]mech.Vector, 0, steps+1),
		Times:      make([]float64, 0, steps+1),
		Violations: make([]float64, 0, steps+1),
		Metrics:    make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	q := q0.Clone()
	v := v0.Clone()
	t := 0.0

	record := func() {
		result.Positions = append(result.Positions, q.Clone())
		result.Velocities = append(result.Velocities, v.Clone())
		result.Times = append(result.Times, t)
		result.Violations = append(result.Violations, s.system.Violation(q))
	}
	record()

	initialEnergy := s.system.Energy(q, v)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		tau := make(mech.Vector, len(q))
		if s.torque != nil {
			tau = s.torque(q, v, t)
		}

		for _, m := range s.metrics {
			m.Observe(q, v, t)
		}
		for _, o := range s.observers {
			o.OnStep(q, v, t)
		}

		newQ, newV, err := s.stepper.Step(q, v, tau, t, cfg.Dt, s.accel)
		if err != nil {
			result.Errors = append(result.Errors, &mech.StepError{Step: i, Time: t, Wrapped: err})
			break
		}

		if cfg.ValidateState && (!newQ.IsValid() || !newV.IsValid()) {
			result.Errors = append(result.Errors,
				mech.SimError{Time: t, Step: i, Err: mech.ErrInvalidState})
			break
		}

		q, v = newQ, newV
		t += cfg.Dt
		result.StepsTaken++
		record()
	}

	finalEnergy := s.system.Energy(q, v)
	if initialEnergy != 0 && !math.IsNaN(finalEnergy) {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}
