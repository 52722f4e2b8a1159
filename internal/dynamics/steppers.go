package dynamics

import (
	"fmt"

	"linkagelab/internal/mech"
)

// SemiImplicitEuler updates the velocity first and then advances the
// configuration with the new velocity. This is the scheme used by the
// reference mechanism simulation.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler { return &SemiImplicitEuler{} }

func (s *SemiImplicitEuler) Step(q, v, tau mech.Vector, t, dt float64, accel mech.Accel) (mech.Vector, mech.Vector, error) {
	a, err := accel(q, v, tau, t)
	if err != nil {
		return nil, nil, err
	}
	v2 := v.Add(a.Scale(dt))
	q2 := q.Add(v2.Scale(dt))
	return q2, v2, nil
}

// RK4 is a classic fourth-order step over the (q, v) pair. The
// constraint solve runs once per stage.
type RK4 struct{}

func NewRK4() *RK4 { return &RK4{} }

func (r *RK4) Step(q, v, tau mech.Vector, t, dt float64, accel mech.Accel) (mech.Vector, mech.Vector, error) {
	a1, err := accel(q, v, tau, t)
	if err != nil {
		return nil, nil, err
	}

	q2 := q.Add(v.Scale(dt / 2))
	v2 := v.Add(a1.Scale(dt / 2))
	a2, err := accel(q2, v2, tau, t+dt/2)
	if err != nil {
		return nil, nil, err
	}

	q3 := q.Add(v2.Scale(dt / 2))
	v3 := v.Add(a2.Scale(dt / 2))
	a3, err := accel(q3, v3, tau, t+dt/2)
	if err != nil {
		return nil, nil, err
	}

	q4 := q.Add(v3.Scale(dt))
	v4 := v.Add(a3.Scale(dt))
	a4, err := accel(q4, v4, tau, t+dt)
	if err != nil {
		return nil, nil, err
	}

	dq := v.Add(v2.Scale(2)).Add(v3.Scale(2)).Add(v4).Scale(dt / 6)
	dv := a1.Add(a2.Scale(2)).Add(a3.Scale(2)).Add(a4).Scale(dt / 6)
	return q.Add(dq), v.Add(dv), nil
}

// NewStepper resolves a stepper by its configuration name.
func NewStepper(name string) (mech.Stepper, error) {
	switch name {
	case "symplectic_euler", "euler":
		return NewSemiImplicitEuler(), nil
	case "rk4":
		return NewRK4(), nil
	default:
		return nil, fmt.Errorf("unknown stepper: %s", name)
	}
}
