// Package mech provides core primitives for constrained multibody simulation.
//
// The package defines the joint-space [Vector] type and the interfaces the
// rest of the module is wired through:
//
//   - [Accel]: constrained forward dynamics oracle
//   - [Stepper]: one-step numerical integrator over (q, v)
//   - [Metric] and [Observer]: per-step instrumentation
//   - [EnergyComputer]: mechanical energy for drift tracking
//
// # Example
//
//	fb := linkage.NewFourBar(linkage.DefaultParams())
//	cd := dynamics.NewConstrained(fb.Model, fb.Constraint, mu)
//	s := sim.New(fb, cd, dynamics.NewSemiImplicitEuler())
//	result, _ := s.Run(ctx, q0, v0, cfg)
//
// Simulator instances are not safe for concurrent use.
package mech
