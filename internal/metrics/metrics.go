// Package metrics provides run-level diagnostics accumulated step by step.
package metrics

import (
	"math"

	"linkagelab/internal/mech"
)

// Energy tracks the mean total mechanical energy over a run.
type Energy struct {
	computer mech.EnergyComputer
	sum      float64
	count    int
}

func NewEnergy(c mech.EnergyComputer) *Energy { return &Energy{computer: c} }

func (m *Energy) Name() string { return "mean_energy" }

func (m *Energy) Observe(q, v mech.Vector, t float64) {
	m.sum += m.computer.Energy(q, v)
	m.count++
}

func (m *Energy) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

func (m *Energy) Reset() { m.sum, m.count = 0, 0 }

// EnergyDrift tracks the relative deviation of energy from its initial value.
type EnergyDrift struct {
	computer mech.EnergyComputer
	initial  float64
	maxDrift float64
	started  bool
}

func NewEnergyDrift(c mech.EnergyComputer) *EnergyDrift { return &EnergyDrift{computer: c} }

func (m *EnergyDrift) Name() string { return "energy_drift" }

func (m *EnergyDrift) Observe(q, v mech.Vector, t float64) {
	e := m.computer.Energy(q, v)
	if !m.started {
		m.initial = e
		m.started = true
		return
	}
	if m.initial == 0 {
		return
	}
	d := math.Abs(e-m.initial) / math.Abs(m.initial)
	if d > m.maxDrift {
		m.maxDrift = d
	}
}

func (m *EnergyDrift) Value() float64 { return m.maxDrift }

func (m *EnergyDrift) Reset() { m.initial, m.maxDrift, m.started = 0, 0, false }

// Violation tracks the worst closure violation seen over a run.
type Violation struct {
	eval func(q mech.Vector) float64
	max  float64
}

func NewViolation(eval func(q mech.Vector) float64) *Violation {
	return &Violation{eval: eval}
}

func (m *Violation) Name() string { return "max_violation" }

func (m *Violation) Observe(q, v mech.Vector, t float64) {
	if c := m.eval(q); c > m.max {
		m.max = c
	}
}

func (m *Violation) Value() float64 { return m.max }

func (m *Violation) Reset() { m.max = 0 }

// Stability reports the fraction of steps whose velocity norm stays under
// a threshold.
type Stability struct {
	threshold float64
	stable    int
	total     int
}

func NewStability(threshold float64) *Stability { return &Stability{threshold: threshold} }

func (m *Stability) Name() string { return "stability" }

func (m *Stability) Observe(q, v mech.Vector, t float64) {
	m.total++
	if v.Norm() < m.threshold {
		m.stable++
	}
}

func (m *Stability) Value() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.stable) / float64(m.total)
}

func (m *Stability) Reset() { m.stable, m.total = 0, 0 }
