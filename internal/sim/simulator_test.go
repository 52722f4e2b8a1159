package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"linkagelab/internal/mech"
	"linkagelab/internal/metrics"
)

// oscillator is a unit harmonic oscillator, qdd = -q, energy (q²+v²)/2.
type oscillator struct{}

func (oscillator) Energy(q, v mech.Vector) float64 {
	return 0.5 * (q[0]*q[0] + v[0]*v[0])
}

func (oscillator) Violation(q mech.Vector) float64 { return 0 }

func oscillatorAccel(q, v, tau mech.Vector, t float64) (mech.Vector, error) {
	return mech.Vector{-q[0] + tau[0]}, nil
}

type eulerStepper struct{}

func (eulerStepper) Step(q, v, tau mech.Vector, t, dt float64, accel mech.Accel) (mech.Vector, mech.Vector, error) {
	a, err := accel(q, v, tau, t)
	if err != nil {
		return nil, nil, err
	}
	newV := v.Add(a.Scale(dt))
	newQ := q.Add(newV.Scale(dt))
	return newQ, newV, nil
}

func newTestSimulator() *Simulator {
	return New(oscillator{}, oscillatorAccel, eulerStepper{})
}

func TestRunCompletes(t *testing.T) {
	s := newTestSimulator()
	cfg := mech.Config{Dt: 0.01, Duration: 1.0, ValidateState: true}
	result, err := s.Run(context.Background(), mech.Vector{1}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StepsTaken != 100 {
		t.Errorf("steps = %d, want 100", result.StepsTaken)
	}
	if len(result.Positions) != 101 {
		t.Errorf("positions = %d, want 101", len(result.Positions))
	}
	if len(result.Violations) != len(result.Times) {
		t.Error("violations and times lengths differ")
	}
}

func TestRunOscillatorPhysics(t *testing.T) {
	s := newTestSimulator()
	cfg := mech.Config{Dt: 1e-3, Duration: 2 * math.Pi, ValidateState: true}
	result, err := s.Run(context.Background(), mech.Vector{1}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// after one period the oscillator is back near q=1
	last := result.Positions[len(result.Positions)-1]
	if math.Abs(last[0]-1) > 0.02 {
		t.Errorf("q after one period = %v, want ~1", last[0])
	}
	if result.EnergyDrift > 0.02 {
		t.Errorf("energy drift = %v, want small", result.EnergyDrift)
	}
}

func TestRunContextCancellation(t *testing.T) {
	s := newTestSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := mech.Config{Dt: 0.01, Duration: 10}
	result, err := s.Run(ctx, mech.Vector{1}, mech.Vector{0}, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result")
	}
	if result.StepsTaken != 0 {
		t.Errorf("steps = %d, want 0", result.StepsTaken)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	s := newTestSimulator()
	cases := []mech.Config{
		{Dt: 0, Duration: 1},
		{Dt: -0.01, Duration: 1},
		{Dt: 0.01, Duration: 0},
	}
	for _, cfg := range cases {
		if _, err := s.Run(context.Background(), mech.Vector{0}, mech.Vector{0}, cfg); !errors.Is(err, mech.ErrParameterBounds) {
			t.Errorf("cfg %+v: expected ErrParameterBounds, got %v", cfg, err)
		}
	}
}

func TestRunDimensionMismatch(t *testing.T) {
	s := newTestSimulator()
	cfg := mech.Config{Dt: 0.01, Duration: 1}
	if _, err := s.Run(context.Background(), mech.Vector{0, 0}, mech.Vector{0}, cfg); !errors.Is(err, mech.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRunNaNGuard(t *testing.T) {
	s := New(oscillator{}, func(q, v, tau mech.Vector, t float64) (mech.Vector, error) {
		return mech.Vector{math.NaN()}, nil
	}, eulerStepper{})
	cfg := mech.Config{Dt: 0.01, Duration: 1, ValidateState: true}
	result, err := s.Run(context.Background(), mech.Vector{0}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected a recorded state error")
	}
	if !errors.Is(result.Errors[0], mech.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", result.Errors[0])
	}
	if result.StepsTaken != 0 {
		t.Errorf("steps = %d, want 0 after immediate NaN", result.StepsTaken)
	}
}

func TestRunStepErrorRecorded(t *testing.T) {
	boom := errors.New("accel failed")
	s := New(oscillator{}, func(q, v, tau mech.Vector, t float64) (mech.Vector, error) {
		return nil, boom
	}, eulerStepper{})
	cfg := mech.Config{Dt: 0.01, Duration: 1}
	result, err := s.Run(context.Background(), mech.Vector{0}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], boom) {
		t.Fatalf("expected wrapped accel error, got %v", result.Errors)
	}
}

func TestRunCollectsMetrics(t *testing.T) {
	s := newTestSimulator()
	s.AddMetric(metrics.NewEnergy(oscillator{}))
	s.AddMetric(metrics.NewStability(10))
	cfg := mech.Config{Dt: 0.01, Duration: 1}
	result, err := s.Run(context.Background(), mech.Vector{1}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.Metrics["mean_energy"]; !ok {
		t.Error("missing mean_energy metric")
	}
	if got := result.Metrics["stability"]; got != 1 {
		t.Errorf("stability = %v, want 1", got)
	}
}

func TestRunAppliedTorque(t *testing.T) {
	s := newTestSimulator().WithTorque(func(q, v mech.Vector, t float64) mech.Vector {
		return mech.Vector{1.0}
	})
	cfg := mech.Config{Dt: 1e-3, Duration: 4 * math.Pi}
	result, err := s.Run(context.Background(), mech.Vector{0}, mech.Vector{0}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// constant unit torque shifts the oscillator equilibrium to q=1;
	// over whole periods the mean position sits there
	sum := 0.0
	for _, q := range result.Positions {
		sum += q[0]
	}
	mean := sum / float64(len(result.Positions))
	if math.Abs(mean-1) > 0.05 {
		t.Errorf("mean position = %v, want near 1", mean)
	}
}

type stepCounter struct{ n int }

func (c *stepCounter) OnStep(q, v mech.Vector, t float64) { c.n++ }

func TestRunNotifiesObservers(t *testing.T) {
	s := newTestSimulator()
	counter := &stepCounter{}
	s.AddObserver(counter)
	cfg := mech.Config{Dt: 0.01, Duration: 0.5}
	if _, err := s.Run(context.Background(), mech.Vector{0}, mech.Vector{0}, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter.n != 50 {
		t.Errorf("observer calls = %d, want 50", counter.n)
	}
}
