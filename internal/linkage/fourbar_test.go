package linkage

import (
	"math"
	"testing"

	"linkagelab/internal/mech"
)

func TestNewFourBarDefault(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if fb.Model.NV() != 3 {
		t.Errorf("expected 3 joints, got %d", fb.Model.NV())
	}
	if len(fb.Geometry) != 4 {
		t.Errorf("expected 4 capsules, got %d", len(fb.Geometry))
	}
	if fb.Constraint.Dim() != 2 {
		t.Errorf("expected constraint dim 2, got %d", fb.Constraint.Dim())
	}
	if math.Abs(fb.Constraint.Corrector.Kd-2*math.Sqrt(10)) > 1e-12 {
		t.Errorf("expected critically damped corrector, kd=%g", fb.Constraint.Corrector.Kd)
	}
}

func TestNewFourBarValidation(t *testing.T) {
	p := DefaultParams()
	p.LinkA.Mass = 0
	if _, err := NewFourBar(p); err == nil {
		t.Error("expected error for zero mass")
	}

	p = DefaultParams()
	p.CorrectorKp = -1
	if _, err := NewFourBar(p); err == nil {
		t.Error("expected error for negative gain")
	}
}

func TestClosedGuessClosesDefaultLinkage(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	// Default proportions form a parallelogram; the guess is exact.
	if v := fb.Violation(fb.ClosedGuess()); v > 1e-10 {
		t.Errorf("expected closed configuration, violation %g", v)
	}
}

func TestNeutralIsOpen(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	if v := fb.Violation(fb.Model.Neutral()); math.Abs(v-3.2) > 1e-10 {
		t.Errorf("expected stretched-chain violation 3.2, got %g", v)
	}
}

func TestJointPoints(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	pts, err := fb.JointPoints(fb.ClosedGuess())
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 5 {
		t.Fatalf("expected 5 points, got %d", len(pts))
	}

	// Closed loop: the last point returns to the first.
	if pts[4].Sub(pts[0]).Norm() > 1e-10 {
		t.Errorf("loop not closed: start (%g,%g), end (%g,%g)",
			pts[0].X, pts[0].Y, pts[4].X, pts[4].Y)
	}
}

func TestBoxInertia(t *testing.T) {
	got := BoxInertia(12, 1, 0.5)
	want := 12 * (1 + 0.25) / 12.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, got)
	}
}

func TestEnergyAtRestIsPotentialOnly(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	q := fb.ClosedGuess()
	v := make(mech.Vector, 3)

	// COMs: B1 at (0.5, 0.3), A2 at (0, 0.6), B2 at (-0.5, 0.3).
	want := 9.81 * (5*0.3 + 10*0.6 + 5*0.3)
	if got := fb.Energy(q, v); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected potential energy %g, got %g", want, got)
	}
}

func TestSetParam(t *testing.T) {
	fb, err := NewFourBar(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	if err := fb.SetParam("kp", 40); err != nil {
		t.Fatal(err)
	}
	if math.Abs(fb.Constraint.Corrector.Kd-2*math.Sqrt(40)) > 1e-12 {
		t.Errorf("kd not rederived: %g", fb.Constraint.Corrector.Kd)
	}

	if err := fb.SetParam("bogus", 1); err == nil {
		t.Error("expected error for unknown param")
	}
}
