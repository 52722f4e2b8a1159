package closure

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/mech"
	"linkagelab/internal/multibody"
	"linkagelab/internal/planar"
)

func fourBarChain() (*multibody.Model, *Point) {
	m := multibody.New(planar.Vec2{Y: -9.81})

	lengths := []float64{0.6, 1.0, 0.6}
	masses := []float64{5, 10, 5}
	offsets := []planar.Vec2{{X: 0.5}, {X: 0.6}, {X: 1.0}}

	for i := range lengths {
		jid := m.AddJoint(planar.Transform{R: planar.Identity(), P: offsets[i]}, "link")
		inertia := masses[i] * (lengths[i]*lengths[i] + 0.01) / 12
		if err := m.AppendBody(jid, masses[i], planar.Vec2{X: lengths[i] / 2}, inertia); err != nil {
			panic(err)
		}
	}

	c := &Point{
		Link:        2,
		LocalAnchor: planar.Vec2{X: 0.6},
		BaseAnchor:  planar.Vec2{X: -0.5},
		Corrector:   CriticallyDamped(10),
	}
	return m, c
}

func TestEvaluateClosedConfiguration(t *testing.T) {
	m, c := fourBarChain()
	d := m.NewData()

	q := mech.Vector{math.Pi / 2, math.Pi / 2, math.Pi / 2}
	if err := m.ForwardKinematics(d, q, make(mech.Vector, 3)); err != nil {
		t.Fatal(err)
	}

	if v := c.Evaluate(m, d); v.Norm() > 1e-10 {
		t.Errorf("expected closed loop, got violation (%g,%g)", v.X, v.Y)
	}
}

func TestEvaluateOpenConfiguration(t *testing.T) {
	m, c := fourBarChain()
	d := m.NewData()

	if err := m.ForwardKinematics(d, m.Neutral(), make(mech.Vector, 3)); err != nil {
		t.Fatal(err)
	}

	// Fully stretched chain: tip at (2.7, 0), target at (-0.5, 0).
	v := c.Evaluate(m, d)
	if math.Abs(v.X-3.2) > 1e-12 || math.Abs(v.Y) > 1e-12 {
		t.Errorf("expected violation (3.2,0), got (%g,%g)", v.X, v.Y)
	}
}

func TestJacobianFiniteDifference(t *testing.T) {
	m, c := fourBarChain()
	q := mech.Vector{1.2, 0.4, -0.6}
	zero := make(mech.Vector, 3)

	d := m.NewData()
	if err := m.ForwardKinematics(d, q, zero); err != nil {
		t.Fatal(err)
	}
	j := c.Jacobian(m, d)

	h := 1e-7
	for k := 0; k < 3; k++ {
		qp, qm := q.Clone(), q.Clone()
		qp[k] += h
		qm[k] -= h

		dp, dm := m.NewData(), m.NewData()
		if err := m.ForwardKinematics(dp, qp, zero); err != nil {
			t.Fatal(err)
		}
		if err := m.ForwardKinematics(dm, qm, zero); err != nil {
			t.Fatal(err)
		}

		fd := c.Evaluate(m, dp).Sub(c.Evaluate(m, dm)).Scale(1 / (2 * h))
		if math.Abs(fd.X-j.At(0, k)) > 1e-6 || math.Abs(fd.Y-j.At(1, k)) > 1e-6 {
			t.Errorf("column %d: fd (%g,%g) vs jacobian (%g,%g)",
				k, fd.X, fd.Y, j.At(0, k), j.At(1, k))
		}
	}
}

func TestBiasVanishesClosedAtRest(t *testing.T) {
	m, c := fourBarChain()
	d := m.NewData()

	q := mech.Vector{math.Pi / 2, math.Pi / 2, math.Pi / 2}
	v := make(mech.Vector, 3)
	if err := m.ForwardKinematics(d, q, v); err != nil {
		t.Fatal(err)
	}

	if b := c.Bias(m, d, v); b.Norm() > 1e-9 {
		t.Errorf("expected zero bias at rest in closed configuration, got (%g,%g)", b.X, b.Y)
	}
}

func TestKKTSolveRecoversSaddleSystem(t *testing.T) {
	// Small fixed system checked against direct dense solve.
	M := mat.NewSymDense(3, []float64{
		4, 1, 0,
		1, 3, 0.5,
		0, 0.5, 2,
	})
	J := mat.NewDense(2, 3, []float64{
		1, 0, 1,
		0, 1, -1,
	})
	mu := 1e-6

	k := NewKKT()
	if err := k.Compute(M, J, mu); err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	b1 := mech.Vector{0.3, -0.7}
	b2 := mech.Vector{1, 2, 3}
	y, x, err := k.Solve(b1, b2)
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	// Check both block equations of the saddle system.
	for i := 0; i < 2; i++ {
		row := -mu * y[i]
		for l := 0; l < 3; l++ {
			row += J.At(i, l) * x[l]
		}
		if math.Abs(row-b1[i]) > 1e-9 {
			t.Errorf("constraint row %d: got %g, want %g", i, row, b1[i])
		}
	}
	for i := 0; i < 3; i++ {
		row := 0.0
		for l := 0; l < 2; l++ {
			row += J.At(l, i) * y[l]
		}
		for l := 0; l < 3; l++ {
			row += M.At(i, l) * x[l]
		}
		if math.Abs(row-b2[i]) > 1e-9 {
			t.Errorf("joint row %d: got %g, want %g", i, row, b2[i])
		}
	}
}

func TestKKTDimensionChecks(t *testing.T) {
	M := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	J := mat.NewDense(2, 3, nil)

	k := NewKKT()
	if err := k.Compute(M, J, 0); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestCriticallyDamped(t *testing.T) {
	c := CriticallyDamped(10)
	if c.Kp != 10 {
		t.Errorf("expected kp 10, got %g", c.Kp)
	}
	if math.Abs(c.Kd-2*math.Sqrt(10)) > 1e-12 {
		t.Errorf("expected kd 2*sqrt(10), got %g", c.Kd)
	}
}
