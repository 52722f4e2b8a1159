package planar

import (
	"math"
	"testing"
)

func TestRot2Apply(t *testing.T) {
	r := NewRot2(math.Pi / 2)
	v := r.Apply(Vec2{1, 0})

	if math.Abs(v.X) > 1e-12 || math.Abs(v.Y-1) > 1e-12 {
		t.Errorf("expected (0,1), got (%f,%f)", v.X, v.Y)
	}
}

func TestRot2ComposeInverse(t *testing.T) {
	r := NewRot2(0.7)
	id := r.Compose(r.Inverse())

	if math.Abs(id.C-1) > 1e-12 || math.Abs(id.S) > 1e-12 {
		t.Errorf("expected identity, got c=%f s=%f", id.C, id.S)
	}
}

func TestTransformCompose(t *testing.T) {
	a := NewTransform(math.Pi/2, Vec2{1, 0})
	b := NewTransform(0, Vec2{1, 0})

	// b's origin seen through a: rotate (1,0) by 90deg then shift.
	p := a.Compose(b).P
	if math.Abs(p.X-1) > 1e-12 || math.Abs(p.Y-1) > 1e-12 {
		t.Errorf("expected (1,1), got (%f,%f)", p.X, p.Y)
	}
}

func TestTransformInverseRoundTrip(t *testing.T) {
	tr := NewTransform(0.3, Vec2{2, -1})
	pt := Vec2{0.5, 0.25}

	back := tr.Inverse().Apply(tr.Apply(pt))
	if back.Sub(pt).Norm() > 1e-12 {
		t.Errorf("round trip failed: got (%f,%f)", back.X, back.Y)
	}
}

func TestPerpIsVelocityDirection(t *testing.T) {
	v := Vec2{3, 4}
	p := v.Perp()

	if p.Dot(v) != 0 {
		t.Error("perp should be orthogonal")
	}
	if Cross(v, p) <= 0 {
		t.Error("perp should be a +90 degree rotation")
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{2 * math.Pi, 0},
		{-7 * math.Pi / 2, math.Pi / 2},
	}

	for _, tt := range tests {
		got := WrapAngle(tt.in)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("WrapAngle(%f): expected %f, got %f", tt.in, tt.want, got)
		}
	}
}
