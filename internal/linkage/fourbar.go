// Package linkage assembles closed-chain mechanisms over the open-chain
// multibody core. The four-bar here reproduces the classic mechanism:
// a fixed ground bar, two short side links, and a long coupler, with the
// loop closed by a point constraint between the last link's tip and the
// far ground pivot.
package linkage

import (
	"fmt"
	"math"

	"linkagelab/internal/closure"
	"linkagelab/internal/mech"
	"linkagelab/internal/multibody"
	"linkagelab/internal/planar"
)

// LinkSpec is the mass and length of one bar.
type LinkSpec struct {
	Mass   float64 `yaml:"mass" json:"mass"`
	Length float64 `yaml:"length" json:"length"`
}

// Params describes the mechanism. LinkA is the long bar used for the
// ground and the coupler; LinkB the short side links.
type Params struct {
	LinkA   LinkSpec `yaml:"link_a" json:"link_a"`
	LinkB   LinkSpec `yaml:"link_b" json:"link_b"`
	Width   float64  `yaml:"width" json:"width"`
	Height  float64  `yaml:"height" json:"height"`
	Radius  float64  `yaml:"radius" json:"radius"`
	Gravity float64  `yaml:"gravity" json:"gravity"`
	// CorrectorKp is the Baumgarte position gain; the velocity gain is
	// derived critically damped.
	CorrectorKp float64 `yaml:"corrector_kp" json:"corrector_kp"`
}

func DefaultParams() Params {
	return Params{
		LinkA:       LinkSpec{Mass: 10, Length: 1.0},
		LinkB:       LinkSpec{Mass: 5, Length: 0.6},
		Width:       0.01,
		Height:      0.1,
		Radius:      0.05,
		Gravity:     9.81,
		CorrectorKp: 10,
	}
}

func (p Params) Validate() error {
	for _, l := range []LinkSpec{p.LinkA, p.LinkB} {
		if l.Mass <= 0 || l.Length <= 0 {
			return fmt.Errorf("%w: link mass=%g length=%g", mech.ErrParameterBounds, l.Mass, l.Length)
		}
	}
	if p.CorrectorKp < 0 {
		return fmt.Errorf("%w: corrector_kp=%g", mech.ErrParameterBounds, p.CorrectorKp)
	}
	return nil
}

// BoxInertia is the planar rotational inertia of a length x height box.
func BoxInertia(mass, length, height float64) float64 {
	return mass * (length*length + height*height) / 12
}

// Capsule is a rendering primitive attached to a link; Link -1 means the
// fixed base.
type Capsule struct {
	Name   string
	Link   int
	Radius float64
	Length float64
	Color  string
}

// FourBar bundles the open chain, its loop-closure constraint, and the
// display geometry.
type FourBar struct {
	Model      *multibody.Model
	Constraint *closure.Point
	Geometry   []Capsule
	Params     Params
}

// NewFourBar builds the mechanism: ground bar A spanning +-lA/2, then a
// chain B, A, B of revolute links, closed from the last tip back onto
// the far ground pivot.
func NewFourBar(p Params) (*FourBar, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	lA, lB := p.LinkA.Length, p.LinkB.Length
	m := multibody.New(planar.Vec2{Y: -p.Gravity})

	type spec struct {
		name   string
		offset float64
		link   LinkSpec
		color  string
	}
	chain := []spec{
		{"link_B1", lA / 2, p.LinkB, "red"},
		{"link_A2", lB, p.LinkA, "white"},
		{"link_B2", lA, p.LinkB, "red"},
	}

	fb := &FourBar{Params: p, Model: m}
	fb.Geometry = append(fb.Geometry, Capsule{
		Name: "link_A1", Link: -1, Radius: p.Radius, Length: lA, Color: "white",
	})

	for _, s := range chain {
		placement := planar.Transform{R: planar.Identity(), P: planar.Vec2{X: s.offset}}
		jid := m.AddJoint(placement, s.name)

		inertia := BoxInertia(s.link.Mass, s.link.Length, p.Height)
		com := planar.Vec2{X: s.link.Length / 2}
		if err := m.AppendBody(jid, s.link.Mass, com, inertia); err != nil {
			return nil, err
		}

		fb.Geometry = append(fb.Geometry, Capsule{
			Name: s.name, Link: jid, Radius: p.Radius, Length: s.link.Length, Color: s.color,
		})
	}

	fb.Constraint = &closure.Point{
		Link:        2,
		LocalAnchor: planar.Vec2{X: lB},
		BaseAnchor:  planar.Vec2{X: -lA / 2},
		Corrector:   closure.CriticallyDamped(p.CorrectorKp),
	}
	return fb, nil
}

// ClosedGuess is a configuration near the upper closure branch, used to
// seed the closure solve. For the parallelogram proportions of
// DefaultParams it is exact.
func (f *FourBar) ClosedGuess() mech.Vector {
	return mech.Vector{math.Pi / 2, math.Pi / 2, math.Pi / 2}
}

// Energy reports total mechanical energy of the moving links.
func (f *FourBar) Energy(q, v mech.Vector) float64 {
	d := f.Model.NewData()
	if err := f.Model.ForwardKinematics(d, q, v); err != nil {
		return math.NaN()
	}
	return f.Model.Energy(d, q, v)
}

// Violation is the loop-closure error norm at a configuration.
func (f *FourBar) Violation(q mech.Vector) float64 {
	d := f.Model.NewData()
	if err := f.Model.ForwardKinematics(d, q, make(mech.Vector, len(q))); err != nil {
		return math.NaN()
	}
	return f.Constraint.Evaluate(f.Model, d).Norm()
}

// JointPoints returns the world positions of the ground pivots, the
// moving joints, and the closing tip, in drawing order.
func (f *FourBar) JointPoints(q mech.Vector) ([]planar.Vec2, error) {
	d := f.Model.NewData()
	if err := f.Model.ForwardKinematics(d, q, make(mech.Vector, len(q))); err != nil {
		return nil, err
	}

	pts := make([]planar.Vec2, 0, 5)
	pts = append(pts, f.Constraint.BaseAnchor)
	pts = append(pts, d.JointPos...)
	pts = append(pts, f.Model.PointPosition(d, f.Constraint.Link, f.Constraint.LocalAnchor))
	return pts, nil
}

// GetParams implements runtime tuning for the live view.
func (f *FourBar) GetParams() map[string]float64 {
	return map[string]float64{
		"gravity": f.Params.Gravity,
		"kp":      f.Constraint.Corrector.Kp,
		"kd":      f.Constraint.Corrector.Kd,
	}
}

func (f *FourBar) SetParam(name string, value float64) error {
	switch name {
	case "gravity":
		f.Params.Gravity = value
		f.Model.Gravity = planar.Vec2{Y: -value}
	case "kp":
		f.Constraint.Corrector = closure.CriticallyDamped(value)
	case "kd":
		f.Constraint.Corrector.Kd = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
