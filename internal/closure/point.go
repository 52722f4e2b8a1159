package closure

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/mech"
	"linkagelab/internal/multibody"
	"linkagelab/internal/planar"
)

// Corrector holds Baumgarte stabilization gains for a constraint.
type Corrector struct {
	Kp float64
	Kd float64
}

// CriticallyDamped returns a corrector with Kd = 2*sqrt(Kp).
func CriticallyDamped(kp float64) Corrector {
	return Corrector{Kp: kp, Kd: 2 * math.Sqrt(kp)}
}

// Point pins a point riding on a chain link to a fixed point in the base
// frame, closing a kinematic loop. The constraint value is the world-frame
// separation of the two anchors.
type Point struct {
	Link        int
	LocalAnchor planar.Vec2
	BaseAnchor  planar.Vec2
	Corrector   Corrector
}

// Dim is the constraint dimension: two position components.
func (p *Point) Dim() int { return 2 }

// Evaluate returns the anchor separation for the kinematics in d.
func (p *Point) Evaluate(m *multibody.Model, d *multibody.Data) planar.Vec2 {
	return m.PointPosition(d, p.Link, p.LocalAnchor).Sub(p.BaseAnchor)
}

// Velocity returns the time derivative of the constraint value.
func (p *Point) Velocity(m *multibody.Model, d *multibody.Data) planar.Vec2 {
	return m.PointVelocity(d, p.Link, p.LocalAnchor)
}

// Jacobian returns the 2 x nv constraint Jacobian.
func (p *Point) Jacobian(m *multibody.Model, d *multibody.Data) *mat.Dense {
	return m.PointJacobian(d, p.Link, p.LocalAnchor)
}

// Bias returns the desired constraint-space acceleration gamma such that
// J*qdd = gamma stabilizes the loop: the velocity-product term plus the
// Baumgarte position and velocity feedback.
func (p *Point) Bias(m *multibody.Model, d *multibody.Data, v mech.Vector) planar.Vec2 {
	jdotV := m.PointJacobianRate(d, v, p.Link, p.LocalAnchor)
	c := p.Evaluate(m, d)
	cdot := p.Velocity(m, d)

	return jdotV.Scale(-1).
		Sub(c.Scale(p.Corrector.Kp)).
		Sub(cdot.Scale(p.Corrector.Kd))
}
