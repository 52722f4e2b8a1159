package multibody

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/mech"
	"linkagelab/internal/planar"
)

// Data holds the world-frame quantities computed by forward kinematics.
// One Data is reused across steps; all slices are sized to the model.
type Data struct {
	// Frame is the world placement of each link frame (joint rotated by q).
	Frame []planar.Transform
	// Phi and Omega are absolute link angles and angular velocities.
	Phi   []float64
	Omega []float64

	JointPos []planar.Vec2
	JointVel []planar.Vec2
	COMPos   []planar.Vec2
	COMVel   []planar.Vec2
}

func (m *Model) NewData() *Data {
	n := m.NV()
	return &Data{
		Frame:    make([]planar.Transform, n),
		Phi:      make([]float64, n),
		Omega:    make([]float64, n),
		JointPos: make([]planar.Vec2, n),
		JointVel: make([]planar.Vec2, n),
		COMPos:   make([]planar.Vec2, n),
		COMVel:   make([]planar.Vec2, n),
	}
}

// ForwardKinematics fills d with link placements, joint origins, and COM
// positions/velocities for the given configuration and joint velocity.
func (m *Model) ForwardKinematics(d *Data, q, v mech.Vector) error {
	n := m.NV()
	if len(q) != n || len(v) != n {
		return fmt.Errorf("%w: nq=%d nv=%d model=%d", mech.ErrDimensionMismatch, len(q), len(v), n)
	}

	parent := planar.IdentityTransform()
	phiParent, omegaParent := 0.0, 0.0
	velParent := planar.Vec2{}
	posParent := planar.Vec2{}

	for i := 0; i < n; i++ {
		l := &m.links[i]

		joint := parent.Compose(l.Placement)
		d.JointPos[i] = joint.P
		d.Frame[i] = joint.Compose(planar.Transform{R: planar.NewRot2(q[i])})

		d.Phi[i] = phiParent + l.Placement.R.Angle() + q[i]
		d.Omega[i] = omegaParent + v[i]

		// The joint origin rides on the parent link.
		d.JointVel[i] = velParent.Add(d.JointPos[i].Sub(posParent).Perp().Scale(omegaParent))

		d.COMPos[i] = d.Frame[i].Apply(l.COM)
		d.COMVel[i] = d.JointVel[i].Add(d.COMPos[i].Sub(d.JointPos[i]).Perp().Scale(d.Omega[i]))

		parent = d.Frame[i]
		phiParent = d.Phi[i]
		omegaParent = d.Omega[i]
		velParent = d.JointVel[i]
		posParent = d.JointPos[i]
	}
	return nil
}

// PointPosition maps a point in link's frame to the world.
func (m *Model) PointPosition(d *Data, link int, local planar.Vec2) planar.Vec2 {
	return d.Frame[link].Apply(local)
}

// PointVelocity is the world velocity of a point riding on a link.
func (m *Model) PointVelocity(d *Data, link int, local planar.Vec2) planar.Vec2 {
	p := m.PointPosition(d, link, local)
	return d.JointVel[link].Add(p.Sub(d.JointPos[link]).Perp().Scale(d.Omega[link]))
}

// PointJacobian returns the 2 x nv Jacobian of a point riding on a link.
// Column k is the velocity the point picks up from unit rate at joint k.
func (m *Model) PointJacobian(d *Data, link int, local planar.Vec2) *mat.Dense {
	n := m.NV()
	p := m.PointPosition(d, link, local)

	j := mat.NewDense(2, n, nil)
	for k := 0; k <= link; k++ {
		col := p.Sub(d.JointPos[k]).Perp()
		j.Set(0, k, col.X)
		j.Set(1, k, col.Y)
	}
	return j
}

// PointJacobianRate returns d/dt(J) * v for a point riding on a link,
// the velocity-product acceleration the point has when qdd = 0.
func (m *Model) PointJacobianRate(d *Data, v mech.Vector, link int, local planar.Vec2) planar.Vec2 {
	vp := m.PointVelocity(d, link, local)

	var acc planar.Vec2
	for k := 0; k <= link; k++ {
		acc = acc.Add(vp.Sub(d.JointVel[k]).Perp().Scale(v[k]))
	}
	return acc
}
