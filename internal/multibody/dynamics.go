package multibody

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/mech"
	"linkagelab/internal/planar"
)

// InverseDynamics computes the joint torques realizing acceleration a at
// configuration q with joint velocity v (recursive Newton-Euler, planar).
// d must already hold forward kinematics for (q, v).
func (m *Model) InverseDynamics(d *Data, q, v, a mech.Vector) (mech.Vector, error) {
	n := m.NV()
	if len(a) != n {
		return nil, fmt.Errorf("%w: na=%d model=%d", mech.ErrDimensionMismatch, len(a), n)
	}

	// Forward pass: absolute angular and linear accelerations.
	alpha := make([]float64, n)
	aJoint := make([]planar.Vec2, n)
	aCOM := make([]planar.Vec2, n)

	alphaParent := 0.0
	aParent := planar.Vec2{}
	posParent := planar.Vec2{}
	omegaParent := 0.0

	for i := 0; i < n; i++ {
		alpha[i] = alphaParent + a[i]

		r := d.JointPos[i].Sub(posParent)
		aJoint[i] = aParent.
			Add(r.Perp().Scale(alphaParent)).
			Sub(r.Scale(omegaParent * omegaParent))

		rc := d.COMPos[i].Sub(d.JointPos[i])
		aCOM[i] = aJoint[i].
			Add(rc.Perp().Scale(alpha[i])).
			Sub(rc.Scale(d.Omega[i] * d.Omega[i]))

		alphaParent = alpha[i]
		aParent = aJoint[i]
		posParent = d.JointPos[i]
		omegaParent = d.Omega[i]
	}

	// Backward pass: accumulate joint forces and moments.
	tau := make(mech.Vector, n)
	var fNext planar.Vec2
	nNext := 0.0

	for i := n - 1; i >= 0; i-- {
		l := &m.links[i]

		fi := aCOM[i].Sub(m.Gravity).Scale(l.Mass).Add(fNext)

		ni := l.Inertia*alpha[i] + nNext
		if i < n-1 {
			ni += planar.Cross(d.JointPos[i+1].Sub(d.COMPos[i]), fNext)
		}
		ni += planar.Cross(d.COMPos[i].Sub(d.JointPos[i]), fi)

		tau[i] = ni
		fNext = fi
		nNext = ni
	}

	return tau, nil
}

// BiasForces returns h(q, v): Coriolis, centrifugal, and gravity torques.
func (m *Model) BiasForces(d *Data, q, v mech.Vector) (mech.Vector, error) {
	return m.InverseDynamics(d, q, v, make(mech.Vector, m.NV()))
}

// MassMatrix assembles the joint-space inertia matrix column by column
// from inverse dynamics with unit accelerations at zero velocity.
func (m *Model) MassMatrix(q mech.Vector) (*mat.SymDense, error) {
	n := m.NV()
	d := m.NewData()
	zero := make(mech.Vector, n)
	if err := m.ForwardKinematics(d, q, zero); err != nil {
		return nil, err
	}

	grav, err := m.InverseDynamics(d, q, zero, zero)
	if err != nil {
		return nil, err
	}

	M := mat.NewSymDense(n, nil)
	unit := make(mech.Vector, n)
	for k := 0; k < n; k++ {
		unit[k] = 1
		col, err := m.InverseDynamics(d, q, zero, unit)
		if err != nil {
			return nil, err
		}
		unit[k] = 0

		for i := k; i < n; i++ {
			M.SetSym(i, k, col[i]-grav[i])
		}
	}
	return M, nil
}

// Energy returns total mechanical energy, with potential energy measured
// against the base frame origin.
func (m *Model) Energy(d *Data, q, v mech.Vector) float64 {
	e := 0.0
	for i := 0; i < m.NV(); i++ {
		l := &m.links[i]
		vc := d.COMVel[i]
		e += 0.5*l.Mass*vc.Dot(vc) + 0.5*l.Inertia*d.Omega[i]*d.Omega[i]
		e -= l.Mass * m.Gravity.Dot(d.COMPos[i])
	}
	return e
}
