package multibody

import (
	"fmt"

	"linkagelab/internal/mech"
	"linkagelab/internal/planar"
)

// Link is one revolute joint plus the rigid body attached to it.
// The joint placement is expressed in the parent link frame; the body
// spins with the joint, so its COM and inertia live in the joint frame.
type Link struct {
	Name      string
	Placement planar.Transform
	Mass      float64
	COM       planar.Vec2
	Inertia   float64 // about the COM
}

// Model is an open serial chain of revolute links hanging off a fixed base.
// The base frame is the world frame. Joint i's parent is joint i-1.
type Model struct {
	Gravity planar.Vec2
	links   []Link
}

func New(gravity planar.Vec2) *Model {
	return &Model{Gravity: gravity}
}

// AddJoint appends a revolute joint at the given placement in the parent
// frame and returns its index. The previously added joint is the parent;
// the first joint attaches to the base.
func (m *Model) AddJoint(placement planar.Transform, name string) int {
	m.links = append(m.links, Link{Name: name, Placement: placement})
	return len(m.links) - 1
}

// AppendBody attaches a rigid body to a joint added earlier.
func (m *Model) AppendBody(jointID int, mass float64, com planar.Vec2, inertia float64) error {
	if jointID < 0 || jointID >= len(m.links) {
		return fmt.Errorf("%w: joint %d of %d", mech.ErrDimensionMismatch, jointID, len(m.links))
	}
	if mass <= 0 || inertia <= 0 {
		return fmt.Errorf("%w: mass=%g inertia=%g", mech.ErrParameterBounds, mass, inertia)
	}
	l := &m.links[jointID]
	l.Mass = mass
	l.COM = com
	l.Inertia = inertia
	return nil
}

// NV is the joint-space dimension.
func (m *Model) NV() int { return len(m.links) }

func (m *Model) Link(i int) Link { return m.links[i] }

// Neutral returns the zero configuration.
func (m *Model) Neutral() mech.Vector {
	return make(mech.Vector, m.NV())
}

// Integrate advances a configuration along a tangent displacement. For a
// revolute chain this is plain addition; it exists so callers never write
// q + v*dt by hand against a different joint type later.
func (m *Model) Integrate(q, dq mech.Vector) mech.Vector {
	r := q.Clone()
	for i := range r {
		r[i] += dq[i]
	}
	return r
}

// Wrap maps every joint angle into (-pi, pi].
func (m *Model) Wrap(q mech.Vector) mech.Vector {
	r := make(mech.Vector, len(q))
	for i, x := range q {
		r[i] = planar.WrapAngle(x)
	}
	return r
}
