// Package dynamics computes constrained forward dynamics for a closed
// chain and provides the timestepping schemes used by the simulator.
package dynamics

import (
	"fmt"

	"linkagelab/internal/closure"
	"linkagelab/internal/mech"
	"linkagelab/internal/multibody"
)

// Constrained solves the forward dynamics of an open chain subject to a
// loop-closure constraint:
//
//	M(q)*qdd + h(q,v) = tau + J^T*lambda
//	J*qdd = gamma(q,v)
//
// where gamma carries the velocity-product term and the Baumgarte
// corrector. The saddle system is solved through the proximal KKT
// factorization with regularization mu.
type Constrained struct {
	model      *multibody.Model
	constraint *closure.Point
	mu         float64

	data   *multibody.Data
	kkt    *closure.KKT
	lambda mech.Vector
}

func NewConstrained(m *multibody.Model, c *closure.Point, mu float64) *Constrained {
	return &Constrained{
		model:      m,
		constraint: c,
		mu:         mu,
		data:       m.NewData(),
		kkt:        closure.NewKKT(),
	}
}

// Accel returns joint accelerations under applied torque tau. It is the
// mech.Accel oracle handed to steppers.
func (c *Constrained) Accel(q, v, tau mech.Vector, t float64) (mech.Vector, error) {
	nv := c.model.NV()
	if len(q) != nv || len(v) != nv || len(tau) != nv {
		return nil, fmt.Errorf("%w: nq=%d nv=%d ntau=%d model=%d",
			mech.ErrDimensionMismatch, len(q), len(v), len(tau), nv)
	}

	if err := c.model.ForwardKinematics(c.data, q, v); err != nil {
		return nil, err
	}

	M, err := c.model.MassMatrix(q)
	if err != nil {
		return nil, err
	}
	h, err := c.model.BiasForces(c.data, q, v)
	if err != nil {
		return nil, err
	}

	j := c.constraint.Jacobian(c.model, c.data)
	gamma := c.constraint.Bias(c.model, c.data, v)

	if err := c.kkt.Compute(M, j, c.mu); err != nil {
		return nil, err
	}

	b2 := tau.Sub(h)
	y, a, err := c.kkt.Solve(mech.Vector{gamma.X, gamma.Y}, b2)
	if err != nil {
		return nil, err
	}

	c.lambda = y.Scale(-1)
	return a, nil
}

// Multiplier returns the constraint force from the last Accel call.
func (c *Constrained) Multiplier() mech.Vector {
	return c.lambda.Clone()
}
