// Package ik solves kinematic loop closure by a damped proximal Newton
// iteration over the closure constraint.
package ik

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/closure"
	"linkagelab/internal/mech"
	"linkagelab/internal/multibody"
)

// Options tune the closure solve.
type Options struct {
	// MaxIter bounds the Newton iteration count.
	MaxIter int
	// Tol is the primal/dual feasibility tolerance (infinity norm).
	Tol float64
	// Mu is the proximal regularization on the constraint block.
	Mu float64
	// Rho regularizes the joint-space block in place of the mass matrix.
	Rho float64
	// Alpha is the step length.
	Alpha float64
}

func DefaultOptions() Options {
	return Options{
		MaxIter: 100,
		Tol:     1e-10,
		Mu:      1e-4,
		Rho:     1e-10,
		Alpha:   1.0,
	}
}

// Solution reports the solved configuration and the iteration trace.
type Solution struct {
	// Q is the closing configuration, wrapped into (-pi, pi] per joint.
	Q mech.Vector
	// Dual is the final constraint multiplier estimate.
	Dual mech.Vector
	// Residuals holds the constraint norm at each iteration.
	Residuals  []float64
	Iterations int
	PrimalFeas float64
	DualFeas   float64
	Converged  bool
}

// Solve drives the configuration from q0 until the loop closes within
// tolerance. On non-convergence the best iterate is still returned along
// with an error wrapping mech.ErrNoConvergence.
func Solve(m *multibody.Model, c *closure.Point, q0 mech.Vector, opts Options) (*Solution, error) {
	nv := m.NV()
	if len(q0) != nv {
		return nil, fmt.Errorf("%w: q0 has %d entries, model has %d", mech.ErrDimensionMismatch, len(q0), nv)
	}
	if opts.MaxIter <= 0 || opts.Tol <= 0 {
		return nil, fmt.Errorf("%w: max_iter=%d tol=%g", mech.ErrParameterBounds, opts.MaxIter, opts.Tol)
	}

	dim := c.Dim()
	q := q0.Clone()
	y := make(mech.Vector, dim)
	for i := range y {
		y[i] = 1
	}

	// The joint block is a plain rho*I regularizer, as in a
	// first-order-only closure solve.
	rhoM := mat.NewSymDense(nv, nil)
	for i := 0; i < nv; i++ {
		rhoM.SetSym(i, i, opts.Rho)
	}

	d := m.NewData()
	zero := make(mech.Vector, nv)
	zeroJoint := make(mech.Vector, nv)
	kkt := closure.NewKKT()

	sol := &Solution{Residuals: make([]float64, 0, opts.MaxIter)}
	bestRes := math.Inf(1)
	var bestQ, bestDual mech.Vector
	bestPrimal, bestDualFeas := math.Inf(1), math.Inf(1)

	for iter := 0; iter < opts.MaxIter; iter++ {
		sol.Iterations = iter
		if err := m.ForwardKinematics(d, q, zero); err != nil {
			return nil, err
		}

		cval := c.Evaluate(m, d)
		cv := mech.Vector{cval.X, cval.Y}
		j := c.Jacobian(m, d)

		res := cval.Norm()
		sol.Residuals = append(sol.Residuals, res)
		sol.PrimalFeas = cval.NormInf()

		// Dual feasibility: J^T (c + y).
		cy := mat.NewVecDense(dim, cv.Add(y))
		var dual mat.VecDense
		dual.MulVec(j.T(), cy)
		sol.DualFeas = 0
		for i := 0; i < nv; i++ {
			if a := math.Abs(dual.AtVec(i)); a > sol.DualFeas {
				sol.DualFeas = a
			}
		}

		if res < bestRes {
			bestRes = res
			bestQ = q.Clone()
			bestDual = y.Clone()
			bestPrimal, bestDualFeas = sol.PrimalFeas, sol.DualFeas
		}

		if sol.PrimalFeas < opts.Tol && sol.DualFeas < opts.Tol {
			sol.Converged = true
			break
		}

		if err := kkt.Compute(rhoM, j, opts.Mu); err != nil {
			return nil, err
		}

		b1 := make(mech.Vector, dim)
		for i := range b1 {
			b1[i] = -cv[i] - opts.Mu*y[i]
		}
		dy, dq, err := kkt.Solve(b1, zeroJoint)
		if err != nil {
			return nil, err
		}

		// dq satisfies J*dq ~ -c, so the step is taken forward along dq.
		q = m.Integrate(q, dq.Scale(opts.Alpha))
		for i := range y {
			y[i] += opts.Alpha * (dy[i] - y[i])
		}
	}

	if sol.Converged {
		sol.Q = m.Wrap(q)
		sol.Dual = y
		return sol, nil
	}

	sol.Q = m.Wrap(bestQ)
	sol.Dual = bestDual
	sol.PrimalFeas, sol.DualFeas = bestPrimal, bestDualFeas
	return sol, fmt.Errorf("%w: primal=%.3e dual=%.3e after %d iterations",
		mech.ErrNoConvergence, sol.PrimalFeas, sol.DualFeas, opts.MaxIter)
}
