package closure

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"linkagelab/internal/mech"
)

// KKT factors the proximal saddle system
//
//	[ -mu*I  J ] [y]   [b1]
//	[ J^T    M ] [x] = [b2]
//
// through the constraint-space Schur complement S = J*M^-1*J^T + mu*I,
// which is symmetric positive definite whenever M is. Both blocks are
// factorized with Cholesky decompositions. Compute once per
// configuration, then Solve any number of right-hand sides.
type KKT struct {
	dim, nv int
	mu      float64

	j      mat.Dense
	cholM  mat.Cholesky
	cholS  mat.Cholesky
	minvJT mat.Dense
}

func NewKKT() *KKT { return &KKT{} }

// Compute factorizes the system for a mass matrix M, constraint Jacobian
// J, and proximal regularization mu >= 0.
func (k *KKT) Compute(M mat.Symmetric, J mat.Matrix, mu float64) error {
	dim, nv := J.Dims()
	if M.SymmetricDim() != nv {
		return fmt.Errorf("%w: jacobian %dx%d vs mass %d", mech.ErrDimensionMismatch, dim, nv, M.SymmetricDim())
	}
	k.dim, k.nv, k.mu = dim, nv, mu
	k.j.CloneFrom(J)

	if ok := k.cholM.Factorize(M); !ok {
		return fmt.Errorf("%w: mass matrix factorization failed", mech.ErrSingularSystem)
	}

	var jt mat.Dense
	jt.CloneFrom(J.T())
	if err := k.cholM.SolveTo(&k.minvJT, &jt); err != nil {
		return fmt.Errorf("%w: %v", mech.ErrSingularSystem, err)
	}

	var s mat.Dense
	s.Mul(J, &k.minvJT)

	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for l := i; l < dim; l++ {
			sym.SetSym(i, l, 0.5*(s.At(i, l)+s.At(l, i)))
		}
		sym.SetSym(i, i, sym.At(i, i)+mu)
	}

	if ok := k.cholS.Factorize(sym); !ok {
		return fmt.Errorf("%w: schur complement factorization failed", mech.ErrSingularSystem)
	}
	return nil
}

// Solve returns (y, x) for constraint-space and joint-space right-hand
// sides b1 and b2.
func (k *KKT) Solve(b1, b2 mech.Vector) (mech.Vector, mech.Vector, error) {
	if len(b1) != k.dim || len(b2) != k.nv {
		return nil, nil, fmt.Errorf("%w: rhs %d/%d vs system %d/%d",
			mech.ErrDimensionMismatch, len(b1), len(b2), k.dim, k.nv)
	}

	// t = M^-1 b2
	var t mat.VecDense
	if err := k.cholM.SolveVecTo(&t, mat.NewVecDense(k.nv, b2)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", mech.ErrSingularSystem, err)
	}

	// r = J*t - b1
	var r mat.VecDense
	r.MulVec(&k.j, &t)
	for i := 0; i < k.dim; i++ {
		r.SetVec(i, r.AtVec(i)-b1[i])
	}

	var y mat.VecDense
	if err := k.cholS.SolveVecTo(&y, &r); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", mech.ErrSingularSystem, err)
	}

	// x = t - M^-1 J^T y
	var corr mat.VecDense
	corr.MulVec(&k.minvJT, &y)

	yOut := make(mech.Vector, k.dim)
	for i := range yOut {
		yOut[i] = y.AtVec(i)
	}
	xOut := make(mech.Vector, k.nv)
	for i := range xOut {
		xOut[i] = t.AtVec(i) - corr.AtVec(i)
	}
	return yOut, xOut, nil
}
