package ik_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"linkagelab/internal/ik"
	"linkagelab/internal/linkage"
	"linkagelab/internal/mech"
	"linkagelab/internal/planar"
)

var _ = Describe("Solve", func() {
	var fb *linkage.FourBar

	BeforeEach(func() {
		var err error
		fb, err = linkage.NewFourBar(linkage.DefaultParams())
		Expect(err).NotTo(HaveOccurred())
	})

	Context("from a perturbed closed configuration", func() {
		It("converges below tolerance", func() {
			q0 := fb.ClosedGuess()
			q0[0] += 0.05
			q0[1] -= 0.08
			q0[2] += 0.03

			opts := ik.DefaultOptions()
			opts.Tol = 1e-8

			sol, err := ik.Solve(fb.Model, fb.Constraint, q0, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Converged).To(BeTrue())
			Expect(sol.PrimalFeas).To(BeNumerically("<", 1e-8))
			Expect(sol.DualFeas).To(BeNumerically("<", 1e-8))
			Expect(fb.Violation(sol.Q)).To(BeNumerically("<", 1e-7))
		})

		It("wraps the solution into (-pi, pi]", func() {
			q0 := fb.ClosedGuess()
			q0[2] += 2*math.Pi + 0.02

			opts := ik.DefaultOptions()
			opts.Tol = 1e-8

			sol, err := ik.Solve(fb.Model, fb.Constraint, q0, opts)
			Expect(err).NotTo(HaveOccurred())
			for _, angle := range sol.Q {
				Expect(angle).To(BeNumerically(">", -math.Pi))
				Expect(angle).To(BeNumerically("<=", math.Pi))
			}
		})

		It("records a shrinking residual trace", func() {
			q0 := fb.ClosedGuess()
			q0[0] += 0.1

			opts := ik.DefaultOptions()
			opts.Tol = 1e-8

			sol, err := ik.Solve(fb.Model, fb.Constraint, q0, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(sol.Residuals)).To(BeNumerically(">=", 2))
			first := sol.Residuals[0]
			last := sol.Residuals[len(sol.Residuals)-1]
			Expect(last).To(BeNumerically("<", first))
		})
	})

	Context("from the neutral configuration", func() {
		It("closes the loop in a few iterations", func() {
			sol, err := ik.Solve(fb.Model, fb.Constraint, fb.Model.Neutral(), ik.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Converged).To(BeTrue())
			Expect(sol.Iterations).To(BeNumerically("<", 20))
			Expect(fb.Violation(sol.Q)).To(BeNumerically("<", 1e-9))
		})
	})

	Context("with an unreachable anchor", func() {
		It("returns ErrNoConvergence with the best iterate", func() {
			// Move the closure target far outside the chain's reach.
			fb.Constraint.BaseAnchor = planar.Vec2{X: -50}

			opts := ik.DefaultOptions()
			opts.MaxIter = 50

			sol, err := ik.Solve(fb.Model, fb.Constraint, fb.Model.Neutral(), opts)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, mech.ErrNoConvergence)).To(BeTrue())
			Expect(sol).NotTo(BeNil())
			Expect(sol.Converged).To(BeFalse())
			Expect(sol.PrimalFeas).To(BeNumerically(">", opts.Tol))

			// The returned configuration is the minimum-residual iterate,
			// not simply the last one.
			minRes := sol.Residuals[0]
			for _, r := range sol.Residuals {
				if r < minRes {
					minRes = r
				}
			}
			Expect(fb.Violation(sol.Q)).To(BeNumerically("~", minRes, 1e-6))
		})
	})

	Context("with invalid input", func() {
		It("rejects a mis-sized seed", func() {
			_, err := ik.Solve(fb.Model, fb.Constraint, mech.Vector{0, 0}, ik.DefaultOptions())
			Expect(errors.Is(err, mech.ErrDimensionMismatch)).To(BeTrue())
		})

		It("rejects a non-positive iteration budget", func() {
			opts := ik.DefaultOptions()
			opts.MaxIter = 0
			_, err := ik.Solve(fb.Model, fb.Constraint, fb.Model.Neutral(), opts)
			Expect(errors.Is(err, mech.ErrParameterBounds)).To(BeTrue())
		})
	})
})
