// Package multibody implements planar serial-chain kinematics and dynamics.
//
// A [Model] is an open chain of revolute links built with AddJoint and
// AppendBody. Forward kinematics fills a [Data] with world placements;
// point Jacobians and their velocity-product rates support constraint
// handling, and the inverse-dynamics recursion supplies bias forces and
// the joint-space mass matrix for constrained forward dynamics.
//
// Closed chains are not represented here: a loop is closed externally by
// a closure constraint over two points of an open chain.
package multibody
