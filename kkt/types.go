// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kkt assembles and solves the primal-dual interior-point Newton
// system. It is deliberately ignorant of the user's problem: every input
// arrives as already-evaluated vectors, gradients, and constraint
// gradients, so this package never imports an oracle type and cannot
// create an import cycle with the driver that does.
package kkt

import "github.com/curioloop/paropt/dvec"

// Bounds carries the per-rank pointwise data the diagonal reduction needs:
// the current point, its simple bounds, and the corresponding bound
// multipliers. A missing (infinite) bound is represented by ±Inf in Xl/Xu;
// the corresponding multiplier is then treated as structurally zero.
type Bounds struct {
	X, Xl, Xu *dvec.Vec
	Zl, Zu    *dvec.Vec
}

// Rows bundles the dense-in-count, distributed-in-n constraint-gradient
// rows that couple the x-space to a small set of multipliers.
//
// Ineq holds the m inequality rows (∇c_j), each paired with a slack s_j
// and a dual z_j, which are passed to Diagonal.Setup. Weight holds the nwcon
// "weighting" equality rows (∇(A_w)_j), which carry a dual z_w_j but no
// slack. Materializing the weighting rows as explicit distributed vectors
// (rather than driving them through the oracle's matrix-free apply) is a
// deliberate scoped-down simplification of A_w's banded block-diagonal
// sparsity, recorded in the design notes: it is correct for any nwcon, and
// cheap for the small nwcon this implementation targets, but does not
// exploit the banded structure the way the original solver's dedicated
// A_w elimination path does.
type Rows struct {
	Ineq   []*dvec.Vec
	Weight []*dvec.Vec
}

func (r Rows) all() []*dvec.Vec {
	out := make([]*dvec.Vec, 0, len(r.Ineq)+len(r.Weight))
	out = append(out, r.Ineq...)
	out = append(out, r.Weight...)
	return out
}

// Step is the full Newton step produced by a diagonal or Woodbury solve.
type Step struct {
	Px       *dvec.Vec
	Pzl, Pzu *dvec.Vec
	Pz, Ps   []float64 // length len(Rows.Ineq)
	Pzw      []float64 // length len(Rows.Weight)
}

// innerSolver is implemented by both Diagonal (the cheap b0*I+Sigma
// operator) and Woodbury (the full B+Sigma operator corrected via
// Sherman-Morrison-Woodbury). The coupled small-dense solve in solve.go is
// written once against this interface and driven by either.
type innerSolver interface {
	solveX(v *dvec.Vec) *dvec.Vec
}
