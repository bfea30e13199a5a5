// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"math"

	"github.com/curioloop/paropt/dvec"
)

// ResidualInput collects the evaluated quantities the residual assembly
// needs. AwX and AwTZw are precomputed by the caller (via the oracle's
// sparse-constraint apply and its transpose) so that this package never
// needs to know how A_w is structured.
type ResidualInput struct {
	X, Xl, Xu *dvec.Vec
	G         *dvec.Vec
	Zl, Zu    *dvec.Vec
	Ineq      []*dvec.Vec // Ac, gradients of the m inequalities
	Z, S, C   []float64   // length m: duals, slacks, constraint values

	Weight  []*dvec.Vec // Aw rows, materialized per the Rows doc comment
	Zw      *dvec.Vec
	AwX, B  *dvec.Vec // r_w = AwX - B
	AwTZw   *dvec.Vec // sum_j Aw_j * zw_j, precomputed by the caller

	Mu float64
}

// Residual is a reusable output buffer for ComputeResidual, sized once at
// construction so repeated major iterations allocate nothing beyond the
// small per-iteration []float64 blocks.
type Residual struct {
	Rx, Rzl, Rzu *dvec.Vec
	Rc, Rs       []float64
	Rw           []float64
}

// NewResidual allocates the distributed buffers for an n-entry x-space
// partitioned as described by g/rank/nLocal, with m inequality
// constraints and nwcon weighting constraints.
func NewResidual(g *dvec.Group, rank, nLocal, m, nwcon int) *Residual {
	return &Residual{
		Rx:  g.NewVec(rank, nLocal),
		Rzl: g.NewVec(rank, nLocal),
		Rzu: g.NewVec(rank, nLocal),
		Rc:  make([]float64, m),
		Rs:  make([]float64, m),
		Rw:  make([]float64, nwcon),
	}
}

// Compute fills r with the six KKT residual blocks for the current primal-
// dual iterate at barrier parameter mu, and returns the dual infeasibility
// norm, primal infeasibility norm, and complementarity gap used by the
// driver's convergence test and merit function.
func (r *Residual) Compute(in *ResidualInput) (dualInf, primalInf, comp float64) {
	n := r.Rx.LocalSlice()
	x, g, zl, zu := in.X.LocalSlice(), in.G.LocalSlice(), in.Zl.LocalSlice(), in.Zu.LocalSlice()
	for i := range n {
		n[i] = g[i] - zl[i] + zu[i]
	}
	// r_x -= sum_j z_j * Ac_j  (local axpy per row, no communication)
	for j, row := range in.Ineq {
		r.Rx.Axpy(-in.Z[j], row)
	}
	if in.AwTZw != nil {
		r.Rx.Axpy(-1, in.AwTZw)
	}

	xl, xu := in.Xl.LocalSlice(), in.Xu.LocalSlice()
	rzl, rzu := r.Rzl.LocalSlice(), r.Rzu.LocalSlice()
	for i := range n {
		if math.IsInf(xl[i], -1) {
			rzl[i] = 0
		} else {
			rzl[i] = (x[i]-xl[i])*zl[i] - in.Mu
		}
		if math.IsInf(xu[i], 1) {
			rzu[i] = 0
		} else {
			rzu[i] = (xu[i]-x[i])*zu[i] - in.Mu
		}
	}

	for j := range in.C {
		r.Rc[j] = in.C[j] - in.S[j]
		r.Rs[j] = in.S[j]*in.Z[j] - in.Mu
	}

	if in.AwX != nil {
		aw, b := in.AwX.Gather(), in.B.Gather()
		for i := range r.Rw {
			r.Rw[i] = aw[i] - b[i]
		}
	}

	dualInf = r.Rx.LInfNorm()
	primalInf = maxAbs(r.Rc)
	if in.AwX != nil {
		primalInf = math.Max(primalInf, maxAbs(r.Rw))
	}
	comp = math.Max(maxAbs(r.Rs), math.Max(r.Rzl.LInfNorm(), r.Rzu.LInfNorm()))
	return
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
