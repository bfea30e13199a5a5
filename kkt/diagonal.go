// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"math"

	"github.com/curioloop/paropt/dvec"
)

// Diagonal implements the cheap b0*I + Sigma operator of the diagonal KKT
// reduction: the bound-multiplier terms are folded pointwise into a
// diagonal C = b0 + Sigma, so SolveX is a local elementwise divide with no
// communication at all. This is both a usable solver on its own
// (SolveReduced, SolveFull) and the inner "A^-1" application the Woodbury
// solver builds its low-rank correction on top of.
type Diagonal struct {
	g      *dvec.Group
	rank   int
	nLocal int

	b0   float64
	cDiag *dvec.Vec // b0 + Sigma
	dXl, dXu *dvec.Vec // X-Xl, Xu-X (Inf where the bound is absent)
	Zl, Zu   *dvec.Vec

	nIneq, nWeight int
	s, z           []float64 // ineq slacks/duals, length nIneq
}

// NewDiagonal allocates scratch for an x-space partitioned as described by
// g/rank/nLocal.
func NewDiagonal(g *dvec.Group, rank, nLocal int) *Diagonal {
	return &Diagonal{
		g: g, rank: rank, nLocal: nLocal,
		cDiag: g.NewVec(rank, nLocal),
		dXl:   g.NewVec(rank, nLocal),
		dXu:   g.NewVec(rank, nLocal),
	}
}

// Setup recomputes Sigma, C, and dXl/dXu for the current iterate, and
// records the inequality slack/dual arrays used by the coupled solve.
func (d *Diagonal) Setup(b0 float64, bnd Bounds, s, z []float64, nWeight int) {
	d.b0 = b0
	d.Zl, d.Zu = bnd.Zl, bnd.Zu
	d.s, d.z = s, z
	d.nIneq, d.nWeight = len(s), nWeight

	x, xl, xu := bnd.X.LocalSlice(), bnd.Xl.LocalSlice(), bnd.Xu.LocalSlice()
	zl, zu := bnd.Zl.LocalSlice(), bnd.Zu.LocalSlice()
	c, dl, du := d.cDiag.LocalSlice(), d.dXl.LocalSlice(), d.dXu.LocalSlice()

	for i := range c {
		sigma := 0.0
		if math.IsInf(xl[i], -1) {
			dl[i] = math.Inf(1)
		} else {
			dl[i] = x[i] - xl[i]
			sigma += zl[i] / dl[i]
		}
		if math.IsInf(xu[i], 1) {
			du[i] = math.Inf(1)
		} else {
			du[i] = xu[i] - x[i]
			sigma += zu[i] / du[i]
		}
		c[i] = b0 + sigma
	}
}

// solveX implements innerSolver: C^-1 * v, a local elementwise divide.
func (d *Diagonal) solveX(v *dvec.Vec) *dvec.Vec {
	out := d.g.NewVec(v.Rank(), v.Len())
	vs, cs, os := v.LocalSlice(), d.cDiag.LocalSlice(), out.LocalSlice()
	for i := range vs {
		os[i] = vs[i] / cs[i]
	}
	return out
}

// SolveX implements solve(r_x) -> p_x, the cheap diagonal-only solve Woodbury
// builds on.
func (d *Diagonal) SolveX(rx *dvec.Vec) *dvec.Vec { return d.solveX(rx) }

// SolveReduced implements solve(r_x) -> full step, treating every residual
// block except r_x as zero.
func (d *Diagonal) SolveReduced(rx *dvec.Vec, rows Rows) Step {
	rzl := d.g.NewVec(rx.Rank(), rx.Len())
	rzu := d.g.NewVec(rx.Rank(), rx.Len())
	return coupledSolve(d, d, rx, rzl, rzu, rows, zeros(len(rows.Ineq)), zeros(len(rows.Ineq)), zeros(len(rows.Weight)))
}

// SolveFull implements the full six-block diagonal solve.
func (d *Diagonal) SolveFull(res *Residual, rows Rows) Step {
	rxHat := d.rxHat(res)
	return coupledSolve(d, d, rxHat, res.Rzl, res.Rzu, rows, res.Rc, res.Rs, res.Rw)
}

// rxHat folds the bound-multiplier residuals into the x-row right-hand
// side: r_x_hat = r_x + r_zl/dXl - r_zu/dXu.
func (d *Diagonal) rxHat(res *Residual) *dvec.Vec {
	out := d.g.NewVec(res.Rx.Rank(), res.Rx.Len())
	rx, rzl, rzu := res.Rx.LocalSlice(), res.Rzl.LocalSlice(), res.Rzu.LocalSlice()
	dl, du := d.dXl.LocalSlice(), d.dXu.LocalSlice()
	os := out.LocalSlice()
	for i := range os {
		v := rx[i]
		if !math.IsInf(dl[i], 1) {
			v += rzl[i] / dl[i]
		}
		if !math.IsInf(du[i], 1) {
			v -= rzu[i] / du[i]
		}
		os[i] = v
	}
	return out
}

// recoverBoundDuals computes p_zl, p_zu from a solved p_x, per the
// linearized complementarity rows:
//
//	p_zl = -(r_zl + Zl*p_x) / dXl
//	p_zu =  (Zu*p_x - r_zu) / dXu
func (d *Diagonal) recoverBoundDuals(px *dvec.Vec, rzl, rzu *dvec.Vec) (pzl, pzu *dvec.Vec) {
	pzl = d.g.NewVec(px.Rank(), px.Len())
	pzu = d.g.NewVec(px.Rank(), px.Len())
	pxs := px.LocalSlice()
	zl, zu := d.Zl.LocalSlice(), d.Zu.LocalSlice()
	dl, du := d.dXl.LocalSlice(), d.dXu.LocalSlice()
	rzlS, rzuS := rzl.LocalSlice(), rzu.LocalSlice()
	pzlS, pzuS := pzl.LocalSlice(), pzu.LocalSlice()
	for i := range pxs {
		if math.IsInf(dl[i], 1) {
			pzlS[i] = 0
		} else {
			pzlS[i] = -(rzlS[i] + zl[i]*pxs[i]) / dl[i]
		}
		if math.IsInf(du[i], 1) {
			pzuS[i] = 0
		} else {
			pzuS[i] = (zu[i]*pxs[i] - rzuS[i]) / du[i]
		}
	}
	return
}

func zeros(n int) []float64 { return make([]float64, n) }
