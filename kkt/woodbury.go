// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"github.com/curioloop/paropt/dvec"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/paropt/compactqn"
)

// Woodbury solves against the full B+Sigma operator by applying the
// Sherman-Morrison-Woodbury identity on top of Diagonal's cheap C^-1:
//
//	C_full = C_diag - Z*diag(d0)*M^-1*diag(d0)*Z^T
//	C_full^-1 v = C_diag^-1 v + C_diag^-1 U (M - U^T C_diag^-1 U)^-1 U^T C_diag^-1 v
//
// with U = Z*diag(d0). It neither knows nor cares whether the compact
// model behind the snapshot is LBFGS or LSR1 — it only uses the columns,
// gating scalars, and M matrix the Snapshot exposes.
type Woodbury struct {
	diag *Diagonal
	snap compactqn.Snapshot

	ce mat.LU
	ew []*dvec.Vec
}

// NewWoodbury builds a Woodbury solver on top of diag. Call Refresh with the
// quasi-Newton model's current snapshot whenever diag's setup or the model
// changes (every major iteration), before solving.
func NewWoodbury(diag *Diagonal) *Woodbury {
	return &Woodbury{diag: diag}
}

// Refresh recomputes the capacitance matrix from the current Diagonal
// setup and compact-model snapshot. It must be called after every
// Diagonal.Setup / compact-model Update before SolveX is used.
func (w *Woodbury) Refresh(snap compactqn.Snapshot) error {
	w.snap = snap
	rank := snap.Rank
	w.ew = make([]*dvec.Vec, rank)
	if rank == 0 {
		return nil
	}

	for j := 0; j < rank; j++ {
		w.ew[j] = w.diag.solveX(snap.Z[j])
		w.ew[j].Scale(snap.D0[j])
	}

	ceBuf := append([]float64(nil), snap.M...)
	for k := 0; k < rank; k++ {
		col := w.ew[k].MDot(snap.Z)
		for j := 0; j < rank; j++ {
			ceBuf[j*rank+k] -= snap.D0[j] * col[j]
		}
	}

	w.ce = mat.LU{}
	w.ce.Factorize(mat.NewDense(rank, rank, ceBuf))
	return nil
}

// solveX implements innerSolver: C_full^-1 * v via Sherman-Morrison-Woodbury.
func (w *Woodbury) solveX(v *dvec.Vec) *dvec.Vec {
	p0 := w.diag.solveX(v)
	rank := w.snap.Rank
	if rank == 0 {
		return p0
	}

	zt := p0.MDot(w.snap.Z)
	gammaRhs := make([]float64, rank)
	for j := range gammaRhs {
		gammaRhs[j] = w.snap.D0[j] * zt[j]
	}

	gamma := make([]float64, rank)
	gammaVec := mat.NewVecDense(rank, gamma)
	if err := w.ce.SolveVecTo(gammaVec, false, mat.NewVecDense(rank, gammaRhs)); err != nil {
		return p0
	}

	px := w.diag.g.NewVec(p0.Rank(), p0.Len())
	px.CopyFrom(p0)
	for j := 0; j < rank; j++ {
		px.Axpy(gamma[j], w.ew[j])
	}
	return px
}

// SolveX implements solve(r_x) -> p_x, the Woodbury-corrected counterpart
// to Diagonal.SolveX.
func (w *Woodbury) SolveX(rx *dvec.Vec) *dvec.Vec { return w.solveX(rx) }

// SolveReduced implements solve(r_x) -> full step against the full B
// operator.
func (w *Woodbury) SolveReduced(rx *dvec.Vec, rows Rows) Step {
	rzl := w.diag.g.NewVec(rx.Rank(), rx.Len())
	rzu := w.diag.g.NewVec(rx.Rank(), rx.Len())
	return coupledSolve(w.diag, w, rx, rzl, rzu, rows, zeros(len(rows.Ineq)), zeros(len(rows.Ineq)), zeros(len(rows.Weight)))
}

// SolveFull implements the full six-block Woodbury-corrected solve.
func (w *Woodbury) SolveFull(res *Residual, rows Rows) Step {
	rxHat := w.diag.rxHat(res)
	return coupledSolve(w.diag, w, rxHat, res.Rzl, res.Rzu, rows, res.Rc, res.Rs, res.Rw)
}
