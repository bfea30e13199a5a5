// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"fmt"

	"github.com/curioloop/paropt/dvec"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularCapacitance is returned when the small dense coupling matrix
// built from the inequality and weighting rows is numerically singular.
var ErrSingularCapacitance = fmt.Errorf("kkt: coupling matrix is singular")

// coupledSolve is the shared elimination: it solves C*px - sum_k row_k*pd_k = -r_x_hat together with the per-row
// slack/complementarity (inequality rows) or pure equality (weighting
// rows) relations, using inner.solveX as the only way it ever touches the
// x-space operator. Both Diagonal and Woodbury drive this same code path;
// neither knows about the other.
func coupledSolve(d *Diagonal, inner innerSolver, rxHat *dvec.Vec, rzl, rzu *dvec.Vec, rows Rows, rc, rs, rw []float64) Step {
	all := rows.all()
	total := len(all)
	nIneq := len(rows.Ineq)

	u0 := inner.solveX(rxHat)
	u0.Scale(-1)

	W := make([]*dvec.Vec, total)
	for j, row := range all {
		W[j] = inner.solveX(row)
	}

	g := make([]float64, total*total)
	for j := 0; j < total; j++ {
		col := W[j].MDot(all)
		for k := 0; k < total; k++ {
			g[k*total+j] = col[k]
		}
	}

	rhs := make([]float64, total)
	for k := 0; k < nIneq; k++ {
		g[k*total+k] += d.s[k] / d.z[k]
		rhs[k] = -(rs[k]/d.z[k] + rc[k]) - all[k].Dot(u0)
	}
	for k := nIneq; k < total; k++ {
		rhs[k] = -rw[k-nIneq] - all[k].Dot(u0)
	}

	pd := make([]float64, total)
	if total > 0 {
		var lu mat.LU
		lu.Factorize(mat.NewDense(total, total, g))
		pdVec := mat.NewVecDense(total, pd)
		if err := lu.SolveVecTo(pdVec, false, mat.NewVecDense(total, rhs)); err != nil {
			return Step{}
		}
	}

	px := d.g.NewVec(u0.Rank(), u0.Len())
	px.CopyFrom(u0)
	for k := 0; k < total; k++ {
		px.Axpy(pd[k], W[k])
	}

	pzl, pzu := d.recoverBoundDuals(px, rzl, rzu)

	ps := make([]float64, nIneq)
	pz := make([]float64, nIneq)
	if nIneq > 0 {
		aProd := px.MDot(rows.Ineq)
		for k := 0; k < nIneq; k++ {
			ps[k] = aProd[k] + rc[k]
			pz[k] = -(rs[k] + d.z[k]*ps[k]) / d.s[k]
		}
	}

	pzw := append([]float64(nil), pd[nIneq:]...)

	return Step{Px: px, Pzl: pzl, Pzu: pzu, Pz: pz, Ps: ps, Pzw: pzw}
}
