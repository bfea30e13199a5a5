// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"math"

	"github.com/curioloop/paropt/numdiff"
)

// GradientCheckReport summarizes a finite-difference comparison against the
// oracle's analytic objective gradient and inequality-constraint Jacobian.
type GradientCheckReport struct {
	MaxAbsError float64
	MaxRelError float64
}

// checkGradients compares the oracle's analytic gradients at the current
// iterate against a central finite-difference approximation built with
// numdiff.ApproxSpec, treating the stacked (f, c) map as a single
// M = 1+m valued function of x. It is a diagnostic only: a large error is
// reported through the Logger, not treated as a solver failure.
func (d *driver) checkGradients() (GradientCheckReport, error) {
	st := d.st
	n, m := st.n, st.m

	spec := numdiff.ApproxSpec{
		N: n, M: 1 + m,
		Method: numdiff.Central,
		Object: func(x, y []float64) {
			xv := st.g.FromSlice(st.rank, x)
			f, _, c, err := d.oracle.Eval(xv)
			if err != nil {
				f = math.NaN()
			}
			y[0] = f
			copy(y[1:], c)
		},
	}

	x0 := append([]float64(nil), st.x.LocalSlice()...)
	diff := make([]float64, n*(1+m))
	if err := spec.Diff(x0, diff); err != nil {
		return GradientCheckReport{}, err
	}

	var report GradientCheckReport
	accumulate := func(col int, analytic []float64) {
		for i := 0; i < n; i++ {
			fd := diff[i+col*n]
			ag := analytic[i]
			e := math.Abs(fd - ag)
			if e > report.MaxAbsError {
				report.MaxAbsError = e
			}
			if rel := e / math.Max(1, math.Abs(ag)); rel > report.MaxRelError {
				report.MaxRelError = rel
			}
		}
	}

	accumulate(0, st.grad.LocalSlice())
	for j := 0; j < m; j++ {
		accumulate(j+1, st.ineqRows[j].LocalSlice())
	}
	return report, nil
}
