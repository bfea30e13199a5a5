// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package paropt drives a primal-dual interior-point method over a
// user-supplied Oracle, using compactqn for the limited-memory quasi-Newton
// Hessian approximation and kkt for the Newton step. It owns the major
// iteration loop, the barrier and penalty parameter schedules, the
// fraction-to-boundary and merit-function line search, and the gradient
// check diagnostic; it never reaches into kkt's or compactqn's internals.
package paropt

import "github.com/curioloop/paropt/dvec"

// Oracle is the user-supplied problem: an objective, a small number of
// dense nonlinear inequality constraints c(x) >= 0 (ParOpt.h's convention,
// the feasible sense used throughout this package), a large structured
// sparse equality block
// A_w x = b, and simple bounds. Every method receives an already-correct
// distributed vector and must not resize it.
type Oracle struct {
	// Dims returns the primal dimension n, the number of dense
	// inequalities m, and the number of weighting-constraint rows nwcon
	// (0 if the problem has none).
	Dims func() (n, m, nwcon int)

	// Bounds fills xl and xu with the simple variable bounds, using ±Inf
	// where a bound is absent.
	Bounds func(xl, xu *dvec.Vec)

	// Eval evaluates the objective, its gradient, and the m dense
	// inequality values at x.
	Eval func(x *dvec.Vec) (fobj float64, g *dvec.Vec, c []float64, err error)

	// ConGradients fills rows[j] with grad c_j(x) for every dense
	// inequality.
	ConGradients func(x *dvec.Vec, rows []*dvec.Vec) error

	// ApplySparseCon computes out <- A_w * x.
	ApplySparseCon func(x, out *dvec.Vec)

	// ApplySparseConTranspose computes out <- A_w^T * zw.
	ApplySparseConTranspose func(zw, out *dvec.Vec)

	// WeightRows fills rows[j] with row j of A_w, materialized as an
	// explicit distributed vector. Only needed when nwcon > 0; see the
	// scoped-down simplification documented on kkt.Rows.
	WeightRows func(rows []*dvec.Vec)

	// EqualityRHS fills b, the right-hand side of A_w x = b.
	EqualityRHS func(b *dvec.Vec)
}

// Validate checks that every required hook is present for the dimensions
// Dims reports.
func (o *Oracle) Validate() error {
	switch {
	case o.Dims == nil:
		return errMissingHook("Dims")
	case o.Bounds == nil:
		return errMissingHook("Bounds")
	case o.Eval == nil:
		return errMissingHook("Eval")
	}
	_, m, nwcon := o.Dims()
	if m > 0 && o.ConGradients == nil {
		return errMissingHook("ConGradients")
	}
	if nwcon > 0 {
		switch {
		case o.ApplySparseCon == nil:
			return errMissingHook("ApplySparseCon")
		case o.ApplySparseConTranspose == nil:
			return errMissingHook("ApplySparseConTranspose")
		case o.WeightRows == nil:
			return errMissingHook("WeightRows")
		case o.EqualityRHS == nil:
			return errMissingHook("EqualityRHS")
		}
	}
	return nil
}
