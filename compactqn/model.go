// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compactqn implements the limited-memory quasi-Newton Hessian
// approximations used as the optimizer's B operator: compact L-BFGS (with
// Powell damping) and compact L-SR1, both represented in the form
//
//	B = b0*I - Z * diag(d0) * M^-1 * diag(d0) * Z^T
//
// so that the operator's action can be evaluated, and its Woodbury columns
// extracted, without ever forming the n-by-n dense matrix. The layout
// mirrors ParOptVec.c's LBFGS/LSR1 classes directly: a FIFO ring of S/Y
// correction pairs, small packed D/L matrices rebuilt incrementally on
// update, and an assembled M factored once per update rather than once per
// solve.
package compactqn

import "github.com/curioloop/paropt/dvec"

// Kind reports whether the most recent Update applied the curvature pair
// as given, fell back to a damped correction, or skipped the pair.
type Kind int

const (
	// Normal means the pair satisfied the curvature condition and was
	// absorbed unmodified.
	Normal Kind = iota
	// Damped means the pair failed the curvature condition and a Powell
	// damped correction was applied instead (LBFGS only; SR1 never damps).
	Damped
	// Skipped means the pair was rejected outright and the model is
	// unchanged.
	Skipped
)

// Snapshot is a read-only view of the compact representation's current
// state, exposed so callers (the Woodbury solver) can drive the low-rank
// correction without depending on the concrete LBFGS/LSR1 type — the
// solver "does not know whether it is combining with BFGS or SR1", exactly
// as the columns and capacitance matrix it needs are shaped identically
// either way.
type Snapshot struct {
	// B0 is the scalar diagonal term b0.
	B0 float64
	// Rank is the number of active columns (2*Msub for LBFGS, Msub for
	// LSR1).
	Rank int
	// Z holds the Rank column vectors (aliases into the model's own column
	// storage: the S/Y ring for LBFGS, the Z columns for LSR1; never copies).
	Z []*dvec.Vec
	// D0 holds the Rank diagonal gating scalars paired with Z.
	D0 []float64
	// M is the assembled Rank-by-Rank matrix, row-major, before
	// factorization — needed by the Woodbury capacitance assembly, which
	// must subtract from M rather than only ever apply its inverse.
	M []float64
	// Solve applies M^-1 to a replicated Rank-length vector, using the
	// factorization already computed at the last Update.
	Solve func(rhs []float64) []float64
}

// Model is the shared interface the KKT solver drives: it neither knows
// nor cares whether the concrete representation is LBFGS or LSR1.
type Model interface {
	// Update absorbs one new (s, y) correction pair, where s is the step
	// taken and y is the corresponding gradient-of-Lagrangian difference.
	// It reports whether the pair was used as given, damped, or skipped.
	Update(s, y *dvec.Vec) Kind
	// Mult computes out <- B*x.
	Mult(x, out *dvec.Vec)
	// MultAdd computes out <- out + alpha*B*x.
	MultAdd(alpha float64, x, out *dvec.Vec)
	// Reset discards every stored correction pair and reverts to B = b0*I.
	Reset()
	// CurrentSnapshot exposes the state needed to extract Woodbury columns.
	CurrentSnapshot() Snapshot
	// MaxSubspace returns the configured maximum number of correction pairs.
	MaxSubspace() int
	// Active returns the number of correction pairs currently stored.
	Active() int
}
