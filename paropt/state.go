// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"github.com/curioloop/paropt/compactqn"
	"github.com/curioloop/paropt/dvec"
	"github.com/curioloop/paropt/kkt"
)

// state holds every vector and scalar the major iteration loop touches. It
// is allocated once per Workspace and reused across iterations; only the
// small per-iteration []float64 dual blocks are replaced wholesale.
type state struct {
	g            *dvec.Group
	rank, nLocal int
	n, m, nwcon  int

	x, xl, xu *dvec.Vec
	zl, zu    *dvec.Vec
	grad      *dvec.Vec

	ineqRows   []*dvec.Vec // grad c_j(x), refreshed every iteration
	weightRows []*dvec.Vec // rows of A_w, fixed for a linear weighting block

	s, z, c []float64 // length m: slacks, duals, constraint values
	zw      *dvec.Vec // length nwcon, partitioned like x's weighting block
	awx, b  *dvec.Vec // A_w*x and the equality right-hand side
	awTzw   *dvec.Vec // sum_j (A_w)_j * zw_j

	fobj float64
	mu   float64
	b0   float64
	rho  float64 // merit-function penalty parameter

	qn   compactqn.Model
	diag *kkt.Diagonal
	wood *kkt.Woodbury
	res  *kkt.Residual

	// trial buffers reused by the line search.
	xTrial  *dvec.Vec
	sTrial  []float64
	cTrial  []float64
	gTrial  *dvec.Vec
	awxTrial *dvec.Vec
}

// newState allocates a state for an oracle reporting the given dimensions,
// with vectors on rank of g holding nLocal local entries. Optimizer.Init
// calls it with a single-rank Group owning the whole vector.
func newState(g *dvec.Group, rank, nLocal, n, m, nwcon int, cfg Config) *state {
	s := &state{
		g: g, rank: rank, nLocal: nLocal,
		n: n, m: m, nwcon: nwcon,

		x: g.NewVec(rank, nLocal), xl: g.NewVec(rank, nLocal), xu: g.NewVec(rank, nLocal),
		zl: g.NewVec(rank, nLocal), zu: g.NewVec(rank, nLocal),
		grad: g.NewVec(rank, nLocal),

		s: make([]float64, m), z: make([]float64, m), c: make([]float64, m),

		xTrial: g.NewVec(rank, nLocal),
		sTrial: make([]float64, m), cTrial: make([]float64, m),
		gTrial: g.NewVec(rank, nLocal),

		mu:  cfg.InitBarrierParameter,
		b0:  cfg.InitB0,
		rho: 1.0,

		diag: kkt.NewDiagonal(g, rank, nLocal),
		res:  kkt.NewResidual(g, rank, nLocal, m, nwcon),
	}
	s.ineqRows = make([]*dvec.Vec, m)
	for j := range s.ineqRows {
		s.ineqRows[j] = g.NewVec(rank, nLocal)
	}
	s.wood = kkt.NewWoodbury(s.diag)

	if nwcon > 0 {
		s.weightRows = make([]*dvec.Vec, nwcon)
		for j := range s.weightRows {
			s.weightRows[j] = g.NewVec(rank, nLocal)
		}
		s.zw = g.NewVec(rank, nwcon)
		s.awx = g.NewVec(rank, nwcon)
		s.b = g.NewVec(rank, nwcon)
		s.awTzw = g.NewVec(rank, nLocal)
		s.awxTrial = g.NewVec(rank, nwcon)
	}

	switch cfg.QuasiNewton {
	case LSR1:
		s.qn = compactqn.NewLSR1(g, rank, nLocal, cfg.MsubMax, cfg.InitB0, cfg.SR1SkipTolerance)
	default:
		s.qn = compactqn.NewLBFGS(g, rank, nLocal, cfg.MsubMax, cfg.InitB0, cfg.DampedUpdateFraction)
	}
	return s
}

// bounds packages the fields kkt.Diagonal.Setup needs.
func (s *state) bounds() kkt.Bounds {
	return kkt.Bounds{X: s.x, Xl: s.xl, Xu: s.xu, Zl: s.zl, Zu: s.zu}
}

// rows packages the constraint-gradient rows kkt's coupled solve needs.
func (s *state) rows() kkt.Rows {
	return kkt.Rows{Ineq: s.ineqRows, Weight: s.weightRows}
}

// residualInput assembles the already-evaluated quantities kkt.Residual.Compute
// needs for the current iterate.
func (s *state) residualInput() *kkt.ResidualInput {
	in := &kkt.ResidualInput{
		X: s.x, Xl: s.xl, Xu: s.xu,
		G:  s.grad,
		Zl: s.zl, Zu: s.zu,
		Ineq: s.ineqRows, Z: s.z, S: s.s, C: s.c,
		Mu: s.mu,
	}
	if s.nwcon > 0 {
		in.Weight = s.weightRows
		in.Zw = s.zw
		in.AwX = s.awx
		in.B = s.b
		in.AwTZw = s.awTzw
	}
	return in
}
