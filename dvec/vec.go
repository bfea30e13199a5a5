// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dvec

import (
	"math"

	"gonum.org/v1/gonum/blas/blas64"
)

// Vec is a dense vector partitioned across a Group: each rank owns a
// contiguous local slice and never sees another rank's entries directly.
// Local (non-communicating) operations — Zero, Fill, Scale, Axpy, pointwise
// combinations — run purely against the local slice. Global operations —
// Dot, MDot, L2Norm, LInfNorm, Gather — combine the local contribution with
// every other rank's via the owning Group's collectives and return the same
// replicated scalar (or slice) on every rank.
type Vec struct {
	g    *Group
	rank int
	x    []float64
}

// NewVec allocates a distributed vector of nLocal entries on rank.
func (g *Group) NewVec(rank, nLocal int) *Vec {
	if rank < 0 || rank >= g.n {
		panic("dvec: rank out of range")
	}
	return &Vec{g: g, rank: rank, x: make([]float64, nLocal)}
}

// FromSlice wraps an existing local slice without copying it.
func (g *Group) FromSlice(rank int, x []float64) *Vec {
	if rank < 0 || rank >= g.n {
		panic("dvec: rank out of range")
	}
	return &Vec{g: g, rank: rank, x: x}
}

// Rank reports the owning rank.
func (v *Vec) Rank() int { return v.rank }

// Len returns the local length. There is no cheap way to learn the global
// length without a collective; callers that need it should track it
// themselves or use Gather.
func (v *Vec) Len() int { return len(v.x) }

// LocalSlice exposes the local entries directly; mutating it bypasses no
// invariant, since Vec carries no cached derived state.
func (v *Vec) LocalSlice() []float64 { return v.x }

func (v *Vec) bv() blas64.Vector { return blas64.Vector{N: len(v.x), Inc: 1, Data: v.x} }

// Zero sets every local entry to 0.
func (v *Vec) Zero() {
	for i := range v.x {
		v.x[i] = 0
	}
}

// Fill sets every local entry to alpha.
func (v *Vec) Fill(alpha float64) {
	for i := range v.x {
		v.x[i] = alpha
	}
}

// CopyFrom copies src's local entries into v. Both vectors must have equal
// local length and live on the same rank; this is a purely local operation.
func (v *Vec) CopyFrom(src *Vec) {
	if len(v.x) != len(src.x) {
		panic("dvec: CopyFrom length mismatch")
	}
	copy(v.x, src.x)
}

// Scale computes v <- alpha*v.
func (v *Vec) Scale(alpha float64) {
	blas64.Scal(alpha, v.bv())
}

// Axpy computes v <- v + alpha*x.
func (v *Vec) Axpy(alpha float64, x *Vec) {
	if len(v.x) != len(x.x) {
		panic("dvec: Axpy length mismatch")
	}
	blas64.Axpy(alpha, x.bv(), v.bv())
}

// AxpbyInto computes dst <- alpha*v + beta*dst, a fused local combination.
func (v *Vec) AxpbyInto(alpha float64, dst *Vec, beta float64) {
	if len(v.x) != len(dst.x) {
		panic("dvec: AxpbyInto length mismatch")
	}
	for i, xi := range v.x {
		dst.x[i] = alpha*xi + beta*dst.x[i]
	}
}

// localDot is the uncommunicated local contribution to a dot product.
func (v *Vec) localDot(w *Vec) float64 {
	if len(v.x) != len(w.x) {
		panic("dvec: Dot length mismatch")
	}
	return blas64.Dot(v.bv(), w.bv())
}

// Dot returns the global inner product <v, w>, replicated on every rank.
func (v *Vec) Dot(w *Vec) float64 {
	local := v.localDot(w)
	res := v.g.collect(v.rank, "dvec.Dot", local, sumFloats)
	return res.(float64)
}

// MDot returns the global inner product of v against every vector in ws in
// a single collective round, avoiding len(ws) separate allreduces — the
// batched counterpart to repeated Dot calls, grounded on the same access
// pattern ParOptVec's mdot uses to amortize MPI_Allreduce cost across a
// whole column set.
func (v *Vec) MDot(ws []*Vec) []float64 {
	local := make([]float64, len(ws))
	for i, w := range ws {
		local[i] = v.localDot(w)
	}
	res := v.g.collect(v.rank, "dvec.MDot", local, sumFloatSlices)
	return res.([]float64)
}

// L2Norm returns the global Euclidean norm, replicated on every rank.
func (v *Vec) L2Norm() float64 {
	localSq := blas64.Dot(v.bv(), v.bv())
	res := v.g.collect(v.rank, "dvec.L2Norm", localSq, sumFloats)
	return math.Sqrt(res.(float64))
}

// LInfNorm returns the global max-abs norm, replicated on every rank.
func (v *Vec) LInfNorm() float64 {
	local := 0.0
	for _, xi := range v.x {
		if a := math.Abs(xi); a > local {
			local = a
		}
	}
	res := v.g.collect(v.rank, "dvec.LInfNorm", local, maxFloats)
	return res.(float64)
}

// Gather assembles every rank's local slice, in rank order, into one
// replicated slice returned identically on every rank. It is intended for
// vectors the caller already knows are modest in total length — the small
// dual blocks (z, s) and, per the documented simplification around the
// weighting-constraint block, z_w and its residual — not for the primal
// vector x, which stays partitioned everywhere else.
func (v *Vec) Gather() []float64 {
	res := v.g.collect(v.rank, "dvec.Gather", append([]float64(nil), v.x...), concatFloatSlices)
	return res.([]float64)
}

func sumFloats(contribs []any) any {
	s := 0.0
	for _, c := range contribs {
		s += c.(float64)
	}
	return s
}

func maxFloats(contribs []any) any {
	m := math.Inf(-1)
	for _, c := range contribs {
		if v := c.(float64); v > m {
			m = v
		}
	}
	return m
}

func sumFloatSlices(contribs []any) any {
	k := len(contribs[0].([]float64))
	sum := make([]float64, k)
	for _, c := range contribs {
		s := c.([]float64)
		for i, v := range s {
			sum[i] += v
		}
	}
	return sum
}

func concatFloatSlices(contribs []any) any {
	var out []float64
	for _, c := range contribs {
		out = append(out, c.([]float64)...)
	}
	return out
}
