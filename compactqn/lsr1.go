// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compactqn

import (
	"math"

	"github.com/curioloop/paropt/dvec"
	"gonum.org/v1/gonum/mat"
)

// LSR1 is the compact limited-memory symmetric-rank-1 representation
//
//	Z_i = Y_i - b0*S_i            (n x m)
//	d0  = [1,...,1]                 (length m)
//	M   = b0*S^T S - (D + L + L^T)  (m x m)
//	B   = b0*I - Z*diag(d0)*M^-1*diag(d0)*Z^T
//
// which, unlike LBFGS, applies no damping: a pair that fails the SR1
// curvature test is skipped outright rather than modified, exactly as
// ParOptVec.c's LSR1 class does.
type LSR1 struct {
	g      *dvec.Group
	rank   int
	nLocal int

	p int
	m int

	b0     float64
	skipTol float64 // |s^T z| <= skipTol * |s| * |z| => skip

	S, Y []*dvec.Vec
	z    []*dvec.Vec // length p, Z_i = Y_i - b0*S_i, owned (not aliases, unlike LBFGS)

	d  []float64
	ss []float64
	l  []float64

	mBuf []float64
	lu   mat.LU
	d0   []float64
	qBuf []float64
	wBuf []float64
}

// NewLSR1 allocates a compact L-SR1 model with ring capacity msubMax.
func NewLSR1(g *dvec.Group, rank, nLocal, msubMax int, b0, skipTol float64) *LSR1 {
	if msubMax <= 0 {
		panic("compactqn: msubMax must be positive")
	}
	p := msubMax
	q := &LSR1{
		g: g, rank: rank, nLocal: nLocal, p: p,
		b0: b0, skipTol: skipTol,
		S: make([]*dvec.Vec, p), Y: make([]*dvec.Vec, p), z: make([]*dvec.Vec, p),
		d: make([]float64, p), ss: make([]float64, p*p), l: make([]float64, p*p),
		mBuf: make([]float64, p*p), d0: make([]float64, p),
		qBuf: make([]float64, p), wBuf: make([]float64, p),
	}
	for i := 0; i < p; i++ {
		q.S[i] = g.NewVec(rank, nLocal)
		q.Y[i] = g.NewVec(rank, nLocal)
		q.z[i] = g.NewVec(rank, nLocal)
		q.d0[i] = 1
	}
	return q
}

func (q *LSR1) MaxSubspace() int { return q.p }
func (q *LSR1) Active() int      { return q.m }
func (q *LSR1) Reset()           { q.m = 0 }

// Update absorbs one (s, y) correction pair, or skips it if the SR1
// curvature condition is not met strongly enough to guarantee a
// well-conditioned update. b0 is set once, from the first accepted pair
// (b0 = y^T y / y^T s), and held fixed afterward; unlike LBFGS it is never
// recomputed on later pairs.
func (q *LSR1) Update(s, y *dvec.Vec) Kind {
	b0 := q.b0
	if q.m == 0 {
		b0 = y.Dot(y) / y.Dot(s)
	}

	zCand := q.g.NewVec(q.rank, q.nLocal)
	zCand.CopyFrom(y)
	zCand.Axpy(-b0, s)

	sz := s.Dot(zCand)
	sNorm := s.L2Norm()
	zNorm := zCand.L2Norm()
	if math.Abs(sz) <= q.skipTol*sNorm*zNorm {
		return Skipped
	}

	q.b0 = b0
	q.push(s, y, zCand)
	q.assembleAndFactor()
	return Normal
}

func (q *LSR1) push(s, y, z *dvec.Vec) {
	p := q.p
	if q.m < p {
		q.S[q.m].CopyFrom(s)
		q.Y[q.m].CopyFrom(y)
		q.z[q.m].CopyFrom(z)
		q.m++
		return
	}

	recycledS, recycledY, recycledZ := q.S[0], q.Y[0], q.z[0]
	for i := 0; i < p-1; i++ {
		q.S[i], q.Y[i], q.z[i] = q.S[i+1], q.Y[i+1], q.z[i+1]
		q.d[i] = q.d[i+1]
		for j := 0; j < p-1; j++ {
			q.ss[i*p+j] = q.ss[(i+1)*p+(j+1)]
			q.l[i*p+j] = q.l[(i+1)*p+(j+1)]
		}
	}
	q.S[p-1], q.Y[p-1], q.z[p-1] = recycledS, recycledY, recycledZ
	q.S[p-1].CopyFrom(s)
	q.Y[p-1].CopyFrom(y)
	q.z[p-1].CopyFrom(z)
}

func (q *LSR1) assembleAndFactor() {
	p, m := q.p, q.m
	newIdx := m - 1
	sNew := q.S[newIdx]

	ssRow := sNew.MDot(q.S[:m])
	lRow := sNew.MDot(q.Y[:m])
	for j := 0; j < m; j++ {
		q.ss[newIdx*p+j] = ssRow[j]
		q.ss[j*p+newIdx] = ssRow[j]
	}
	q.d[newIdx] = lRow[newIdx]
	for j := 0; j < newIdx; j++ {
		q.l[newIdx*p+j] = lRow[j]
	}

	for i := 0; i < m*m; i++ {
		q.mBuf[i] = 0
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			var lij float64
			if i > j {
				lij = q.l[i*p+j]
			} else if i < j {
				lij = q.l[j*p+i]
			}
			diag := 0.0
			if i == j {
				diag = q.d[i]
			}
			q.mBuf[i*m+j] = q.b0*q.ss[i*p+j] - diag - lij
		}
	}

	mDense := mat.NewDense(m, m, q.mBuf[:m*m])
	q.lu.Factorize(mDense)
}

func (q *LSR1) Mult(x, out *dvec.Vec) {
	out.CopyFrom(x)
	out.Scale(q.b0)
	q.correction(x, out, -1)
}

func (q *LSR1) MultAdd(alpha float64, x, out *dvec.Vec) {
	out.Axpy(alpha*q.b0, x)
	q.correction(x, out, -alpha)
}

func (q *LSR1) correction(x, out *dvec.Vec, sign float64) {
	m := q.m
	if m == 0 {
		return
	}
	zt := x.MDot(q.z[:m])
	qVec := mat.NewVecDense(m, append([]float64(nil), zt...))
	wVec := mat.NewVecDense(m, q.wBuf[:m])
	if err := q.lu.SolveVecTo(wVec, false, qVec); err != nil {
		return
	}
	for i := 0; i < m; i++ {
		out.Axpy(sign*q.wBuf[i], q.z[i])
	}
}

func (q *LSR1) CurrentSnapshot() Snapshot {
	m := q.m
	return Snapshot{
		B0:   q.b0,
		Rank: m,
		Z:    append([]*dvec.Vec(nil), q.z[:m]...),
		D0:   append([]float64(nil), q.d0[:m]...),
		M:    append([]float64(nil), q.mBuf[:m*m]...),
		Solve: func(rhs []float64) []float64 {
			if m == 0 {
				return nil
			}
			out := make([]float64, m)
			rVec := mat.NewVecDense(m, append([]float64(nil), rhs...))
			oVec := mat.NewVecDense(m, out)
			if err := q.lu.SolveVecTo(oVec, false, rVec); err != nil {
				return make([]float64, m)
			}
			return out
		},
	}
}
