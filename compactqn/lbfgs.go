// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compactqn

import (
	"github.com/curioloop/paropt/dvec"
	"gonum.org/v1/gonum/mat"
)

// LBFGS is the compact limited-memory BFGS representation
//
//	Z  = [S  Y]                      (n x 2m, raw unscaled correction pairs)
//	d0 = [b0,...,b0, 1,...,1]         (length 2m)
//	M  = [[b0*S^T S,  L], [L^T, -D]]  (2m x 2m)
//	B  = b0*I - Z*diag(d0)*M^-1*diag(d0)*Z^T
//
// a permutation of the Byrd-Nocedal-Schnabel compact representation chosen
// to match the diag(d0) form shared with LSR1. S and Y are held as a FIFO
// ring of distributed vectors exactly as ParOptVec.c's LBFGS class holds
// them: on overflow the oldest pair's storage is recycled in place (its
// entries overwritten, the pointer moved to the back of the ring) rather
// than freed and reallocated, so the ring rotation touches no n-sized
// allocation (a damped update still allocates one vector for the damped y).
type LBFGS struct {
	g      *dvec.Group
	rank   int
	nLocal int

	p int // msubMax, ring capacity
	m int // active pairs

	b0      float64
	dampFrac float64 // Powell damping threshold, s^T y >= dampFrac * s^T B s

	S, Y []*dvec.Vec // length p ring, newest at index m-1
	bs   *dvec.Vec   // scratch: B_prev * s, used for damping and nowhere else

	d  []float64 // packed diag, length p
	ss []float64 // packed S^T S, length p*p, row-major
	l  []float64 // packed strict-lower S^T Y, length p*p, row-major

	mBuf []float64 // assembled M, length (2p)*(2p), sliced to active (2m)*(2m)
	lu   mat.LU
	z    []*dvec.Vec // length 2p, column aliases into S then Y
	d0   []float64   // length 2p
	qBuf []float64   // scratch length 2p: diag(d0) Z^T x
	wBuf []float64   // scratch length 2p: M^-1 q

	lastKind Kind
}

// NewLBFGS allocates a compact L-BFGS model with ring capacity msubMax over
// a vector space of nLocal entries on rank, with initial scaling b0.
func NewLBFGS(g *dvec.Group, rank, nLocal, msubMax int, b0, dampFrac float64) *LBFGS {
	if msubMax <= 0 {
		panic("compactqn: msubMax must be positive")
	}
	p := msubMax
	q := &LBFGS{
		g: g, rank: rank, nLocal: nLocal, p: p,
		b0: b0, dampFrac: dampFrac,
		S: make([]*dvec.Vec, p), Y: make([]*dvec.Vec, p),
		bs: g.NewVec(rank, nLocal),
		d:  make([]float64, p), ss: make([]float64, p*p), l: make([]float64, p*p),
		mBuf: make([]float64, 4*p*p),
		z:    make([]*dvec.Vec, 2*p), d0: make([]float64, 2*p),
		qBuf: make([]float64, 2*p), wBuf: make([]float64, 2*p),
	}
	for i := 0; i < p; i++ {
		q.S[i] = g.NewVec(rank, nLocal)
		q.Y[i] = g.NewVec(rank, nLocal)
	}
	return q
}

func (q *LBFGS) MaxSubspace() int { return q.p }
func (q *LBFGS) Active() int      { return q.m }

// Reset discards every stored pair and sets b0 back to 1, reverting to B = I.
func (q *LBFGS) Reset() {
	q.m = 0
	q.b0 = 1
}

// Update absorbs one (s, y) correction pair, self-scaling b0 from the
// curvature of the (possibly damped) pair being absorbed: b0 = gamma/alpha
// with gamma = y'^T y', alpha = y'^T s for the pair y' actually stored. On
// the very first pair, a nonpositive ratio resets b0 to 1 rather than
// corrupting the initial scaling.
func (q *LBFGS) Update(s, y *dvec.Vec) Kind {
	gamma := y.Dot(y)
	sy := y.Dot(s)

	if q.m == 0 {
		q.b0 = gamma / sy
		if q.b0 <= 0 {
			q.b0 = 1
		}
	}

	q.Mult(s, q.bs)
	sBs := s.Dot(q.bs)

	useY := y
	kind := Normal
	if sy <= q.dampFrac*sBs {
		// Powell damping: theta chosen so the damped pair clears the
		// threshold exactly, y' = (1-theta)*B*s + theta*y.
		denom := sBs - sy
		theta := 1.0
		if denom > 0 {
			theta = (1 - q.dampFrac) * sBs / denom
		}
		if theta < 0 {
			theta = 0
		} else if theta > 1 {
			theta = 1
		}
		damped := q.g.NewVec(q.rank, q.nLocal)
		damped.CopyFrom(q.bs)
		damped.Scale(1 - theta)
		damped.Axpy(theta, y)
		useY = damped
		kind = Damped

		gamma = useY.Dot(useY)
		sy = useY.Dot(s)
	}

	q.b0 = gamma / sy

	q.push(s, useY)
	q.assembleAndFactor()
	q.lastKind = kind
	return kind
}

// push rotates the ring (if full) and writes the new pair into the back
// slot, recycling existing storage rather than allocating.
func (q *LBFGS) push(s, y *dvec.Vec) {
	p := q.p
	if q.m < p {
		q.S[q.m].CopyFrom(s)
		q.Y[q.m].CopyFrom(y)
		q.m++
		return
	}

	// Ring is full: slot 0 is recycled as the new back slot. Shift the
	// packed D/L/SS bookkeeping left by one in lockstep with the pointer
	// rotation, mirroring ParOptVec.c's update exactly.
	recycledS, recycledY := q.S[0], q.Y[0]
	for i := 0; i < p-1; i++ {
		q.S[i], q.Y[i] = q.S[i+1], q.Y[i+1]
		q.d[i] = q.d[i+1]
		for j := 0; j < p-1; j++ {
			q.ss[i*p+j] = q.ss[(i+1)*p+(j+1)]
			q.l[i*p+j] = q.l[(i+1)*p+(j+1)]
		}
	}
	q.S[p-1], q.Y[p-1] = recycledS, recycledY
	q.S[p-1].CopyFrom(s)
	q.Y[p-1].CopyFrom(y)
}

// assembleAndFactor recomputes the newest row/column of D, L, S^T S (via a
// single MDot each, rather than one allreduce per entry), then rebuilds and
// factors the dense M.
func (q *LBFGS) assembleAndFactor() {
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

	rank := 2 * m
	for i := 0; i < 4*p*p && i < rank*rank; i++ {
		q.mBuf[i] = 0
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			q.mBuf[i*rank+j] = q.b0 * q.ss[i*p+j]
		}
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			lij := q.l[i*p+j]
			q.mBuf[i*rank+(m+j)] = lij
			q.mBuf[(m+j)*rank+i] = lij
		}
	}
	for i := 0; i < m; i++ {
		q.mBuf[(m+i)*rank+(m+i)] = -q.d[i]
	}

	for i := 0; i < m; i++ {
		q.z[i] = q.S[i]
		q.d0[i] = q.b0
	}
	for i := 0; i < m; i++ {
		q.z[m+i] = q.Y[i]
		q.d0[m+i] = 1
	}

	mDense := mat.NewDense(rank, rank, q.mBuf[:rank*rank])
	q.lu.Factorize(mDense)
}

// Mult computes out <- B*x.
func (q *LBFGS) Mult(x, out *dvec.Vec) {
	out.CopyFrom(x)
	out.Scale(q.b0)
	q.correction(x, out, -1)
}

// MultAdd computes out <- out + alpha*B*x.
func (q *LBFGS) MultAdd(alpha float64, x, out *dvec.Vec) {
	out.Axpy(alpha*q.b0, x)
	q.correction(x, out, -alpha)
}

// correction adds sign * Z*diag(d0)*M^-1*diag(d0)*Z^T*x into out.
func (q *LBFGS) correction(x, out *dvec.Vec, sign float64) {
	rank := 2 * q.m
	if rank == 0 {
		return
	}
	zt := x.MDot(q.z[:rank])
	for i := 0; i < rank; i++ {
		q.qBuf[i] = q.d0[i] * zt[i]
	}
	qVec := mat.NewVecDense(rank, q.qBuf[:rank])
	wVec := mat.NewVecDense(rank, q.wBuf[:rank])
	if err := q.lu.SolveVecTo(wVec, false, qVec); err != nil {
		// Singular M: treat the correction as unavailable for this call
		// rather than propagating a NaN step, consistent with the
		// scoped-down handling documented for small-dense solve failure.
		return
	}
	for i := 0; i < rank; i++ {
		out.Axpy(sign*q.d0[i]*q.wBuf[i], q.z[i])
	}
}

// CurrentSnapshot exposes Z, d0, and an M^-1 applier for the Woodbury
// solver.
func (q *LBFGS) CurrentSnapshot() Snapshot {
	rank := 2 * q.m
	mCopy := append([]float64(nil), q.mBuf[:rank*rank]...)
	return Snapshot{
		B0:   q.b0,
		Rank: rank,
		Z:    append([]*dvec.Vec(nil), q.z[:rank]...),
		D0:   append([]float64(nil), q.d0[:rank]...),
		M:    mCopy,
		Solve: func(rhs []float64) []float64 {
			if rank == 0 {
				return nil
			}
			out := make([]float64, rank)
			rVec := mat.NewVecDense(rank, append([]float64(nil), rhs...))
			oVec := mat.NewVecDense(rank, out)
			if err := q.lu.SolveVecTo(oVec, false, rVec); err != nil {
				return make([]float64, rank)
			}
			return out
		},
	}
}
