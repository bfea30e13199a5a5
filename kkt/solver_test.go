// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kkt

import (
	"math"
	"testing"

	"github.com/curioloop/paropt/compactqn"
	"github.com/curioloop/paropt/dvec"
)

func TestDiagonalSolveXMatchesHandInverse(t *testing.T) {
	g := dvec.NewGroup(1)
	d := NewDiagonal(g, 0, 3)

	x := g.NewVec(0, 3)
	xl := g.NewVec(0, 3)
	xu := g.NewVec(0, 3)
	zl := g.NewVec(0, 3)
	zu := g.NewVec(0, 3)
	copy(x.LocalSlice(), []float64{1, 2, 3})
	copy(xl.LocalSlice(), []float64{0, 0, math.Inf(-1)})
	copy(xu.LocalSlice(), []float64{10, 10, 10})
	copy(zl.LocalSlice(), []float64{0.5, 0.2, 0})
	copy(zu.LocalSlice(), []float64{0.1, 0.1, 0.3})

	d.Setup(2.0, Bounds{X: x, Xl: xl, Xu: xu, Zl: zl, Zu: zu}, nil, nil, 0)

	v := g.NewVec(0, 3)
	copy(v.LocalSlice(), []float64{4, 6, 9})

	out := d.SolveX(v)

	wantC := []float64{
		2.0 + 0.5/1 + 0.1/9,
		2.0 + 0.2/2 + 0.1/8,
		2.0 + 0.3/7,
	}
	for i, c := range wantC {
		got := out.LocalSlice()[i]
		want := v.LocalSlice()[i] / c
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("SolveX[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestCoupledSolveRecoversKnownStep(t *testing.T) {
	// A single inequality row in a 2-d x-space, checked against the
	// closed-form solution of the 3x3 linear system by hand.
	g := dvec.NewGroup(1)
	d := NewDiagonal(g, 0, 2)

	x := g.NewVec(0, 2)
	xl := g.NewVec(0, 2)
	xu := g.NewVec(0, 2)
	zl := g.NewVec(0, 2)
	zu := g.NewVec(0, 2)
	for _, v := range []*dvec.Vec{x, xl, xu, zl, zu} {
		for i := range v.LocalSlice() {
			v.LocalSlice()[i] = 0
		}
	}
	copy(xl.LocalSlice(), []float64{math.Inf(-1), math.Inf(-1)})
	copy(xu.LocalSlice(), []float64{math.Inf(1), math.Inf(1)})

	s := []float64{1.0}
	z := []float64{1.0}
	d.Setup(2.0, Bounds{X: x, Xl: xl, Xu: xu, Zl: zl, Zu: zu}, s, z, 0)

	row := g.NewVec(0, 2)
	copy(row.LocalSlice(), []float64{1, 0})
	rows := Rows{Ineq: []*dvec.Vec{row}}

	res := NewResidual(g, 0, 2, 1, 0)
	copy(res.Rx.LocalSlice(), []float64{3, 4})
	res.Rc[0] = 0.5
	res.Rs[0] = 0.1

	step := d.SolveFull(res, rows)

	// C = 2I (no bounds active), D_mat = s/z + row^T C^-1 row = 1 + 0.5 = 1.5
	// rhs = -(rs/z + rc) - row.(-C^-1 rx) = -(0.1+0.5) - (1*(-3/2)) = -0.6+1.5=0.9
	wantPz := 0.9 / 1.5
	if math.Abs(step.Pz[0]-wantPz) > 1e-9 {
		t.Errorf("Pz = %v, want %v", step.Pz[0], wantPz)
	}

	wantPx0 := (-3.0 + wantPz*1.0) / 2.0
	wantPx1 := (-4.0 + wantPz*0.0) / 2.0
	if math.Abs(step.Px.LocalSlice()[0]-wantPx0) > 1e-9 || math.Abs(step.Px.LocalSlice()[1]-wantPx1) > 1e-9 {
		t.Errorf("Px = %v, want [%v %v]", step.Px.LocalSlice(), wantPx0, wantPx1)
	}
}

func TestWoodburyMatchesDiagonalWithEmptySubspace(t *testing.T) {
	g := dvec.NewGroup(1)
	d := NewDiagonal(g, 0, 3)

	x := g.NewVec(0, 3)
	xl := g.NewVec(0, 3)
	xu := g.NewVec(0, 3)
	zl := g.NewVec(0, 3)
	zu := g.NewVec(0, 3)
	copy(xl.LocalSlice(), []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)})
	copy(xu.LocalSlice(), []float64{math.Inf(1), math.Inf(1), math.Inf(1)})
	d.Setup(1.5, Bounds{X: x, Xl: xl, Xu: xu, Zl: zl, Zu: zu}, nil, nil, 0)

	w := NewWoodbury(d)
	qn := compactqn.NewLBFGS(g, 0, 3, 5, 1.5, 0.2)
	if err := w.Refresh(qn.CurrentSnapshot()); err != nil {
		t.Fatal(err)
	}

	v := g.NewVec(0, 3)
	copy(v.LocalSlice(), []float64{1, 2, 3})

	gotDiag := d.SolveX(v)
	gotWoodbury := w.SolveX(v)
	for i := range v.LocalSlice() {
		if math.Abs(gotDiag.LocalSlice()[i]-gotWoodbury.LocalSlice()[i]) > 1e-9 {
			t.Errorf("index %d: diagonal=%v woodbury=%v, want equal with empty subspace", i, gotDiag.LocalSlice()[i], gotWoodbury.LocalSlice()[i])
		}
	}
}
