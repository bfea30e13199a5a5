// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dvec

import (
	"testing"
)

func TestGroupAllReduceSum(t *testing.T) {
	g := NewGroup(4)
	err := g.Run(func(rank int) error {
		v := g.NewVec(rank, 3)
		for i := range v.LocalSlice() {
			v.LocalSlice()[i] = float64(rank + 1)
		}
		got := v.L2Norm()
		want := 0.0
		for r := 0; r < 4; r++ {
			want += float64(r+1) * float64(r+1) * 3
		}
		want = sqrtApprox(want)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("rank %d: L2Norm = %v, want %v", rank, got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func sqrtApprox(x float64) float64 {
	if x == 0 {
		return 0
	}
	g := x
	for i := 0; i < 50; i++ {
		g = 0.5 * (g + x/g)
	}
	return g
}

func TestGroupCollectiveOrderMismatchPanics(t *testing.T) {
	g := NewGroup(2)
	done := make(chan struct{})
	var panicked bool

	go func() {
		defer func() {
			if recover() != nil {
				panicked = true
			}
			close(done)
		}()
		v := g.NewVec(0, 1)
		v.L2Norm()
	}()

	go func() {
		v := g.NewVec(1, 1)
		v.LInfNorm()
	}()

	<-done
	if !panicked {
		t.Error("expected mismatched collective tags to panic")
	}
}

func TestGroupGlobalMinAndSum(t *testing.T) {
	g := NewGroup(3)
	err := g.Run(func(rank int) error {
		local := float64(2 - rank) // 2, 1, 0
		min := g.GlobalMin(rank, local)
		if min != 0 {
			t.Errorf("rank %d: GlobalMin = %v, want 0", rank, min)
		}
		sum := g.GlobalSum(rank, local)
		if sum != 3 {
			t.Errorf("rank %d: GlobalSum = %v, want 3", rank, sum)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestGroupMDotMatchesRepeatedDot(t *testing.T) {
	g := NewGroup(2)
	err := g.Run(func(rank int) error {
		n := 3
		a := g.NewVec(rank, n)
		b := g.NewVec(rank, n)
		c := g.NewVec(rank, n)
		for i := 0; i < n; i++ {
			a.LocalSlice()[i] = float64(rank*n + i + 1)
			b.LocalSlice()[i] = float64(2*(rank*n+i) + 1)
			c.LocalSlice()[i] = float64(rank - i)
		}
		got := a.MDot([]*Vec{b, c})
		wantB := a.Dot(b)
		wantC := a.Dot(c)
		if got[0] != wantB || got[1] != wantC {
			t.Errorf("rank %d: MDot = %v, want [%v %v]", rank, got, wantB, wantC)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
