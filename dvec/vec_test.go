// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dvec

import (
	"math"
	"testing"
)

func TestVecAxpyAndScale(t *testing.T) {
	g := NewGroup(1)
	v := g.NewVec(0, 3)
	w := g.NewVec(0, 3)
	copy(v.LocalSlice(), []float64{1, 2, 3})
	copy(w.LocalSlice(), []float64{1, 1, 1})

	v.Axpy(2.0, w)
	want := []float64{3, 4, 5}
	for i, got := range v.LocalSlice() {
		if got != want[i] {
			t.Errorf("Axpy[%d] = %v, want %v", i, got, want[i])
		}
	}

	v.Scale(0.5)
	want = []float64{1.5, 2, 2.5}
	for i, got := range v.LocalSlice() {
		if got != want[i] {
			t.Errorf("Scale[%d] = %v, want %v", i, got, want[i])
		}
	}
}

func TestVecLInfNormPartitionInvariant(t *testing.T) {
	data := []float64{3, -7, 2, 5, -1, 9, 0, -4}

	norm1 := singleRankLInfNorm(data)

	for _, parts := range [][]int{{8}, {4, 4}, {3, 5}, {1, 1, 1, 1, 1, 1, 1, 1}} {
		got := partitionedLInfNorm(t, data, parts)
		if got != norm1 {
			t.Errorf("partition %v: LInfNorm = %v, want %v", parts, got, norm1)
		}
	}
}

func singleRankLInfNorm(data []float64) float64 {
	g := NewGroup(1)
	v := g.NewVec(0, len(data))
	copy(v.LocalSlice(), data)
	return v.LInfNorm()
}

func partitionedLInfNorm(t *testing.T, data []float64, parts []int) float64 {
	t.Helper()
	g := NewGroup(len(parts))
	var result float64
	offsets := make([]int, len(parts))
	off := 0
	for i, p := range parts {
		offsets[i] = off
		off += p
	}
	err := g.Run(func(rank int) error {
		v := g.NewVec(rank, parts[rank])
		copy(v.LocalSlice(), data[offsets[rank]:offsets[rank]+parts[rank]])
		n := v.LInfNorm()
		if rank == 0 {
			result = n
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestVecL2NormZeroVector(t *testing.T) {
	g := NewGroup(1)
	v := g.NewVec(0, 5)
	if got := v.L2Norm(); got != 0 {
		t.Errorf("L2Norm of zero vector = %v, want 0", got)
	}
}

func TestVecGatherReplicatesAcrossRanks(t *testing.T) {
	g := NewGroup(3)
	want := []float64{1, 2, 3, 4, 5, 6}
	parts := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	err := g.Run(func(rank int) error {
		v := g.FromSlice(rank, append([]float64(nil), parts[rank]...))
		got := v.Gather()
		if len(got) != len(want) {
			t.Errorf("rank %d: Gather length = %d, want %d", rank, len(got), len(want))
			return nil
		}
		for i := range want {
			if !floatsEqual(got[i], want[i]) {
				t.Errorf("rank %d: Gather[%d] = %v, want %v", rank, i, got[i], want[i])
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func floatsEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}
