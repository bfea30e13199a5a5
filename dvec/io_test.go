// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dvec

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vec.bin")

	data := [][]float64{{1, 2, 3}, {4, 5}, {6, 7, 8, 9}}
	g := NewGroup(3)

	err := g.Run(func(rank int) error {
		v := g.FromSlice(rank, append([]float64(nil), data[rank]...))
		return v.WriteToFile(path)
	})
	if err != nil {
		t.Fatal(err)
	}

	readBack := make([][]float64, 3)
	err = g.Run(func(rank int) error {
		v := g.NewVec(rank, len(data[rank]))
		if err := v.ReadFromFile(path); err != nil {
			return err
		}
		readBack[rank] = append([]float64(nil), v.LocalSlice()...)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for rank := range data {
		for i := range data[rank] {
			if math.Abs(readBack[rank][i]-data[rank][i]) > 1e-12 {
				t.Errorf("rank %d entry %d = %v, want %v", rank, i, readBack[rank][i], data[rank][i])
			}
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	wantBytes := int64(8 * (3 + 2 + 4))
	if info.Size() != wantBytes {
		t.Errorf("file size = %d, want %d", info.Size(), wantBytes)
	}
}
