// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dvec

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// WriteToFile writes v's entries to path at the byte offset determined by
// an exclusive prefix sum of every rank's local length, so that the file
// holds the global vector in rank order regardless of how it is
// partitioned — the collective-I/O analogue of ParOptVec's use of
// MPI_Allgather for offsets followed by MPI_File_write_at_all. Every rank
// must call WriteToFile on a congruent vector (same Group, same round)
// or the offset collective panics.
func (v *Vec) WriteToFile(path string) error {
	lens := v.g.collect(v.rank, "dvec.WriteToFile.lens", len(v.x), gatherInts).([]int)

	offset := 0
	for r := 0; r < v.rank; r++ {
		offset += lens[r]
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("dvec: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 8*len(v.x))
	for i, xi := range v.x {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(xi))
	}
	if _, err := f.WriteAt(buf, int64(8*offset)); err != nil {
		return fmt.Errorf("dvec: write %s at offset %d: %w", path, offset, err)
	}

	// Rank 0 truncates once everyone else has finished writing their
	// portion, so a stale longer file from a previous run doesn't leave
	// trailing garbage. The barrier below ensures that happens only after
	// every WriteAt has completed.
	total := v.g.collect(v.rank, "dvec.WriteToFile.total", offset+len(v.x), maxInts).(int)
	if v.rank == 0 {
		if err := f.Truncate(int64(8 * total)); err != nil {
			return fmt.Errorf("dvec: truncate %s: %w", path, err)
		}
	}
	return nil
}

// ReadFromFile is the inverse of WriteToFile: every rank reads its own
// contiguous byte range, determined the same way, back into its local
// slice.
func (v *Vec) ReadFromFile(path string) error {
	lens := v.g.collect(v.rank, "dvec.ReadFromFile.lens", len(v.x), gatherInts).([]int)

	offset := 0
	for r := 0; r < v.rank; r++ {
		offset += lens[r]
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dvec: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 8*len(v.x))
	if _, err := f.ReadAt(buf, int64(8*offset)); err != nil {
		return fmt.Errorf("dvec: read %s at offset %d: %w", path, offset, err)
	}
	for i := range v.x {
		v.x[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return nil
}

func gatherInts(contribs []any) any {
	out := make([]int, len(contribs))
	for i, c := range contribs {
		out[i] = c.(int)
	}
	return out
}

func maxInts(contribs []any) any {
	m := 0
	for i, c := range contribs {
		v := c.(int)
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}
