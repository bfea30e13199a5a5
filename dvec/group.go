// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dvec implements the data-parallel dense vector abstraction that
// underlies the optimizer: a fixed set of ranks, a collective communicator
// shared by them, and a distributed vector type partitioned across them.
//
// There is no libmpi binding involved. A Group is an in-process SPMD
// simulation: every rank runs on its own goroutine and every collective
// (Vec's Dot, MDot, norms and Gather, Group's GlobalSum and GlobalMin, the
// collective file I/O) is a barrier that blocks the calling goroutine until all ranks have issued the
// matching call for the current round. Calling collectives out of order
// across ranks panics instead of silently reducing garbage, which is the
// Go-idiomatic analogue of spec's "mismatched call sequences are the
// primary correctness hazard".
package dvec

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Group is the communicator shared by a fixed set of ranks.
type Group struct {
	n    int
	mu   sync.Mutex
	cond *sync.Cond
	cur  *collective
}

// collective is the state of the in-flight barrier for one collective call.
// Ranks arrive, deposit their contribution, and the last arriver combines
// them; all ranks then read the shared result before the barrier resets.
type collective struct {
	tag           string
	contributions []any
	arrived       int
	left          int
	result        any
	ready         bool
}

// NewGroup creates a communicator for n ranks.
func NewGroup(n int) *Group {
	if n <= 0 {
		panic("dvec: group size must be positive")
	}
	g := &Group{n: n}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.n }

// GlobalSum reduces a per-rank scalar to the sum across every rank,
// replicated identically everywhere — used by merit-function evaluation to
// total a log-barrier term accumulated independently on each rank's shard.
func (g *Group) GlobalSum(rank int, local float64) float64 {
	res := g.collect(rank, "dvec.GlobalSum", local, sumFloats)
	return res.(float64)
}

// GlobalMin reduces a per-rank scalar (such as a fraction-to-boundary step
// cap computed from each rank's local shard) to the minimum across every
// rank, replicated identically everywhere — the scalar counterpart to
// Vec.L2Norm's allreduce, needed by the line search before any rank can
// safely apply a trial step.
func (g *Group) GlobalMin(rank int, local float64) float64 {
	res := g.collect(rank, "dvec.GlobalMin", local, minFloats)
	return res.(float64)
}

func minFloats(contribs []any) any {
	m := contribs[0].(float64)
	for _, c := range contribs[1:] {
		if v := c.(float64); v < m {
			m = v
		}
	}
	return m
}

// Run launches fn on a goroutine per rank via errgroup, waits for every rank
// to return, and returns the first non-nil error. A panic on a rank is not
// recovered, and ranks blocked in a collective are not released when another
// rank returns early.
func (g *Group) Run(fn func(rank int) error) error {
	var eg errgroup.Group
	for r := 0; r < g.n; r++ {
		rank := r
		eg.Go(func() error { return fn(rank) })
	}
	return eg.Wait()
}

// collect is the generic collective primitive: every rank deposits a
// contribution under tag, blocks until all n ranks have arrived, then every
// rank receives combine's result. combine is called exactly once, by the
// last arriver, with contributions indexed by rank — the ordering is fixed
// by rank index, so the reduction is deterministic regardless of arrival
// order (spec §9's "prefer (a): compute on one rank ... or (b): a
// deterministic reduction primitive" — this is (b), trivially, because
// every rank computes the identical sum over the identical ordered slice).
func (g *Group) collect(rank int, tag string, contribution any, combine func([]any) any) any {
	g.mu.Lock()
	defer g.mu.Unlock()

	// A rank that already left the previous round waits here until every
	// other rank has also read that round's result.
	for g.cur != nil && g.cur.ready {
		g.cond.Wait()
	}
	if g.cur == nil {
		g.cur = &collective{tag: tag, contributions: make([]any, g.n)}
	}
	cs := g.cur
	if cs.tag != tag {
		panic(fmt.Sprintf("dvec: collective call order mismatch: rank %d issued %q while group is mid-%q", rank, tag, cs.tag))
	}
	if cs.contributions[rank] != nil {
		panic(fmt.Sprintf("dvec: rank %d issued %q twice in the same round", rank, tag))
	}

	cs.contributions[rank] = contribution
	cs.arrived++
	if cs.arrived == g.n {
		cs.result = combine(cs.contributions)
		cs.ready = true
		g.cond.Broadcast()
	} else {
		for !cs.ready {
			g.cond.Wait()
		}
	}

	cs.left++
	result := cs.result
	if cs.left == g.n {
		g.cur = nil
		g.cond.Broadcast()
	}
	return result
}
