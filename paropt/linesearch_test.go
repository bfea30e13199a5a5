// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"math"
	"testing"

	"github.com/curioloop/paropt/dvec"
)

func TestCapLowerStopsShortOfBoundary(t *testing.T) {
	g := dvec.NewGroup(1)
	val := g.NewVec(0, 1)
	bound := g.NewVec(0, 1)
	step := g.NewVec(0, 1)
	val.LocalSlice()[0] = 1.0
	bound.LocalSlice()[0] = 0.0
	step.LocalSlice()[0] = -2.0 // would reach the bound at alpha=0.5

	tau := 0.9
	alpha := capLower(g, 0, val, bound, step, tau)
	want := tau * 1.0 / 2.0
	if math.Abs(alpha-want) > 1e-12 {
		t.Errorf("capLower = %v, want %v", alpha, want)
	}
}

func TestCapLowerIgnoresAbsentBound(t *testing.T) {
	g := dvec.NewGroup(1)
	val := g.NewVec(0, 1)
	bound := g.NewVec(0, 1)
	step := g.NewVec(0, 1)
	val.LocalSlice()[0] = 1.0
	bound.LocalSlice()[0] = math.Inf(-1)
	step.LocalSlice()[0] = -100.0

	alpha := capLower(g, 0, val, bound, step, 0.99)
	if alpha != 1.0 {
		t.Errorf("capLower with absent bound = %v, want 1.0", alpha)
	}
}

func TestCapUpperStopsShortOfBoundary(t *testing.T) {
	g := dvec.NewGroup(1)
	val := g.NewVec(0, 1)
	bound := g.NewVec(0, 1)
	step := g.NewVec(0, 1)
	val.LocalSlice()[0] = 1.0
	bound.LocalSlice()[0] = 3.0
	step.LocalSlice()[0] = 4.0 // would reach the bound at alpha=0.5

	tau := 0.9
	alpha := capUpper(g, 0, val, bound, step, tau)
	want := tau * 2.0 / 4.0
	if math.Abs(alpha-want) > 1e-12 {
		t.Errorf("capUpper = %v, want %v", alpha, want)
	}
}

func TestMaxPrimalStepCapsOnSlack(t *testing.T) {
	g := dvec.NewGroup(1)
	st := &state{g: g, rank: 0, nLocal: 1}
	st.x = g.NewVec(0, 1)
	st.xl = g.NewVec(0, 1)
	st.xu = g.NewVec(0, 1)
	st.xl.LocalSlice()[0] = math.Inf(-1)
	st.xu.LocalSlice()[0] = math.Inf(1)
	st.s = []float64{1.0}

	px := g.NewVec(0, 1)
	px.LocalSlice()[0] = 0
	ps := []float64{-2.0} // would reach s=0 at alpha=0.5

	tau := 0.9
	alpha := maxPrimalStep(st, px, ps, tau)
	want := tau * 1.0 / 2.0
	if math.Abs(alpha-want) > 1e-12 {
		t.Errorf("maxPrimalStep = %v, want %v", alpha, want)
	}
}
