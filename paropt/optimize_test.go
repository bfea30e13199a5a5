// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"math"
	"testing"

	"github.com/curioloop/paropt/dvec"
)

var gradScratch = dvec.NewGroup(1)

// TestOptimizeBoundedQuadraticWithInequality minimizes a separable
// quadratic subject to one active linear inequality and non-negativity
// bounds, a problem small enough to verify against the closed-form
// Lagrange-multiplier solution: x* = (1.5, 2.5), f* = 0.25.
func TestOptimizeBoundedQuadraticWithInequality(t *testing.T) {
	oracle := Oracle{
		Dims: func() (n, m, nwcon int) { return 2, 1, 0 },
		Bounds: func(xl, xu *dvec.Vec) {
			xl.Fill(0)
			xu.Fill(math.Inf(1))
		},
		Eval: func(x *dvec.Vec) (float64, *dvec.Vec, []float64, error) {
			xs := x.LocalSlice()
			f := 0.5*(xs[0]-2)*(xs[0]-2) + 0.5*(xs[1]-3)*(xs[1]-3)
			g := gradScratch.NewVec(0, 2)
			g.LocalSlice()[0] = xs[0] - 2
			g.LocalSlice()[1] = xs[1] - 3
			c := []float64{4 - xs[0] - xs[1]}
			return f, g, c, nil
		},
		ConGradients: func(x *dvec.Vec, rows []*dvec.Vec) error {
			rows[0].LocalSlice()[0] = -1
			rows[0].LocalSlice()[1] = -1
			return nil
		},
	}

	cfg := DefaultConfig()
	cfg.MaxMajorIterations = 100
	cfg.MsubMax = 5

	p := Problem{Oracle: oracle, Config: cfg}
	opt, err := p.New()
	if err != nil {
		t.Fatalf("Problem.New: %v", err)
	}

	w := opt.Init()
	res, err := opt.Fit([]float64{0.5, 0.5}, w)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Status != StatusConverged {
		t.Fatalf("status = %v, want converged (iters=%d, dualInf=%v, primalInf=%v, comp=%v)",
			res.Status, res.Iters, res.DualInf, res.PrimalInf, res.Comp)
	}

	const tol = 0.05
	if math.Abs(res.X[0]-1.5) > tol || math.Abs(res.X[1]-2.5) > tol {
		t.Errorf("X = %v, want approximately [1.5 2.5]", res.X)
	}
	if math.Abs(res.F-0.25) > tol {
		t.Errorf("F = %v, want approximately 0.25", res.F)
	}
}

// TestOptimizeUnboundedQuadraticConverges checks the interior-point loop on
// an unconstrained (m=0, nwcon=0) quadratic, where bound multipliers and
// slacks never enter and the coupled constraint system is empty.
func TestOptimizeUnboundedQuadraticConverges(t *testing.T) {
	oracle := Oracle{
		Dims: func() (n, m, nwcon int) { return 2, 0, 0 },
		Bounds: func(xl, xu *dvec.Vec) {
			xl.Fill(math.Inf(-1))
			xu.Fill(math.Inf(1))
		},
		Eval: func(x *dvec.Vec) (float64, *dvec.Vec, []float64, error) {
			xs := x.LocalSlice()
			f := (xs[0]-1)*(xs[0]-1) + (xs[1]+2)*(xs[1]+2)
			g := gradScratch.NewVec(0, 2)
			g.LocalSlice()[0] = 2 * (xs[0] - 1)
			g.LocalSlice()[1] = 2 * (xs[1] + 2)
			return f, g, nil, nil
		},
	}

	cfg := DefaultConfig()
	cfg.MaxMajorIterations = 50

	p := Problem{Oracle: oracle, Config: cfg}
	opt, err := p.New()
	if err != nil {
		t.Fatalf("Problem.New: %v", err)
	}
	w := opt.Init()
	res, err := opt.Fit([]float64{10, 10}, w)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	const tol = 0.05
	if math.Abs(res.X[0]-1) > tol || math.Abs(res.X[1]+2) > tol {
		t.Errorf("X = %v, want approximately [1 -2]", res.X)
	}
}
