// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"fmt"

	"github.com/curioloop/paropt/dvec"
)

// Status reports why the major iteration loop stopped.
type Status int

const (
	// StatusConverged means the combined KKT residual norm satisfied the
	// configured absolute/relative tolerance.
	StatusConverged Status = iota
	// StatusMaxIterations means MaxMajorIterations was reached first.
	StatusMaxIterations
	// StatusLineSearchFailed means the merit-function line search could
	// not find an acceptable step within MaxLineSearchIters.
	StatusLineSearchFailed
	// StatusOracleError means the oracle returned an error during the
	// major iteration loop.
	StatusOracleError
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max iterations"
	case StatusLineSearchFailed:
		return "line search failed"
	case StatusOracleError:
		return "oracle error"
	default:
		return "unknown"
	}
}

// Termination summarizes how the major iteration loop ended.
type Termination struct {
	Status               Status
	Iters                int
	DualInf, PrimalInf   float64
	Comp                 float64
}

// Problem specifies the problem for the interior-point optimizer.
type Problem struct {
	Oracle Oracle
	Config Config
}

// New validates the oracle and configuration and builds an Optimizer ready
// to have Workspaces allocated against it.
func (p *Problem) New() (*Optimizer, error) {
	if err := p.Oracle.Validate(); err != nil {
		return nil, err
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	n, m, nwcon := p.Oracle.Dims()
	if n <= 0 {
		return nil, fmt.Errorf("%w: problem dimension must be positive", ErrInvalidConfig)
	}
	if m < 0 || nwcon < 0 {
		return nil, fmt.Errorf("%w: constraint counts must be non-negative", ErrInvalidConfig)
	}
	return &Optimizer{oracle: p.Oracle, cfg: p.Config, n: n, m: m, nwcon: nwcon}, nil
}

// Optimizer drives the primal-dual interior-point method for a validated
// Problem. It holds no per-run state; call Init to allocate a Workspace and
// Fit to run the iteration.
type Optimizer struct {
	oracle         Oracle
	cfg            Config
	n, m, nwcon    int
}

// Workspace holds the state vectors and scratch buffers for one run. To
// avoid data races, allocate a separate Workspace per goroutine; multiple
// Workspaces may share one Optimizer.
type Workspace struct {
	st *state
}

// Init allocates a Workspace sized for the Optimizer's problem dimensions,
// partitioned onto a single-rank dvec.Group — matching the scope of the
// function-valued Oracle, whose hooks receive whole already-partitioned
// vectors and so work unmodified against a multi-rank Group built the same
// way by a caller that wants to exercise dvec's distributed collectives
// directly.
func (o *Optimizer) Init() *Workspace {
	g := dvec.NewGroup(1)
	st := newState(g, 0, o.n, o.n, o.m, o.nwcon, o.cfg)
	return &Workspace{st: st}
}

// Result is the final outcome of a Fit call.
type Result struct {
	X []float64
	F float64
	Termination
}

// Fit runs the major iteration loop from the initial guess x0 using the
// given Workspace.
func (o *Optimizer) Fit(x0 []float64, w *Workspace) (*Result, error) {
	if len(x0) != o.n {
		panic("paropt: initial x dimension does not match problem")
	}
	d := newDriver(&o.oracle, o.cfg, w.st)
	if err := d.initIterate(x0); err != nil {
		return nil, err
	}
	term, err := d.run()
	if err != nil && term.Status != StatusConverged {
		return &Result{X: append([]float64(nil), w.st.x.LocalSlice()...), F: w.st.fobj, Termination: term}, err
	}
	return &Result{
		X:           append([]float64(nil), w.st.x.LocalSlice()...),
		F:           w.st.fobj,
		Termination: term,
	}, nil
}
