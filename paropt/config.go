// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import "fmt"

// QuasiNewtonKind selects the limited-memory Hessian approximation, the
// Go-idiomatic tagged-capability stand-in for ParOpt.h's runtime choice
// between its LBFGS and LSR1 subclasses.
type QuasiNewtonKind int

const (
	// LBFGS uses compactqn.LBFGS with Powell damping.
	LBFGS QuasiNewtonKind = iota
	// LSR1 uses compactqn.LSR1, skipping pairs that fail the curvature test.
	LSR1
	// SequentialLinear disables the quasi-Newton correction entirely: B
	// acts as b0*I on every call, per ParOpt.h's setSequentialLinearMethod.
	SequentialLinear
)

// Config mirrors the tunables exposed by ParOpt.h's setter methods,
// collected into a single struct validated once up front rather than
// mutated through a chain of setters.
type Config struct {
	// MaxMajorIterations bounds the outer loop.
	MaxMajorIterations int

	// InitBarrierParameter is the starting value of mu.
	InitBarrierParameter float64
	// BarrierFraction and BarrierPower control the monotone barrier
	// update mu <- min(BarrierFraction*mu, mu^BarrierPower), floored at
	// RelativeTol*1e-2.
	BarrierFraction float64
	BarrierPower    float64

	// FractionToBoundaryTau is the fraction-to-the-boundary safeguard tau
	// in (0,1); steps are clipped to keep every bounded quantity strictly
	// positive with this much margin.
	FractionToBoundaryTau float64

	// QuasiNewton selects the Hessian approximation.
	QuasiNewton QuasiNewtonKind
	// MsubMax is the limited-memory subspace size (the ring capacity).
	MsubMax int
	// InitB0 is the initial diagonal scaling b0 before any update.
	InitB0 float64
	// DampedUpdateFraction is the Powell-damping threshold used by LBFGS.
	DampedUpdateFraction float64
	// SR1SkipTolerance is the curvature-test tolerance used by LSR1.
	SR1SkipTolerance float64

	// UseLineSearch disables the line search when false, taking the full
	// fraction-to-boundary step unconditionally (useful for debugging
	// and for checkStep-style diagnostics).
	UseLineSearch bool
	// BacktrackingLineSearch selects Armijo backtracking; when false, a
	// single advisory merit check is performed without backtracking.
	BacktrackingLineSearch bool
	// MaxLineSearchIters bounds the number of backtracking trials.
	MaxLineSearchIters int
	// ArmijoParam is the sufficient-decrease constant in (0, 0.5).
	ArmijoParam float64
	// PenaltyDescentFraction sets the penalty update: rho is raised to at
	// least dphi0/((1-PenaltyDescentFraction)*primal infeasibility) whenever
	// that value exceeds it, mirroring ParOpt.h's setPenaltyDescentFraction.
	PenaltyDescentFraction float64

	// AbsoluteTol and RelativeTol gate convergence on the combined KKT
	// residual norm, absolute and relative to its value at the starting
	// point.
	AbsoluteTol float64
	RelativeTol float64

	// OutputFrequency prints a progress line every this many major
	// iterations; 0 disables periodic printing beyond Logger.Level.
	OutputFrequency int
	// MajorIterStepCheck, if positive, runs the gradient-check diagnostic
	// every that many major iterations.
	MajorIterStepCheck int

	Logger Logger
}

// DefaultConfig returns a Config with the same defaults ParOpt.h's
// constructor establishes before any setter is called.
func DefaultConfig() Config {
	return Config{
		MaxMajorIterations:    200,
		InitBarrierParameter:  0.1,
		BarrierFraction:       0.25,
		BarrierPower:          1.1,
		FractionToBoundaryTau: 0.995,
		QuasiNewton:           LBFGS,
		MsubMax:               10,
		InitB0:                1.0,
		DampedUpdateFraction:  0.2,
		SR1SkipTolerance:      1e-8,
		UseLineSearch:         true,
		BacktrackingLineSearch: true,
		MaxLineSearchIters:    10,
		ArmijoParam:           1e-4,
		PenaltyDescentFraction: 1.0,
		AbsoluteTol:           1e-6,
		RelativeTol:           1e-8,
		OutputFrequency:       1,
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	switch {
	case c.MaxMajorIterations <= 0:
		return fmt.Errorf("%w: MaxMajorIterations must be positive", ErrInvalidConfig)
	case c.InitBarrierParameter <= 0:
		return fmt.Errorf("%w: InitBarrierParameter must be positive", ErrInvalidConfig)
	case c.BarrierFraction <= 0 || c.BarrierFraction >= 1:
		return fmt.Errorf("%w: BarrierFraction must be in (0,1)", ErrInvalidConfig)
	case c.BarrierPower <= 1:
		return fmt.Errorf("%w: BarrierPower must exceed 1", ErrInvalidConfig)
	case c.FractionToBoundaryTau <= 0 || c.FractionToBoundaryTau >= 1:
		return fmt.Errorf("%w: FractionToBoundaryTau must be in (0,1)", ErrInvalidConfig)
	case c.MsubMax <= 0:
		return fmt.Errorf("%w: MsubMax must be positive", ErrInvalidConfig)
	case c.InitB0 <= 0:
		return fmt.Errorf("%w: InitB0 must be positive", ErrInvalidConfig)
	case c.MaxLineSearchIters <= 0:
		return fmt.Errorf("%w: MaxLineSearchIters must be positive", ErrInvalidConfig)
	case c.ArmijoParam <= 0 || c.ArmijoParam >= 0.5:
		return fmt.Errorf("%w: ArmijoParam must be in (0,0.5)", ErrInvalidConfig)
	case c.PenaltyDescentFraction <= 0 || c.PenaltyDescentFraction > 1:
		return fmt.Errorf("%w: PenaltyDescentFraction must be in (0,1]", ErrInvalidConfig)
	case c.AbsoluteTol <= 0 || c.RelativeTol <= 0:
		return fmt.Errorf("%w: tolerances must be positive", ErrInvalidConfig)
	}
	return nil
}
