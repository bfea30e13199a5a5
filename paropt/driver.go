// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"errors"
	"math"

	"github.com/curioloop/paropt/dvec"
	"github.com/curioloop/paropt/kkt"
)

// driver owns the major iteration loop: it evaluates the oracle, assembles
// and solves the KKT system, runs the line search, applies the accepted
// step, and updates the barrier and penalty parameters. It mirrors the
// teacher's iterDriver/mainLoop split — one small struct holding the
// optimizer, workspace, and current location, with one method per phase of
// the loop body — generalized from box-constrained L-BFGS-B to the
// primal-dual interior-point iteration this package implements.
type driver struct {
	oracle *Oracle
	cfg    Config
	st     *state

	iter      int
	firstNorm float64
}

func newDriver(oracle *Oracle, cfg Config, st *state) *driver {
	return &driver{oracle: oracle, cfg: cfg, st: st}
}

// initIterate evaluates the oracle at x0, fills the bound and slack/dual
// arrays with a feasible strictly-interior starting point, and materializes
// the fixed weighting-constraint rows.
func (d *driver) initIterate(x0 []float64) error {
	st := d.st
	copy(st.x.LocalSlice(), x0)
	d.oracle.Bounds(st.xl, st.xu)

	if err := d.evaluate(st.x); err != nil {
		return err
	}

	xl, xu, x := st.xl.LocalSlice(), st.xu.LocalSlice(), st.x.LocalSlice()
	zl, zu := st.zl.LocalSlice(), st.zu.LocalSlice()
	for i := range x {
		if !math.IsInf(xl[i], -1) {
			zl[i] = st.mu / math.Max(x[i]-xl[i], 1e-2)
		}
		if !math.IsInf(xu[i], 1) {
			zu[i] = st.mu / math.Max(xu[i]-x[i], 1e-2)
		}
	}
	for j := range st.c {
		st.s[j] = math.Max(st.c[j], 1e-2)
		st.z[j] = st.mu / st.s[j]
	}

	if st.nwcon > 0 {
		d.oracle.WeightRows(st.weightRows)
		d.oracle.EqualityRHS(st.b)
		d.refreshWeightingTerms()
	}
	return nil
}

// evaluate runs the oracle at x, refreshing f, g, c, the inequality
// gradient rows, and (when present) A_w*x. A_w^T*zw is refreshed separately
// by refreshWeightingTerms.
func (d *driver) evaluate(x *dvec.Vec) error {
	st := d.st
	f, g, c, err := d.oracle.Eval(x)
	if err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrOracleNonFinite
	}
	st.fobj = f
	st.grad.CopyFrom(g)
	copy(st.c, c)

	if st.m > 0 {
		if err := d.oracle.ConGradients(x, st.ineqRows); err != nil {
			return err
		}
	}
	if st.nwcon > 0 {
		d.oracle.ApplySparseCon(x, st.awx)
	}
	return nil
}

// refreshWeightingTerms recomputes A_w^T*zw at the current dual zw; called
// after every dual update since the residual's r_x block depends on it.
func (d *driver) refreshWeightingTerms() {
	st := d.st
	d.oracle.ApplySparseConTranspose(st.zw, st.awTzw)
}

// run executes the major iteration loop until convergence, an iteration
// limit, or a hard failure, and returns the termination summary.
func (d *driver) run() (Termination, error) {
	st := d.st
	log := d.cfg.Logger

	for d.iter = 0; d.iter < d.cfg.MaxMajorIterations; d.iter++ {
		st.diag.Setup(st.b0, st.bounds(), st.s, st.z, st.nwcon)
		if err := st.wood.Refresh(st.qn.CurrentSnapshot()); err != nil {
			return Termination{Status: StatusOracleError}, err
		}

		dualInf, primalInf, comp := st.res.Compute(st.residualInput())
		combined := math.Max(dualInf, math.Max(primalInf, comp))
		if d.iter == 0 {
			d.firstNorm = combined
		}

		if log.enable(LogIter) && (d.cfg.OutputFrequency == 0 || d.iter%max(d.cfg.OutputFrequency, 1) == 0) {
			log.log(LogIter, "iter %4d  f=%12.5e  mu=%9.2e  |dual|=%9.2e  |primal|=%9.2e  comp=%9.2e\n",
				d.iter, st.fobj, st.mu, dualInf, primalInf, comp)
		}

		if combined <= d.cfg.AbsoluteTol+d.cfg.RelativeTol*d.firstNorm {
			return Termination{Status: StatusConverged, Iters: d.iter, DualInf: dualInf, PrimalInf: primalInf, Comp: comp}, nil
		}

		if d.cfg.MajorIterStepCheck > 0 && d.iter%d.cfg.MajorIterStepCheck == 0 {
			if rep, err := d.checkGradients(); err == nil && log.enable(LogDetail) {
				log.log(LogDetail, "  gradient check: max abs=%9.2e max rel=%9.2e\n", rep.MaxAbsError, rep.MaxRelError)
			}
		}

		var solver interface {
			SolveFull(res *kkt.Residual, rows kkt.Rows) kkt.Step
		}
		if d.cfg.QuasiNewton == SequentialLinear {
			solver = st.diag
		} else {
			solver = st.wood
		}
		step := solver.SolveFull(st.res, st.rows())

		alphaDual := maxDualStep(st, step.Pzl, step.Pzu, step.Pz, d.cfg.FractionToBoundaryTau)

		dphi0 := st.grad.Dot(step.Px) - st.mu*barrierDirectional(st, step.Px)
		updatePenaltyParameter(st, dphi0, primalInf, d.cfg.PenaltyDescentFraction)
		phi0 := meritValue(st, st.fobj, st.x, st.s, st.c, awxOrNil(st))

		res, err := backtrackingLineSearch(st, d.evalForLineSearch, step.Px, step.Ps, phi0, dphi0, d.cfg)
		if err != nil {
			status := StatusOracleError
			if errors.Is(err, ErrLineSearchExhausted) {
				status = StatusLineSearchFailed
			}
			return Termination{Status: status, Iters: d.iter}, err
		}

		if log.enable(LogLineSearch) {
			log.log(LogLineSearch, "  step: alpha_primal=%6.4f alpha_dual=%6.4f\n", res.alphaPrimal, alphaDual)
		}

		d.commitStep(step, res, alphaDual)

		st.mu = math.Max(d.cfg.RelativeTol*1e-2, math.Min(d.cfg.BarrierFraction*st.mu, math.Pow(st.mu, d.cfg.BarrierPower)))
	}
	return Termination{Status: StatusMaxIterations, Iters: d.iter}, nil
}

// evalForLineSearch adapts the oracle's Eval signature for the line search,
// which only needs f, g, and c at a trial point.
func (d *driver) evalForLineSearch(x *dvec.Vec) (float64, *dvec.Vec, []float64, error) {
	f, g, c, err := d.oracle.Eval(x)
	return f, g, c, err
}

// barrierDirectional computes sum(px_i/(x_i-xl_i)) - sum(px_i/(xu_i-x_i)),
// summed across ranks, so that grad.Dot(px) - mu*barrierDirectional is the
// directional derivative of the bound-barrier part of the merit function
// along px. It omits the slack log-barrier term -mu*sum(ps/s): the penalty
// parameter selection this feeds only needs a descent estimate, and the
// backtracking loop itself checks the true merit value including slacks,
// so an approximate dphi0 only risks growing rho a little more than needed.
func barrierDirectional(st *state, px *dvec.Vec) float64 {
	xl, xu, x := st.xl.LocalSlice(), st.xu.LocalSlice(), st.x.LocalSlice()
	ps := px.LocalSlice()
	local := 0.0
	for i := range x {
		if !math.IsInf(xl[i], -1) {
			local += ps[i] / (x[i] - xl[i])
		}
		if !math.IsInf(xu[i], 1) {
			local -= ps[i] / (xu[i] - x[i])
		}
	}
	return st.g.GlobalSum(st.rank, local)
}

func awxOrNil(st *state) *dvec.Vec {
	if st.nwcon == 0 {
		return nil
	}
	return st.awx
}

// commitStep writes the accepted trial point and dual step back into state,
// absorbs the step into the quasi-Newton model, and refreshes the
// constraint gradients and weighting terms at the new point.
func (d *driver) commitStep(step kkt.Step, res lineSearchResult, alphaDual float64) {
	st := d.st

	sVec := st.g.NewVec(st.rank, st.nLocal)
	sVec.CopyFrom(st.xTrial)
	sVec.Axpy(-1, st.x)

	prevGrad := st.g.NewVec(st.rank, st.nLocal)
	prevGrad.CopyFrom(st.grad)

	st.x.CopyFrom(st.xTrial)
	copy(st.s, st.sTrial)
	copy(st.c, res.cTrial)
	st.grad.CopyFrom(res.trialGrad)
	st.fobj = res.fTrial

	if st.m > 0 {
		d.oracle.ConGradients(st.x, st.ineqRows)
	}
	for j := range st.z {
		st.z[j] += alphaDual * step.Pz[j]
	}
	st.zl.Axpy(alphaDual, step.Pzl)
	st.zu.Axpy(alphaDual, step.Pzu)

	if st.nwcon > 0 {
		d.oracle.ApplySparseCon(st.x, st.awx)
		zwS := st.zw.LocalSlice()
		for j, v := range step.Pzw {
			zwS[j] += alphaDual * v
		}
		d.refreshWeightingTerms()
	}

	yVec := st.g.NewVec(st.rank, st.nLocal)
	yVec.CopyFrom(st.grad)
	yVec.Axpy(-1, prevGrad)
	for j, row := range st.ineqRows {
		yVec.Axpy(-alphaDual*step.Pz[j], row)
	}
	st.qn.Update(sVec, yVec)
	st.b0 = st.qn.CurrentSnapshot().B0
}
