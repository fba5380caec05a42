// SPDX-License-Identifier: MIT
// Package lm - Levenberg–Marquardt fitter.
//
// Purpose:
//   - Minimize χ²(p) = (y − f(p))ᵀ · Cov⁻¹ · (y − f(p)) over the parameters of
//     a Model that also supplies its Jacobian.
//
// Algorithm (Marquardt damping on the diagonal):
//  1. Evaluate f(p₀), J(p₀); whiten r = y − f and J; χ² = |r̃|².
//  2. A = J̃ᵀJ̃, g = J̃ᵀr̃, λ = Tau · max diag(A).
//  3. Solve (A + λ·diag(A))·δ = g by LU.
//  4. p' = p + δ, evaluated through the model (which may clamp p' in place).
//  5. χ²' < χ² → accept: p ← p', λ ← λ/ν, refresh A and g, then test
//     (a) |δ|/|p| < Epsilon2, (b) |g|∞ < Epsilon1, (c) iterations == MaxIterations.
//     Otherwise reject: λ ← λ·ν, p unchanged. A rejected trial whose step is
//     already below Epsilon2 ends the fit as Converged. After MaxRejections in
//     a row the fit is Converged (ReasonNoDecrease) when the last trial was a
//     finite step that did not lower χ², and Diverged when the damped system
//     could not be solved or the model was not finite.
//
// Determinism:
//   - No randomness and no map iteration; equal inputs give equal results.
//
// AI-Hints:
//   - A Fitter is a workspace: one per goroutine, reuse across pixels.

package lm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/matrix"
)

// Model supplies modelled measurements and the M×P Jacobian at pars.
// Implementations may project pars into a valid domain in place and report
// how many components they moved.
type Model interface {
	ModelAndJacobian(pars []float64) (modeled []float64, jac *matrix.Dense, clamped int, err error)
}

// FitInitialization is the per-pixel input of a fit.
type FitInitialization struct {
	Start        []float64     // P starting parameters (copied, never modified)
	Measurements []float64     // M measured values
	Covariance   mat.Symmetric // M×M measurement covariance, symmetric PSD
}

// FitResult is the immutable outcome of one fit.
type FitResult struct {
	Parameters []float64 // final estimate (in the model's transformed space)
	Modeled    []float64 // f(Parameters)
	ChiSquare  float64
	Iterations int // accepted steps
	Status     Status
	Reason     Reason
	ClampCount int // components clamped over all model evaluations
	Rejections int // rejected trial steps over the whole fit
	Lambda     float64
	// Measurements is the effective number of weighted measurements (the
	// covariance rank), used by Reduced.
	Measurements int
	// History holds χ² at the start and after each accepted step when
	// Config.RecordHistory is set.
	History []float64
	// ParameterCovariance is (JᵀWJ)⁻¹ at the final estimate, nil when singular.
	ParameterCovariance *matrix.Dense
}

// Reduced returns χ²/(M−P) and false when M ≤ P.
func (r FitResult) Reduced() (float64, bool) {
	dof := r.Measurements - len(r.Parameters)
	if dof <= 0 {
		return 0, false
	}

	return r.ChiSquare / float64(dof), true
}

// Fitter runs fits with one Config. Not safe for concurrent use; the
// parameter buffers are reused between calls.
type Fitter struct {
	cfg   Config
	p     []float64
	trial []float64
	step  []float64
}

// NewFitter validates cfg and returns a workspace.
func NewFitter(cfg Config) (*Fitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Fitter{cfg: cfg}, nil
}

// Config returns the fitter's configuration.
func (f *Fitter) Config() Config { return f.cfg }

// point is the state at one evaluated parameter vector.
type point struct {
	modeled []float64
	chi2    float64
	a       *matrix.Dense // J̃ᵀJ̃
	g       []float64     // J̃ᵀr̃
}

func (f *Fitter) reset(p int) {
	if cap(f.p) < p {
		f.p = make([]float64, p)
		f.trial = make([]float64, p)
		f.step = make([]float64, p)
	}
	f.p, f.trial, f.step = f.p[:p], f.trial[:p], f.step[:p]
}

// Fit minimizes χ² from init.Start.
//
// Errors (hard failures; no FitResult):
//   - ErrNilModel, ErrDimensionMismatch, ErrNonFiniteMeasurement,
//     ErrNonFiniteStart, ErrInvalidCovariance.
//   - A model error at the start point that is not a numeric-policy violation
//     (matrix.ErrNaNInf) is returned wrapped.
//
// Non-convergence and divergence are statuses, not errors.
func (f *Fitter) Fit(model Model, init FitInitialization) (FitResult, error) {
	if model == nil {
		return FitResult{}, lmErrorf(opFit, ErrNilModel)
	}
	P, M := len(init.Start), len(init.Measurements)
	if P == 0 || M == 0 {
		return FitResult{}, lmErrorf(opFit, fmt.Errorf("%d parameters, %d measurements: %w", P, M, ErrDimensionMismatch))
	}
	if init.Covariance == nil || init.Covariance.SymmetricDim() != M {
		return FitResult{}, lmErrorf(opFit, fmt.Errorf("covariance does not match %d measurements: %w", M, ErrDimensionMismatch))
	}
	if err := matrix.ValidateFinite(init.Measurements); err != nil {
		return FitResult{}, lmErrorf(opFit, fmt.Errorf("%v: %w", err, ErrNonFiniteMeasurement))
	}
	if err := matrix.ValidateFinite(init.Start); err != nil {
		return FitResult{}, lmErrorf(opFit, fmt.Errorf("%v: %w", err, ErrNonFiniteStart))
	}
	w, err := newWeighting(init.Covariance)
	if err != nil {
		return FitResult{}, lmErrorf(opFit, err)
	}

	f.reset(P)
	copy(f.p, init.Start)
	res := FitResult{Measurements: w.rank}

	// Stage 1: start point.
	cur, clamped, err := f.evaluate(model, w, init.Measurements, f.p, P)
	res.ClampCount += clamped
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) || !isNumeric(err) {
			return FitResult{}, lmErrorf(opFit, err)
		}
		res.Status, res.Reason = StatusDiverged, ReasonNonFiniteStart
		res.Parameters = append([]float64(nil), f.p...)
		res.ChiSquare = math.Inf(1)

		return res, nil
	}
	if f.cfg.RecordHistory {
		res.History = append(res.History, cur.chi2)
	}

	// Stage 2: damping seed.
	lambda := f.cfg.Tau * floats.Max(cur.a.Diag())

	// A start that already satisfies the gradient test needs no step.
	if floats.Norm(cur.g, math.Inf(1)) < f.cfg.Epsilon1 {
		return f.finish(res, cur, lambda, StatusConverged, ReasonSmallGradient), nil
	}

	// Stage 3: iterate.
	for {
		var next *point
		rejected := 0
		for next == nil {
			var out trialOutcome
			next, clamped, out, err = f.trialStep(model, w, init.Measurements, cur, lambda, P)
			res.ClampCount += clamped
			if err != nil {
				return FitResult{}, lmErrorf(opFit, err)
			}
			if next != nil {
				break
			}
			rejected++
			res.Rejections++
			// At the minimum, χ² only moves by rounding; a step that small is done.
			if out == trialNoDecrease && f.smallStep(f.trial) {
				return f.finish(res, cur, lambda, StatusConverged, ReasonSmallStep), nil
			}
			lambda = raise(lambda, f.cfg.DampingRatio)
			if rejected >= f.cfg.MaxRejections || math.IsInf(lambda, 0) {
				if out == trialNoDecrease {
					return f.finish(res, cur, lambda, StatusConverged, ReasonNoDecrease), nil
				}

				return f.finish(res, cur, lambda, StatusDiverged, ReasonTooManyRejections), nil
			}
		}

		// Accepted: the actual step is what the model evaluated after clamping.
		floats.SubTo(f.step, f.trial, f.p)
		copy(f.p, f.trial)
		cur = next
		lambda /= f.cfg.DampingRatio
		res.Iterations++
		if f.cfg.RecordHistory {
			res.History = append(res.History, cur.chi2)
		}

		switch {
		case floats.Norm(f.step, 2) < f.cfg.Epsilon2*math.Max(floats.Norm(f.p, 2), f.cfg.Epsilon2):
			return f.finish(res, cur, lambda, StatusConverged, ReasonSmallStep), nil
		case floats.Norm(cur.g, math.Inf(1)) < f.cfg.Epsilon1:
			return f.finish(res, cur, lambda, StatusConverged, ReasonSmallGradient), nil
		case res.Iterations >= f.cfg.MaxIterations:
			return f.finish(res, cur, lambda, StatusMaxIterationsExceeded, ReasonMaxIterations), nil
		}
	}
}

// trialOutcome classifies one trial step.
type trialOutcome int

const (
	trialAccepted   trialOutcome = iota
	trialSingular                // damped system not solvable, or δ not finite
	trialNonFinite               // model not finite at p + δ
	trialNoDecrease              // finite, but χ² did not decrease
)

// trialStep solves the damped system at cur, evaluates p + δ into f.trial and
// returns the new point if χ² decreased, nil otherwise. Singular systems and
// non-finite model values are rejections; any other model error is returned.
func (f *Fitter) trialStep(model Model, w *weighting, y []float64, cur *point, lambda float64, P int) (*point, int, trialOutcome, error) {
	damp := cur.a.Diag()
	floats.Scale(lambda, damp)
	aug, err := matrix.AddDiag(cur.a, damp)
	if err != nil {
		return nil, 0, trialSingular, nil
	}
	delta, err := matrix.SolveLU(aug, cur.g)
	if err != nil {
		return nil, 0, trialSingular, nil
	}

	floats.AddTo(f.trial, f.p, delta)
	if matrix.ValidateFinite(f.trial) != nil {
		return nil, 0, trialSingular, nil
	}
	next, clamped, err := f.evaluate(model, w, y, f.trial, P)
	switch {
	case err != nil && (errors.Is(err, ErrDimensionMismatch) || !isNumeric(err)):
		return nil, clamped, trialNonFinite, err
	case err != nil:
		return nil, clamped, trialNonFinite, nil
	case !(next.chi2 < cur.chi2):
		return nil, clamped, trialNoDecrease, nil
	}

	return next, clamped, trialAccepted, nil
}

// smallStep reports whether trial lies within the relative step tolerance of
// the committed parameters. It uses f.step as scratch.
func (f *Fitter) smallStep(trial []float64) bool {
	floats.SubTo(f.step, trial, f.p)

	return floats.Norm(f.step, 2) < f.cfg.Epsilon2*math.Max(floats.Norm(f.p, 2), f.cfg.Epsilon2)
}

// evaluate runs the model at pars and builds the weighted normal equations.
func (f *Fitter) evaluate(model Model, w *weighting, y, pars []float64, P int) (*point, int, error) {
	modeled, jac, clamped, err := model.ModelAndJacobian(pars)
	if err != nil {
		return nil, clamped, err
	}
	if len(modeled) != len(y) || jac == nil || jac.Rows() != len(y) || jac.Cols() != P {
		return nil, clamped, fmt.Errorf("model returned %d values: %w", len(modeled), ErrDimensionMismatch)
	}
	if err = matrix.ValidateFinite(modeled); err != nil {
		return nil, clamped, err
	}

	r := make([]float64, len(y))
	floats.SubTo(r, y, modeled)
	chi2, rw, err := w.chiSquare(r)
	if err != nil {
		return nil, clamped, fmt.Errorf("%v: %w", err, matrix.ErrNaNInf)
	}
	if math.IsNaN(chi2) || math.IsInf(chi2, 0) {
		return nil, clamped, matrix.ErrNaNInf
	}

	jw, err := w.jac(jac)
	if err != nil {
		return nil, clamped, fmt.Errorf("%v: %w", err, matrix.ErrNaNInf)
	}
	jt, err := matrix.Transpose(jw)
	if err != nil {
		return nil, clamped, err
	}
	a, err := matrix.Mul(jt, jw)
	if err != nil {
		return nil, clamped, err
	}
	g, err := matrix.MatVec(jt, rw)
	if err != nil {
		return nil, clamped, err
	}

	return &point{modeled: modeled, chi2: chi2, a: a, g: g}, clamped, nil
}

func (f *Fitter) finish(res FitResult, cur *point, lambda float64, st Status, why Reason) FitResult {
	res.Status, res.Reason = st, why
	res.Parameters = append([]float64(nil), f.p...)
	res.Modeled = cur.modeled
	res.ChiSquare = cur.chi2
	res.Lambda = lambda
	if inv, err := matrix.Inverse(cur.a); err == nil {
		res.ParameterCovariance = inv
	}

	return res
}

// raise grows λ after a rejection. A zero λ (Tau = 0 or a zero matrix) is
// re-seeded with DefaultTau so damping can take effect.
func raise(lambda, nu float64) float64 {
	if lambda > 0 {
		return lambda * nu
	}

	return DefaultTau
}

// isNumeric reports whether err stems from the finite-only numeric policy.
func isNumeric(err error) bool {
	return errors.Is(err, matrix.ErrNaNInf)
}
