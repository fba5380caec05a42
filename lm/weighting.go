// SPDX-License-Identifier: MIT
// Package lm - covariance weighting.
//
// Purpose:
//   - Apply W = Cov⁻¹ without ever forming the inverse, by whitening:
//     find T with TᵀT = W, then χ² = |T·r|², JᵀWJ = (TJ)ᵀ(TJ), JᵀWr = (TJ)ᵀ(Tr).
//
// Implementation:
//   - Positive definite Cov: Cholesky Cov = L·Lᵀ, T = L⁻¹ applied by a
//     triangular solve.
//   - Singular PSD Cov: symmetric eigendecomposition Cov = Q·Λ·Qᵀ, keep the
//     eigenpairs above a relative tolerance, T = Λ⁺^{-1/2}·Qᵀ (pseudo-inverse
//     weighting; directions with zero variance are dropped, not trusted).

package lm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/matrix"
)

// eigenRelTol scales the largest eigenvalue to decide which directions of a
// singular covariance carry information.
const eigenRelTol = 1e-12

// weighting whitens residual vectors and Jacobians for one covariance.
type weighting struct {
	m    int           // measurement count
	rank int           // rows of T
	chol *mat.TriDense // L when Cov is positive definite
	t    *mat.Dense    // rank×m whitening matrix otherwise
}

// newWeighting factors cov.
//
// Errors:
//   - ErrInvalidCovariance for non-finite entries, a negative eigenvalue
//     below tolerance, or a zero matrix.
func newWeighting(cov mat.Symmetric) (*weighting, error) {
	m := cov.SymmetricDim()
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			v := cov.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, lmErrorf(opWeighting, fmt.Errorf("cov[%d,%d]=%g: %w", i, j, v, ErrInvalidCovariance))
			}
		}
	}

	var ch mat.Cholesky
	if ch.Factorize(cov) {
		var L mat.TriDense
		ch.LTo(&L)

		return &weighting{m: m, rank: m, chol: &L}, nil
	}

	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return nil, lmErrorf(opWeighting, fmt.Errorf("eigendecomposition failed: %w", ErrInvalidCovariance))
	}
	vals := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)

	maxVal := 0.0
	for _, v := range vals {
		maxVal = math.Max(maxVal, math.Abs(v))
	}
	tol := eigenRelTol * maxVal * float64(m)
	keep := make([]int, 0, m)
	for i, v := range vals {
		if v < -tol {
			return nil, lmErrorf(opWeighting, fmt.Errorf("eigenvalue %g < 0: %w", v, ErrInvalidCovariance))
		}
		if v > tol {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, lmErrorf(opWeighting, fmt.Errorf("zero covariance: %w", ErrInvalidCovariance))
	}

	t := mat.NewDense(len(keep), m, nil)
	for r, idx := range keep {
		s := 1 / math.Sqrt(vals[idx])
		for c := 0; c < m; c++ {
			t.Set(r, c, s*q.At(c, idx))
		}
	}

	return &weighting{m: m, rank: len(keep), t: t}, nil
}

// vec returns T·r.
func (w *weighting) vec(r []float64) ([]float64, error) {
	var out mat.VecDense
	if w.chol != nil {
		if err := out.SolveVec(w.chol, mat.NewVecDense(w.m, r)); !conditionOnly(err) {
			return nil, err
		}
	} else {
		out.MulVec(w.t, mat.NewVecDense(w.m, r))
	}

	return append([]float64(nil), out.RawVector().Data...), nil
}

// jac returns T·J as a rank×P Dense.
func (w *weighting) jac(j *matrix.Dense) (*matrix.Dense, error) {
	rows, cols := j.Shape()
	src := mat.NewDense(rows, cols, j.Data())
	dst := mat.NewDense(w.rank, cols, nil)
	if w.chol != nil {
		if err := dst.Solve(w.chol, src); !conditionOnly(err) {
			return nil, err
		}
	} else {
		dst.Mul(w.t, src)
	}

	return matrix.NewFromData(w.rank, cols, dst.RawMatrix().Data)
}

// chiSquare returns |T·r|² and the whitened residual.
func (w *weighting) chiSquare(r []float64) (float64, []float64, error) {
	rw, err := w.vec(r)
	if err != nil {
		return 0, nil, err
	}
	chi2 := 0.0
	for _, v := range rw {
		chi2 += v * v
	}

	return chi2, rw, nil
}

// conditionOnly reports whether err is nil or merely gonum's ill-conditioning
// warning (the solution is still computed).
func conditionOnly(err error) bool {
	if err == nil {
		return true
	}
	_, ok := err.(mat.Condition)

	return ok
}
