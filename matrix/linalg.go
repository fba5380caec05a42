// SPDX-License-Identifier: MIT
// Package matrix: linear-algebra kernels over any Matrix implementation.
//
// Purpose:
//   - Provide the small set of kernels the fitter needs: products, transposes,
//     matrix-vector products and an LU-based solver for square systems.
//   - Define operation tags and shared constants for determinism and error reporting.
//
// Notes:
//   - Every kernel validates through validators.go and wraps failures via matrixErrorf.
//   - Each kernel has a *Dense fast-path; any other Matrix goes through flatten (At-based).

package matrix

import (
	"fmt"
	"math"
)

// ZeroSum is the initial sum value for dot products and substitutions.
const ZeroSum = 0.0

// ZeroPivot is the sentinel for detecting a zero pivot in LU/Inverse routines.
const ZeroPivot = 0.0

// Operation name constants for unified error wrapping and reducing magic strings.
const (
	opMul       = "Mul"
	opTranspose = "Transpose"
	opMatVec    = "MatVec"
	opInverse   = "Inverse"
	opLU        = "LU"
	opSolve     = "SolveLU"
)

// matrixErrorf wraps err with an operation tag, preserving the original error via %w.
//
// Implementation:
//   - Stage 1: Wrap using fmt.Errorf("%s: %w", tag, err) to enable errors.Is/As.
//
// Notes:
//   - Use only when err != nil; wrapping nil yields a non-nil error around a nil cause.
//
// AI-Hints:
//   - Always gate calls with `if err != nil { return nil, matrixErrorf(tag, err) }`.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// flatten returns a row-major copy of m.
// *Dense is copied directly; other implementations are read via At in i→j order.
func flatten(m Matrix) ([]float64, error) {
	if d, ok := m.(*Dense); ok {
		return d.Data(), nil
	}

	rows, cols := m.Rows(), m.Cols()
	out := make([]float64, rows*cols)
	var i, j int
	var v float64
	var err error
	for i = 0; i < rows; i++ {
		for j = 0; j < cols; j++ {
			if v, err = m.At(i, j); err != nil {
				return nil, fmt.Errorf("At(%d,%d): %w", i, j, err)
			}
			out[i*cols+j] = v
		}
	}

	return out, nil
}

// Mul computes the matrix product C = A × B.
//
// Implementation:
//   - Stage 1: ValidateMulCompatible(a, b).
//   - Stage 2: flatten both operands (no copy cost beyond one buffer for non-*Dense).
//   - Stage 3: i→k→j loop order so the innermost loop streams a row of B.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch, ErrNaNInf (overflowing products).
//
// Complexity:
//   - Time O(r*n*c), Space O(r*c).
func Mul(a, b Matrix) (*Dense, error) {
	if err := ValidateMulCompatible(a, b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	r, n, c := a.Rows(), a.Cols(), b.Cols()

	ad, err := flatten(a)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	bd, err := flatten(b)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	res, err := NewDense(r, c)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	var i, k, j int
	var aik float64
	for i = 0; i < r; i++ {
		for k = 0; k < n; k++ {
			aik = ad[i*n+k]
			if aik == 0 {
				continue
			}
			for j = 0; j < c; j++ {
				res.data[i*c+j] += aik * bd[k*c+j]
			}
		}
	}
	if err = ValidateFinite(res.data); err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	return res, nil
}

// Transpose returns Aᵀ as a fresh Dense.
// Complexity: O(r*c).
func Transpose(m Matrix) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	r, c := m.Rows(), m.Cols()
	src, err := flatten(m)
	if err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	res, err := NewDense(c, r)
	if err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}

	var i, j int
	for i = 0; i < r; i++ {
		for j = 0; j < c; j++ {
			res.data[j*r+i] = src[i*c+j]
		}
	}

	return res, nil
}

// MatVec computes y = A·x.
//
// Errors:
//   - ErrNilMatrix (nil A or x), ErrDimensionMismatch (len(x) != A.Cols()).
//
// Complexity:
//   - Time O(r*c), Space O(r).
func MatVec(m Matrix, x []float64) ([]float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	if err := ValidateVecLen(x, m.Cols()); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	r, c := m.Rows(), m.Cols()
	src, err := flatten(m)
	if err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}

	y := make([]float64, r)
	var i, j int
	var sum float64
	for i = 0; i < r; i++ {
		sum = ZeroSum
		for j = 0; j < c; j++ {
			sum += src[i*c+j] * x[j]
		}
		y[i] = sum
	}

	return y, nil
}

// LU performs Doolittle LU decomposition without pivoting: A = L·U.
// L is unit lower-triangular; U is upper-triangular.
//
// Implementation:
//   - Stage 1: ValidateSquare; flatten the input once.
//   - Stage 2: for each i compute row i of U, guard the pivot, then column i of L.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (non-square), ErrSingular (zero pivot).
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
//
// Notes:
//   - No pivoting; the systems factored here are damped normal equations.
func LU(m Matrix) (*Dense, *Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, nil, matrixErrorf(opLU, err)
	}
	n := m.Rows()
	a, err := flatten(m)
	if err != nil {
		return nil, nil, matrixErrorf(opLU, err)
	}

	L, err := NewIdentity(n)
	if err != nil {
		return nil, nil, matrixErrorf(opLU, err)
	}
	U, err := NewDense(n, n)
	if err != nil {
		return nil, nil, matrixErrorf(opLU, err)
	}

	var i, j, k int
	var sum, pivot float64
	for i = 0; i < n; i++ {
		// Row i of U.
		for j = i; j < n; j++ {
			sum = ZeroSum
			for k = 0; k < i; k++ {
				sum += L.data[i*n+k] * U.data[k*n+j]
			}
			U.data[i*n+j] = a[i*n+j] - sum
		}

		pivot = U.data[i*n+i]
		if pivot == ZeroPivot || math.IsNaN(pivot) || math.IsInf(pivot, 0) {
			return nil, nil, matrixErrorf(opLU, ErrSingular)
		}

		// Column i of L.
		for j = i + 1; j < n; j++ {
			sum = ZeroSum
			for k = 0; k < i; k++ {
				sum += L.data[j*n+k] * U.data[k*n+i]
			}
			L.data[j*n+i] = (a[j*n+i] - sum) / pivot
		}
	}

	return L, U, nil
}

// SolveLU solves A·x = b via LU followed by forward and back substitution.
//
// Implementation:
//   - Stage 1: LU(A); validate len(b) == n.
//   - Stage 2: forward substitution L·y = b (unit diagonal).
//   - Stage 3: back substitution U·x = y.
//   - Stage 4: reject non-finite solutions as ErrSingular (numerically singular A).
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch, ErrSingular.
//
// Complexity:
//   - Time O(n^3) for the factorization + O(n^2) for the substitutions.
func SolveLU(m Matrix, b []float64) ([]float64, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	n := m.Rows()
	if err := ValidateVecLen(b, n); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	L, U, err := LU(m)
	if err != nil {
		return nil, matrixErrorf(opSolve, err)
	}

	x := make([]float64, n)
	var i, k int
	var sum float64
	// Forward: L has a unit diagonal.
	for i = 0; i < n; i++ {
		sum = b[i]
		for k = 0; k < i; k++ {
			sum -= L.data[i*n+k] * x[k]
		}
		x[i] = sum
	}
	// Backward.
	for i = n - 1; i >= 0; i-- {
		sum = x[i]
		for k = i + 1; k < n; k++ {
			sum -= U.data[i*n+k] * x[k]
		}
		x[i] = sum / U.data[i*n+i]
	}
	if err = ValidateFinite(x); err != nil {
		return nil, matrixErrorf(opSolve, ErrSingular)
	}

	return x, nil
}

// Inverse computes A⁻¹ column by column through a single LU factorization.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (non-square), ErrSingular.
//
// Complexity:
//   - Time O(n^3), Space O(n^2).
//
// Notes:
//   - The fitter never calls this on its hot path (it solves instead); Inverse
//     exists for diagnostics such as parameter covariance reporting.
func Inverse(m Matrix) (*Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	n := m.Rows()
	L, U, err := LU(m)
	if err != nil {
		return nil, matrixErrorf(opInverse, err)
	}
	inv, err := NewDense(n, n)
	if err != nil {
		return nil, matrixErrorf(opInverse, err)
	}

	col := make([]float64, n)
	var c, i, k int
	var sum float64
	for c = 0; c < n; c++ {
		// e_c through L (forward).
		for i = 0; i < n; i++ {
			sum = ZeroSum
			if i == c {
				sum = 1.0
			}
			for k = 0; k < i; k++ {
				sum -= L.data[i*n+k] * col[k]
			}
			col[i] = sum
		}
		// then U (backward).
		for i = n - 1; i >= 0; i-- {
			sum = col[i]
			for k = i + 1; k < n; k++ {
				sum -= U.data[i*n+k] * col[k]
			}
			col[i] = sum / U.data[i*n+i]
		}
		for i = 0; i < n; i++ {
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				return nil, matrixErrorf(opInverse, ErrSingular)
			}
			inv.data[i*n+c] = col[i]
		}
	}

	return inv, nil
}
