// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Element-wise helpers that do not fit the product/factorization kernels:
//     diagonal shifts and vector clamping.
//
// Determinism & Performance:
//   - Fixed flat loops over row-major data; outputs are fresh allocations except
//     ClampVector, which works in place and reports how many entries it moved.
//
// AI-Hints:
//   - ClampVector is the primitive behind the forward-model adapter's bound
//     projection; keep it allocation-free.

package matrix

import "fmt"

const (
	opAddDiag = "AddDiag"
	opClamp   = "ClampVector"
)

// AddDiag returns a copy of the square matrix m with d[i] added to m[i,i].
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (non-square or len(d) != n), ErrNaNInf.
//
// Complexity:
//   - Time O(n^2) for the copy, Space O(n^2).
func AddDiag(m Matrix, d []float64) (*Dense, error) {
	if err := ValidateSquare(m); err != nil {
		return nil, matrixErrorf(opAddDiag, err)
	}
	n := m.Rows()
	if err := ValidateVecLen(d, n); err != nil {
		return nil, matrixErrorf(opAddDiag, err)
	}
	data, err := flatten(m)
	if err != nil {
		return nil, matrixErrorf(opAddDiag, err)
	}
	for i := 0; i < n; i++ {
		data[i*n+i] += d[i]
	}
	if err = ValidateFinite(data); err != nil {
		return nil, matrixErrorf(opAddDiag, err)
	}

	return &Dense{r: n, c: n, data: data}, nil
}

// ClampVector projects x into the box [lo, hi] component-wise, in place.
// It returns the number of components that were moved.
//
// Behavior highlights:
//   - A component equal to a bound is not counted.
//   - NaN components are left untouched and not counted; callers that need
//     finiteness validate separately.
//
// Errors:
//   - ErrNilMatrix (nil x), ErrDimensionMismatch (len(lo), len(hi) != len(x)),
//     ErrBadShape (lo[i] > hi[i]).
//
// Complexity:
//   - Time O(n), Space O(1).
func ClampVector(x, lo, hi []float64) (int, error) {
	n := len(x)
	if err := ValidateVecLen(x, n); err != nil {
		return 0, matrixErrorf(opClamp, err)
	}
	if err := ValidateVecLen(lo, n); err != nil {
		return 0, matrixErrorf(opClamp, err)
	}
	if err := ValidateVecLen(hi, n); err != nil {
		return 0, matrixErrorf(opClamp, err)
	}

	for i := 0; i < n; i++ {
		if lo[i] > hi[i] {
			return 0, matrixErrorf(opClamp, fmt.Errorf("bounds[%d] %g > %g: %w", i, lo[i], hi[i], ErrBadShape))
		}
	}

	clamped := 0
	for i := 0; i < n; i++ {
		switch {
		case x[i] < lo[i]:
			x[i] = lo[i]
			clamped++
		case x[i] > hi[i]:
			x[i] = hi[i]
			clamped++
		}
	}

	return clamped, nil
}
