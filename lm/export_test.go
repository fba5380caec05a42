// SPDX-License-Identifier: MIT
// Exposes unexported weighting internals to the external lm_test package.

package lm

import "gonum.org/v1/gonum/mat"

// ChiSquareForTest whitens r with cov and returns |T·r|² and the rank of T.
func ChiSquareForTest(cov mat.Symmetric, r []float64) (float64, int, error) {
	w, err := newWeighting(cov)
	if err != nil {
		return 0, 0, err
	}
	chi2, _, err := w.chiSquare(r)

	return chi2, w.rank, err
}
