// SPDX-License-Identifier: MIT
// Package nn - sigmoid lookup ("alpha") table.
//
// Purpose:
//   - Replace math.Exp in the hot forward pass with a precomputed table of
//     logistic values and linear interpolation between entries.
//
// Determinism & Performance:
//   - Table contents depend only on (n, xmin, xmax); lookups are O(1).
//   - Outside [xmin, xmax] the table saturates to its end values.

package nn

import (
	"fmt"
	"math"
)

// Default alpha table geometry: 100000 samples over [-10, 10].
const (
	DefaultAlphaSize = 100000
	DefaultAlphaMin  = -10.0
	DefaultAlphaMax  = 10.0
)

// AlphaTable holds logistic values sampled on a uniform grid.
type AlphaTable struct {
	xmin, xmax float64
	invStep    float64
	values     []float64
}

// defaultAlpha is shared by every Model built without an explicit table.
var defaultAlpha = mustAlphaTable(DefaultAlphaSize, DefaultAlphaMin, DefaultAlphaMax)

func mustAlphaTable(n int, xmin, xmax float64) *AlphaTable {
	t, err := NewAlphaTable(n, xmin, xmax)
	if err != nil {
		panic(err) // only reachable with invalid package constants
	}

	return t
}

// NewAlphaTable samples 1/(1+e^-x) at n points spanning [xmin, xmax].
//
// Errors:
//   - ErrMalformedNetwork if n < 2, the range is empty or a bound is non-finite.
//
// Complexity:
//   - Time O(n), Space O(n).
func NewAlphaTable(n int, xmin, xmax float64) (*AlphaTable, error) {
	if n < 2 || !(xmax > xmin) || math.IsInf(xmin, 0) || math.IsInf(xmax, 0) {
		return nil, fmt.Errorf("alpha table n=%d range [%g,%g]: %w", n, xmin, xmax, ErrMalformedNetwork)
	}
	step := (xmax - xmin) / float64(n-1)
	values := make([]float64, n)
	for i := range values {
		values[i] = exactSigmoid(xmin + float64(i)*step)
	}

	return &AlphaTable{xmin: xmin, xmax: xmax, invStep: 1 / step, values: values}, nil
}

// Sigmoid returns the interpolated logistic value of x.
func (t *AlphaTable) Sigmoid(x float64) float64 {
	if x <= t.xmin {
		return t.values[0]
	}
	if x >= t.xmax {
		return t.values[len(t.values)-1]
	}
	pos := (x - t.xmin) * t.invStep
	i := int(pos)
	if i >= len(t.values)-1 {
		return t.values[len(t.values)-1]
	}
	frac := pos - float64(i)

	return t.values[i] + frac*(t.values[i+1]-t.values[i])
}

// Len reports the number of samples.
func (t *AlphaTable) Len() int { return len(t.values) }

func exactSigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
