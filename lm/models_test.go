// SPDX-License-Identifier: MIT
package lm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/matrix"
)

// affine is y = H·p + c with the constant Jacobian H.
type affine struct {
	h *matrix.Dense
	c []float64
}

func (a affine) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	y, err := matrix.MatVec(a.h, p)
	if err != nil {
		return nil, nil, 0, err
	}
	for i := range y {
		y[i] += a.c[i]
	}

	return y, a.h.Clone().(*matrix.Dense), 0, nil
}

// arctan is the scalar model y = atan(p); Gauss-Newton overshoots from |p| > ~1.39.
// Every evaluated parameter is logged.
type arctan struct{ log []float64 }

func (a *arctan) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	a.log = append(a.log, p[0])
	j, err := matrix.NewFromData(1, 1, []float64{1 / (1 + p[0]*p[0])})
	if err != nil {
		return nil, nil, 0, err
	}

	return []float64{math.Atan(p[0])}, j, 0, nil
}

// flat depends on p[0] only; p[1] has zero sensitivity.
type flat struct{}

func (flat) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	j, err := matrix.NewFromRows([][]float64{{1, 0}, {2, 0}})
	if err != nil {
		return nil, nil, 0, err
	}

	return []float64{p[0], 2 * p[0]}, j, 0, nil
}

// poisoned returns NaN model values.
type poisoned struct{}

func (poisoned) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	j, _ := matrix.NewDense(1, len(p))

	return []float64{math.NaN()}, j, 0, nil
}

// wrongShape returns two values for any input.
type wrongShape struct{}

func (wrongShape) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	j, _ := matrix.NewDense(2, len(p))

	return []float64{0, 0}, j, 0, nil
}

// quantized reports y = p rounded to 1e-3 with a unit Jacobian; χ² cannot
// move once the trial steps stay inside one quantum.
type quantized struct{}

func (quantized) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	j, err := matrix.NewFromData(1, 1, []float64{1})
	if err != nil {
		return nil, nil, 0, err
	}

	return []float64{math.Round(p[0]*1e3) / 1e3}, j, 0, nil
}

// shrinking behaves like arctan on the first call and returns one value too
// few afterwards.
type shrinking struct{ calls int }

func (s *shrinking) ModelAndJacobian(p []float64) ([]float64, *matrix.Dense, int, error) {
	s.calls++
	if s.calls > 1 {
		j, _ := matrix.NewDense(1, len(p))

		return []float64{}, j, 0, nil
	}
	j, err := matrix.NewFromData(1, 1, []float64{1 / (1 + p[0]*p[0])})
	if err != nil {
		return nil, nil, 0, err
	}

	return []float64{math.Atan(p[0])}, j, 0, nil
}

func diagCov(v ...float64) *mat.SymDense {
	c := mat.NewSymDense(len(v), nil)
	for i, x := range v {
		c.SetSym(i, i, x)
	}

	return c
}

func mustRows(t *testing.T, rows [][]float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewFromRows(rows)
	require.NoError(t, err)

	return m
}
