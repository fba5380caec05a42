// SPDX-License-Identifier: MIT
package lm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/lm"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := lm.NewConfig()
	require.NoError(t, err)
	require.Equal(t, lm.DefaultConfig(), cfg)
	require.False(t, cfg.RecordHistory)
}

func TestNewConfigOptions(t *testing.T) {
	cfg, err := lm.NewConfig(
		lm.WithMaxIterations(7),
		lm.WithTau(0.5),
		lm.WithEpsilon1(1e-3),
		lm.WithEpsilon2(1e-4),
		lm.WithDampingRatio(3),
		lm.WithMaxRejections(4),
		lm.WithHistory(),
	)
	require.NoError(t, err)
	require.Equal(t, lm.Config{
		MaxIterations: 7, Tau: 0.5, Epsilon1: 1e-3, Epsilon2: 1e-4,
		DampingRatio: 3, MaxRejections: 4, RecordHistory: true,
	}, cfg)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]lm.Option{
		"iterations": lm.WithMaxIterations(0),
		"tau":        lm.WithTau(-1),
		"tau nan":    lm.WithTau(math.NaN()),
		"eps1":       lm.WithEpsilon1(math.Inf(1)),
		"eps2":       lm.WithEpsilon2(-1e-9),
		"nu":         lm.WithDampingRatio(1),
		"rejections": lm.WithMaxRejections(0),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := lm.NewConfig(opt)
			require.ErrorIs(t, err, lm.ErrInvalidConfig)
		})
	}
	_, err := lm.NewFitter(lm.Config{})
	require.ErrorIs(t, err, lm.ErrInvalidConfig)
}

// TestWeightingMatchesExplicitInverse checks the whitened chi-square against
// rᵀ·Cov⁻¹·r computed with an explicit inverse.
func TestWeightingMatchesExplicitInverse(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		0.5, 0.1, 0.05,
		0.1, 0.3, 0.02,
		0.05, 0.02, 0.2,
	})
	r := []float64{0.3, -0.1, 0.7}

	var inv mat.Dense
	require.NoError(t, inv.Inverse(cov))
	rv := mat.NewVecDense(3, r)
	want := mat.Inner(rv, &inv, rv)

	got, rank, err := lm.ChiSquareForTest(cov, r)
	require.NoError(t, err)
	require.Equal(t, 3, rank)
	require.InDelta(t, want, got, 1e-12)
}

func TestWeightingRejects(t *testing.T) {
	_, _, err := lm.ChiSquareForTest(mat.NewSymDense(2, nil), []float64{1, 1})
	require.ErrorIs(t, err, lm.ErrInvalidCovariance)

	_, _, err = lm.ChiSquareForTest(mat.NewSymDense(1, []float64{math.NaN()}), []float64{1})
	require.ErrorIs(t, err, lm.ErrInvalidCovariance)

	neg := mat.NewSymDense(2, []float64{1, 2, 2, 1}) // eigenvalues 3 and -1
	_, _, err = lm.ChiSquareForTest(neg, []float64{1, 1})
	require.ErrorIs(t, err, lm.ErrInvalidCovariance)
}
