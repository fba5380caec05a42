// SPDX-License-Identifier: MIT
package lm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/lm"
)

// affineFixture is a 4-measurement, 2-parameter linear problem with unequal
// weights and one off-diagonal covariance term.
func affineFixture(t *testing.T) (affine, []float64, *mat.SymDense, []float64) {
	h := mustRows(t, [][]float64{
		{1, 0.5},
		{0.3, 2},
		{-1, 1},
		{0.7, 0.2},
	})
	model := affine{h: h, c: []float64{0.1, -0.2, 0.3, 0}}
	want := []float64{1.25, -0.75}
	y, _, _, err := model.ModelAndJacobian(append([]float64(nil), want...))
	require.NoError(t, err)

	cov := mat.NewSymDense(4, []float64{
		0.04, 0.01, 0, 0,
		0.01, 0.09, 0, 0,
		0, 0, 0.01, 0,
		0, 0, 0, 0.25,
	})

	return model, y, cov, want
}

// TestAffineOneStep: with no initial damping the first accepted step is the
// linear least-squares solution.
func TestAffineOneStep(t *testing.T) {
	model, y, cov, want := affineFixture(t)
	cfg, err := lm.NewConfig(lm.WithTau(0), lm.WithEpsilon1(1e-9))
	require.NoError(t, err)
	f, err := lm.NewFitter(cfg)
	require.NoError(t, err)

	res, err := f.Fit(model, lm.FitInitialization{Start: []float64{-3, 4}, Measurements: y, Covariance: cov})
	require.NoError(t, err)
	require.Equal(t, lm.StatusConverged, res.Status)
	require.Equal(t, 1, res.Iterations)
	require.Zero(t, res.Rejections)
	require.InDeltaSlice(t, want, res.Parameters, 1e-10)
	require.InDelta(t, 0, res.ChiSquare, 1e-18)
}

// TestAffineAnyDamping: for any starting λ the fitter still lands on the
// linear least-squares solution. Only λ = 0 makes the first step exact; a
// damped first step is shorter, so the iteration count is not asserted here.
func TestAffineAnyDamping(t *testing.T) {
	model, y, cov, want := affineFixture(t)
	for _, tau := range []float64{1e-6, 1e-3, 1, 1e3} {
		cfg, err := lm.NewConfig(lm.WithTau(tau), lm.WithEpsilon1(1e-9))
		require.NoError(t, err)
		f, err := lm.NewFitter(cfg)
		require.NoError(t, err)

		res, err := f.Fit(model, lm.FitInitialization{Start: []float64{-3, 4}, Measurements: y, Covariance: cov})
		require.NoError(t, err)
		require.Equal(t, lm.StatusConverged, res.Status, "tau=%g", tau)
		require.InDeltaSlice(t, want, res.Parameters, 1e-8, "tau=%g", tau)
		require.NotNil(t, res.ParameterCovariance)
	}
}

// TestMonotonicAcceptance: accepted χ² never increases and rejected trials
// never move the committed parameters.
func TestMonotonicAcceptance(t *testing.T) {
	model := &arctan{}
	cfg, err := lm.NewConfig(lm.WithTau(1e-6), lm.WithDampingRatio(10), lm.WithHistory())
	require.NoError(t, err)
	f, err := lm.NewFitter(cfg)
	require.NoError(t, err)

	start := 3.0
	res, err := f.Fit(model, lm.FitInitialization{
		Start:        []float64{start},
		Measurements: []float64{0},
		Covariance:   diagCov(1),
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusConverged, res.Status)
	require.InDelta(t, 0, res.Parameters[0], 1e-6)
	require.Positive(t, res.Rejections, "the undamped step from 3 overshoots")

	require.Len(t, res.History, res.Iterations+1)
	for i := 1; i < len(res.History); i++ {
		require.LessOrEqual(t, res.History[i], res.History[i-1])
	}

	// Until the first acceptance every trial starts from the same point and
	// moves along the same direction, shrinking as λ grows.
	require.Equal(t, start, model.log[0])
	gn := -math.Atan(start) * (1 + start*start)
	prev := math.Inf(1)
	for _, p := range model.log[1:] {
		frac := (p - start) / gn
		require.Greater(t, frac, 0.0)
		require.LessOrEqual(t, frac, 1.0+1e-12)
		require.Less(t, frac, prev)
		prev = frac
		if math.Abs(math.Atan(p)) < math.Abs(math.Atan(start)) {
			break
		}
	}
}

// TestZeroSensitivityDiverges: a parameter the model ignores makes the damped
// normal equations singular; the fit stops cleanly without NaN.
func TestZeroSensitivityDiverges(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	res, err := f.Fit(flat{}, lm.FitInitialization{
		Start:        []float64{1, 5},
		Measurements: []float64{0, 0},
		Covariance:   diagCov(1, 1),
	})
	require.NoError(t, err)
	require.Contains(t, []lm.Status{lm.StatusDiverged, lm.StatusMaxIterationsExceeded}, res.Status)
	require.Equal(t, lm.ReasonTooManyRejections, res.Reason)
	require.Equal(t, []float64{1, 5}, res.Parameters)
	require.False(t, math.IsNaN(res.ChiSquare))
	require.InDelta(t, 5, res.ChiSquare, 1e-12)
	require.Nil(t, res.ParameterCovariance)
}

// TestNoDecreaseIsConverged: once no damped step can lower χ² the fit stops at
// the best point as Converged, not Diverged.
func TestNoDecreaseIsConverged(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	res, err := f.Fit(quantized{}, lm.FitInitialization{
		Start:        []float64{0.3},
		Measurements: []float64{0.0004},
		Covariance:   diagCov(1),
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusConverged, res.Status)
	require.Equal(t, lm.ReasonNoDecrease, res.Reason)
	require.Equal(t, 2, res.Iterations)
	require.Equal(t, lm.DefaultMaxRejections, res.Rejections)
	require.InDelta(t, 1.6e-7, res.ChiSquare, 1e-15)
	require.InDelta(t, 0, res.Modeled[0], 1e-15)
}

// TestTrialModelErrorIsReturned: a model that changes shape after the start
// point is a hard error, not a rejected step.
func TestTrialModelErrorIsReturned(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	model := &shrinking{}
	_, err = f.Fit(model, lm.FitInitialization{
		Start:        []float64{2},
		Measurements: []float64{0},
		Covariance:   diagCov(1),
	})
	require.ErrorIs(t, err, lm.ErrDimensionMismatch)
	require.Equal(t, 2, model.calls)
}

func TestMaxIterationsKeepsEstimate(t *testing.T) {
	cfg, err := lm.NewConfig(lm.WithMaxIterations(1), lm.WithTau(1))
	require.NoError(t, err)
	f, err := lm.NewFitter(cfg)
	require.NoError(t, err)

	res, err := f.Fit(&arctan{}, lm.FitInitialization{
		Start:        []float64{3},
		Measurements: []float64{0},
		Covariance:   diagCov(1),
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusMaxIterationsExceeded, res.Status)
	require.Equal(t, 1, res.Iterations)
	require.Less(t, math.Abs(res.Parameters[0]), 3.0)
	require.Less(t, res.ChiSquare, math.Atan(3)*math.Atan(3))
}

func TestNonFiniteModelAtStartDiverges(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	res, err := f.Fit(poisoned{}, lm.FitInitialization{
		Start:        []float64{1},
		Measurements: []float64{0},
		Covariance:   diagCov(1),
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusDiverged, res.Status)
	require.Equal(t, lm.ReasonNonFiniteStart, res.Reason)
}

func TestStartAlreadyOptimal(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	res, err := f.Fit(&arctan{}, lm.FitInitialization{
		Start:        []float64{0},
		Measurements: []float64{0},
		Covariance:   diagCov(1),
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusConverged, res.Status)
	require.Zero(t, res.Iterations)
}

// TestSingularCovariance: a rank-1 PSD covariance is handled by the eigen
// pseudo-inverse; only the informative direction is weighted.
func TestSingularCovariance(t *testing.T) {
	h := mustRows(t, [][]float64{{1}, {1}})
	model := affine{h: h, c: []float64{0, 0}}
	cov := mat.NewSymDense(2, []float64{1, 1, 1, 1})

	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)
	res, err := f.Fit(model, lm.FitInitialization{
		Start:        []float64{0},
		Measurements: []float64{2, 2},
		Covariance:   cov,
	})
	require.NoError(t, err)
	require.Equal(t, lm.StatusConverged, res.Status)
	require.InDelta(t, 2, res.Parameters[0], 1e-8)
	require.Equal(t, 1, res.Measurements)
	_, ok := res.Reduced()
	require.False(t, ok, "rank 1 with one parameter has no degrees of freedom")
}

func TestFitHardErrors(t *testing.T) {
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)
	ok := lm.FitInitialization{Start: []float64{1}, Measurements: []float64{0}, Covariance: diagCov(1)}

	_, err = f.Fit(nil, ok)
	require.ErrorIs(t, err, lm.ErrNilModel)

	bad := ok
	bad.Measurements = []float64{math.NaN()}
	_, err = f.Fit(&arctan{}, bad)
	require.ErrorIs(t, err, lm.ErrNonFiniteMeasurement)

	bad = ok
	bad.Start = []float64{math.Inf(1)}
	_, err = f.Fit(&arctan{}, bad)
	require.ErrorIs(t, err, lm.ErrNonFiniteStart)

	bad = ok
	bad.Covariance = diagCov(1, 1)
	_, err = f.Fit(&arctan{}, bad)
	require.ErrorIs(t, err, lm.ErrDimensionMismatch)

	bad = ok
	bad.Start = nil
	_, err = f.Fit(&arctan{}, bad)
	require.ErrorIs(t, err, lm.ErrDimensionMismatch)

	bad = ok
	bad.Covariance = diagCov(-1)
	_, err = f.Fit(&arctan{}, bad)
	require.ErrorIs(t, err, lm.ErrInvalidCovariance)

	_, err = f.Fit(wrongShape{}, ok)
	require.ErrorIs(t, err, lm.ErrDimensionMismatch)
}

// TestFitterReuse: one workspace, different problem sizes, same answers.
func TestFitterReuse(t *testing.T) {
	model, y, cov, want := affineFixture(t)
	f, err := lm.NewFitter(lm.DefaultConfig())
	require.NoError(t, err)

	init := lm.FitInitialization{Start: []float64{0, 0}, Measurements: y, Covariance: cov}
	first, err := f.Fit(model, init)
	require.NoError(t, err)

	_, err = f.Fit(&arctan{}, lm.FitInitialization{Start: []float64{1}, Measurements: []float64{0.5}, Covariance: diagCov(1)})
	require.NoError(t, err)

	second, err := f.Fit(model, init)
	require.NoError(t, err)
	require.Equal(t, first.Parameters, second.Parameters)
	require.InDeltaSlice(t, want, second.Parameters, 1e-8)
	require.Equal(t, []float64{0, 0}, init.Start, "start is never modified")
}

func TestStatusAndReasonStrings(t *testing.T) {
	require.Equal(t, "Converged", lm.StatusConverged.String())
	require.Equal(t, "MaxIterationsExceeded", lm.StatusMaxIterationsExceeded.String())
	require.Equal(t, "Diverged", lm.StatusDiverged.String())
	require.Equal(t, "Unknown", lm.Status(42).String())
	require.Equal(t, "gradient below eps1", lm.ReasonSmallGradient.String())
	require.Equal(t, "no chi-square decrease at any damping", lm.ReasonNoDecrease.String())
	require.Equal(t, "unknown", lm.Reason(-1).String())
}
