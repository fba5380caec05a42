// SPDX-License-Identifier: MIT
package pipeline_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/matrix"
	"github.com/katalvlaran/oceanfit/nn"
)

// truth is (bTsm, aPig, aYs) = (1.5, 0.2, 0.1) in log space.
var truth = []float64{math.Log(1.5), math.Log(0.2), math.Log(0.1)}

// forwardNet is a 4-6-4 network: one geometry input in [0, 60], three log
// parameters in [-3, 2]. logOut selects log-reflectance outputs.
func forwardNet(t *testing.T, logOut bool) *nn.Model {
	t.Helper()
	outMin, outMax := []float64{0, 0, 0, 0}, []float64{0.05, 0.08, 0.06, 0.04}
	if logOut {
		outMin, outMax = []float64{-6, -6, -6, -6}, []float64{-2, -2, -2, -2}
	}
	m, err := nn.NewModel(nn.Spec{
		Planes:    []int{4, 6, 4},
		InputMin:  []float64{0, -3, -3, -3},
		InputMax:  []float64{60, 2, 2, 2},
		OutputMin: outMin,
		OutputMax: outMax,
		Biases:    [][]float64{{0.1, -0.2, 0.3, 0, 0.2, -0.1}, {0.1, -0.2, 0.05, 0.2}},
		Weights: [][][]float64{
			{{0.3, 1.2, -0.7, 0.4}, {-0.4, 0.6, 1.1, -0.8}, {0.5, -1.0, 0.4, 1.3}, {0.2, 0.8, 0.9, -0.5}, {-0.6, 0.4, -1.2, 0.7}, {0.7, -0.6, 0.8, 1.0}},
			{
				{1.2, -0.7, 0.5, 0.9, 0.4, -0.3},
				{-1.1, 0.6, 1.0, -0.5, 0.7, 0.4},
				{0.8, 0.6, -0.6, 0.3, -1.1, 1.0},
				{0.4, -1.0, 0.7, 1.2, 0.3, -0.5},
			},
		},
	}, nn.WithExactSigmoid())
	require.NoError(t, err)

	return m
}

// testRun matches forwardNet.
func testRun(logOut bool) *config.Run {
	run := config.Default()
	run.Measurements = 4
	run.FixedInputs = 1
	run.Parameters = []config.Parameter{
		{Name: config.ParamBTsm, Start: 0},
		{Name: config.ParamAPig, Start: math.Log(0.1)},
		{Name: config.ParamAYs, Start: math.Log(0.1)},
	}
	run.LogMeasurements = logOut
	run.Variance = 1e-4
	if logOut {
		run.Variance = 1.5e-3
	}
	run.Workers = 3

	return run
}

// reflectances returns the raw reflectances the network predicts for truth
// at geometry geom.
func reflectances(t *testing.T, m *nn.Model, logOut bool, geom float64) []float64 {
	t.Helper()
	out, err := m.Evaluate(append([]float64{geom}, truth...))
	require.NoError(t, err)
	if logOut {
		for i := range out {
			out[i] = math.Exp(out[i])
		}
	}

	return out
}

// constPol is a polarization network stub predicting f = 1.0309 per band,
// which the corrector turns into 1.03.
type constPol struct{ bands int }

func (c constPol) Evaluate(in []float64) ([]float64, error) {
	out := make([]float64, c.bands)
	for i := range out {
		out[i] = 1.0309
	}

	return out, nil
}

func (c constPol) EvaluateWithJacobian(in []float64) ([]float64, *matrix.Dense, error) {
	out, _ := c.Evaluate(in)
	j, err := matrix.NewDense(c.bands, len(in))

	return out, j, err
}

func (c constPol) InputBounds() (lo, hi []float64) {
	return make([]float64, c.InputSize()), make([]float64, c.InputSize())
}
func (c constPol) InputSize() int  { return 3 + 2*c.bands }
func (c constPol) OutputSize() int { return c.bands }
