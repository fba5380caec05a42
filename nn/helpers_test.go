// SPDX-License-Identifier: MIT
package nn_test

import (
	"testing"

	"github.com/katalvlaran/oceanfit/nn"
	"github.com/stretchr/testify/require"
)

// tinySpec mirrors testdata/tiny.net and testdata/tiny.json.
func tinySpec() nn.Spec {
	return nn.Spec{
		Planes:    []int{3, 4, 2},
		InputMin:  []float64{0, 0, 0},
		InputMax:  []float64{1, 2, 4},
		OutputMin: []float64{-1, 0},
		OutputMax: []float64{1, 10},
		Biases:    [][]float64{{0.1, -0.2, 0.3, 0}, {0.05, -0.1}},
		Weights: [][][]float64{
			{{0.5, -1.0, 0.25}, {1.5, 0.3, -0.7}, {-0.4, 0.8, 0.9}, {0.2, 0.2, 0.2}},
			{{1.0, -0.5, 0.3, 0.7}, {-1.2, 0.4, 0.9, -0.3}},
		},
	}
}

func mustTiny(t *testing.T, opts ...nn.Option) *nn.Model {
	t.Helper()
	m, err := nn.NewModel(tinySpec(), opts...)
	require.NoError(t, err)

	return m
}
