// SPDX-License-Identifier: MIT

package nn

import "github.com/katalvlaran/oceanfit/matrix"

// Evaluator is the capability set shared by trained networks and the clipping
// decorators layered over them.
//
// Implementations MUST be safe for concurrent use once constructed: a single
// loaded network is shared read-only by every pixel worker.
type Evaluator interface {
	// Evaluate forward-propagates in (length InputSize) and returns a fresh
	// output vector of length OutputSize.
	Evaluate(in []float64) ([]float64, error)

	// EvaluateWithJacobian returns the outputs and the OutputSize×InputSize
	// matrix of analytic derivatives ∂out[k]/∂in[j].
	EvaluateWithJacobian(in []float64) ([]float64, *matrix.Dense, error)

	// InputBounds returns copies of the per-input training domain [min, max].
	InputBounds() (min, max []float64)

	// InputSize is the length of the input plane (N).
	InputSize() int

	// OutputSize is the length of the output plane (K).
	OutputSize() int
}
