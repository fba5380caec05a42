// SPDX-License-Identifier: MIT
// Package nn - clipping decorators.
//
// Purpose:
//   - Keep physically implausible values away from a network without touching
//     the network itself: OutputFloor clips what comes out, InputFloor clips
//     selected inputs before they go in.
//   - Both wrap any Evaluator and are Evaluators themselves, so they stack:
//     OutputFloor(InputFloor(model, ...), ...) is valid.

package nn

import (
	"fmt"
	"math"

	"github.com/katalvlaran/oceanfit/matrix"
)

// OutputFloorEvaluator clips each output k to at least floor[k].
type OutputFloorEvaluator struct {
	base  Evaluator
	floor []float64
}

var _ Evaluator = (*OutputFloorEvaluator)(nil)

// OutputFloor wraps ev so outputs never fall below floor (one value per output).
// Where an output is raised to its floor, the matching Jacobian row is zero:
// the clipped value no longer depends on the inputs.
func OutputFloor(ev Evaluator, floor []float64) (*OutputFloorEvaluator, error) {
	if ev == nil {
		return nil, nnErrorf(opFloor, fmt.Errorf("nil evaluator: %w", ErrDimensionMismatch))
	}
	if len(floor) != ev.OutputSize() {
		return nil, nnErrorf(opFloor, fmt.Errorf("%d floors for %d outputs: %w", len(floor), ev.OutputSize(), ErrDimensionMismatch))
	}
	if err := matrix.ValidateFinite(floor); err != nil {
		return nil, nnErrorf(opFloor, err)
	}

	return &OutputFloorEvaluator{base: ev, floor: append([]float64(nil), floor...)}, nil
}

// Evaluate implements Evaluator.
func (o *OutputFloorEvaluator) Evaluate(in []float64) ([]float64, error) {
	out, err := o.base.Evaluate(in)
	if err != nil {
		return nil, err
	}
	for k := range out {
		out[k] = math.Max(out[k], o.floor[k])
	}

	return out, nil
}

// EvaluateWithJacobian implements Evaluator.
func (o *OutputFloorEvaluator) EvaluateWithJacobian(in []float64) ([]float64, *matrix.Dense, error) {
	out, jac, err := o.base.EvaluateWithJacobian(in)
	if err != nil {
		return nil, nil, err
	}
	for k := range out {
		if out[k] >= o.floor[k] {
			continue
		}
		out[k] = o.floor[k]
		for j := 0; j < jac.Cols(); j++ {
			if err = jac.Set(k, j, 0); err != nil {
				return nil, nil, nnErrorf(opFloor, err)
			}
		}
	}

	return out, jac, nil
}

// InputBounds implements Evaluator.
func (o *OutputFloorEvaluator) InputBounds() (lo, hi []float64) { return o.base.InputBounds() }

// InputSize implements Evaluator.
func (o *OutputFloorEvaluator) InputSize() int { return o.base.InputSize() }

// OutputSize implements Evaluator.
func (o *OutputFloorEvaluator) OutputSize() int { return o.base.OutputSize() }

// InputFloorEvaluator raises selected input components to a floor before
// evaluation. The caller's input slice is never modified.
type InputFloorEvaluator struct {
	base    Evaluator
	indices []int
	floor   float64
}

var _ Evaluator = (*InputFloorEvaluator)(nil)

// InputFloor wraps ev so that in[i] >= floor for every i in indices.
//
// Errors:
//   - ErrInvalidIndex for an index outside [0, ev.InputSize()).
//   - ErrNonFiniteInput for a non-finite floor.
func InputFloor(ev Evaluator, indices []int, floor float64) (*InputFloorEvaluator, error) {
	if ev == nil {
		return nil, nnErrorf(opFloor, fmt.Errorf("nil evaluator: %w", ErrDimensionMismatch))
	}
	if math.IsNaN(floor) || math.IsInf(floor, 0) {
		return nil, nnErrorf(opFloor, fmt.Errorf("floor %g: %w", floor, ErrNonFiniteInput))
	}
	n := ev.InputSize()
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, nnErrorf(opFloor, fmt.Errorf("index %d for %d inputs: %w", i, n, ErrInvalidIndex))
		}
	}

	return &InputFloorEvaluator{base: ev, indices: append([]int(nil), indices...), floor: floor}, nil
}

// floored returns a copy of in with the floor applied, the count of raised
// components and a mask of which positions were raised.
func (f *InputFloorEvaluator) floored(in []float64) ([]float64, int, []bool) {
	cp := append([]float64(nil), in...)
	raised := make([]bool, len(in))
	count := 0
	for _, i := range f.indices {
		if i < len(cp) && cp[i] < f.floor {
			cp[i] = f.floor
			raised[i] = true
			count++
		}
	}

	return cp, count, raised
}

// EvaluateCounted evaluates with the floor applied and reports how many
// input components were raised.
func (f *InputFloorEvaluator) EvaluateCounted(in []float64) ([]float64, int, error) {
	cp, count, _ := f.floored(in)
	out, err := f.base.Evaluate(cp)
	if err != nil {
		return nil, 0, err
	}

	return out, count, nil
}

// EvaluateWithJacobianCounted is EvaluateCounted plus the Jacobian. Columns of
// raised inputs are zero.
func (f *InputFloorEvaluator) EvaluateWithJacobianCounted(in []float64) ([]float64, *matrix.Dense, int, error) {
	cp, count, raised := f.floored(in)
	out, jac, err := f.base.EvaluateWithJacobian(cp)
	if err != nil {
		return nil, nil, 0, err
	}
	for j, r := range raised {
		if !r {
			continue
		}
		for k := 0; k < jac.Rows(); k++ {
			if err = jac.Set(k, j, 0); err != nil {
				return nil, nil, 0, nnErrorf(opFloor, err)
			}
		}
	}

	return out, jac, count, nil
}

// Evaluate implements Evaluator.
func (f *InputFloorEvaluator) Evaluate(in []float64) ([]float64, error) {
	out, _, err := f.EvaluateCounted(in)

	return out, err
}

// EvaluateWithJacobian implements Evaluator.
func (f *InputFloorEvaluator) EvaluateWithJacobian(in []float64) ([]float64, *matrix.Dense, error) {
	out, jac, _, err := f.EvaluateWithJacobianCounted(in)

	return out, jac, err
}

// InputBounds implements Evaluator.
func (f *InputFloorEvaluator) InputBounds() (lo, hi []float64) { return f.base.InputBounds() }

// InputSize implements Evaluator.
func (f *InputFloorEvaluator) InputSize() int { return f.base.InputSize() }

// OutputSize implements Evaluator.
func (f *InputFloorEvaluator) OutputSize() int { return f.base.OutputSize() }
