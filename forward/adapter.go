// SPDX-License-Identifier: MIT
// Package forward - bounded forward-model adapter.
//
// Purpose:
//   - Present a network with inputs [fixed geometry..., parameters...] as a model
//     of the parameters alone.
//   - Project parameters into the network's training domain before every
//     evaluation and write the projected values back to the caller.
//
// Phases:
//   - Adapter: built once per run from a network and a Layout.
//   - PixelModel: built once per pixel by SetFixedInputs; owns the geometry.
//   - ModelAndJacobian: called once per fitter iteration.
//
// AI-Hints:
//   - PixelModel satisfies lm.Model; hand it straight to (*lm.Fitter).Fit.

package forward

import (
	"fmt"

	"github.com/katalvlaran/oceanfit/matrix"
	"github.com/katalvlaran/oceanfit/nn"
)

// Layout maps the fit onto the network planes.
//   - Network input  = FixedInputs geometry values followed by Parameters values.
//   - Network output = the first Measurements values are modelled measurements;
//     any trailing outputs are ignored by the fit.
type Layout struct {
	FixedInputs  int
	Parameters   int
	Measurements int
}

// Adapter binds a network to a Layout. Immutable; safe for concurrent use.
type Adapter struct {
	ev     nn.Evaluator
	layout Layout
	lo, hi []float64 // parameter bounds (columns FixedInputs.. of the input bounds)
	rows   []int     // 0..Measurements-1
	cols   []int     // FixedInputs..FixedInputs+Parameters-1
}

// NewAdapter validates layout against ev.
//
// Errors:
//   - ErrInvalidLayout if any count is out of range or the input plane is not
//     FixedInputs+Parameters wide, or Measurements exceeds the output plane.
func NewAdapter(ev nn.Evaluator, layout Layout) (*Adapter, error) {
	if ev == nil {
		return nil, forwardErrorf(opNewAdapter, fmt.Errorf("nil evaluator: %w", ErrInvalidLayout))
	}
	if layout.FixedInputs < 0 || layout.Parameters <= 0 || layout.Measurements <= 0 {
		return nil, forwardErrorf(opNewAdapter, fmt.Errorf("%+v: %w", layout, ErrInvalidLayout))
	}
	if layout.FixedInputs+layout.Parameters != ev.InputSize() {
		return nil, forwardErrorf(opNewAdapter, fmt.Errorf("%d fixed + %d parameters for %d network inputs: %w",
			layout.FixedInputs, layout.Parameters, ev.InputSize(), ErrInvalidLayout))
	}
	if layout.Measurements > ev.OutputSize() {
		return nil, forwardErrorf(opNewAdapter, fmt.Errorf("%d measurements for %d network outputs: %w",
			layout.Measurements, ev.OutputSize(), ErrInvalidLayout))
	}

	lo, hi := ev.InputBounds()
	a := &Adapter{
		ev:     ev,
		layout: layout,
		lo:     lo[layout.FixedInputs:],
		hi:     hi[layout.FixedInputs:],
		rows:   make([]int, layout.Measurements),
		cols:   make([]int, layout.Parameters),
	}
	for i := range a.rows {
		a.rows[i] = i
	}
	for j := range a.cols {
		a.cols[j] = layout.FixedInputs + j
	}

	return a, nil
}

// Layout returns the layout the adapter was built with.
func (a *Adapter) Layout() Layout { return a.layout }

// ParameterBounds returns copies of the per-parameter [min, max].
func (a *Adapter) ParameterBounds() (lo, hi []float64) {
	return append([]float64(nil), a.lo...), append([]float64(nil), a.hi...)
}

// SetFixedInputs binds the per-pixel geometry and returns the model the
// fitter evaluates. Geometry is copied; it is not clamped, but components
// outside the training domain are counted (see GeometryOutOfDomain).
//
// Errors:
//   - ErrDimensionMismatch (len(geometry) != FixedInputs), ErrNonFiniteGeometry.
func (a *Adapter) SetFixedInputs(geometry []float64) (*PixelModel, error) {
	if len(geometry) != a.layout.FixedInputs {
		return nil, forwardErrorf(opSetFixed, fmt.Errorf("got %d, want %d: %w",
			len(geometry), a.layout.FixedInputs, ErrDimensionMismatch))
	}
	if err := matrix.ValidateFinite(geometry); err != nil {
		return nil, forwardErrorf(opSetFixed, fmt.Errorf("%v: %w", err, ErrNonFiniteGeometry))
	}

	lo, hi := a.ev.InputBounds()
	outside := 0
	for i, g := range geometry {
		if g < lo[i] || g > hi[i] {
			outside++
		}
	}

	return &PixelModel{
		adapter:  a,
		geometry: append([]float64(nil), geometry...),
		outside:  outside,
	}, nil
}

// PixelModel is the adapter bound to one pixel's geometry.
// It holds no mutable state: evaluations are idempotent.
type PixelModel struct {
	adapter  *Adapter
	geometry []float64
	outside  int
}

// GeometryOutOfDomain reports how many geometry components lie outside the
// network's training domain (an extrapolation the caller may flag).
func (pm *PixelModel) GeometryOutOfDomain() int { return pm.outside }

// NumParameters returns P.
func (pm *PixelModel) NumParameters() int { return pm.adapter.layout.Parameters }

// NumMeasurements returns M.
func (pm *PixelModel) NumMeasurements() int { return pm.adapter.layout.Measurements }

// ModelAndJacobian projects pars into the parameter bounds IN PLACE, evaluates
// the network at [geometry, pars] and returns the first M outputs, the M×P
// parameter block of the Jacobian and the number of components clamped.
//
// Implementation:
//   - Stage 1: validate len(pars) == P; clamp via matrix.ClampVector.
//   - Stage 2: assemble a fresh input vector and call EvaluateWithJacobian.
//   - Stage 3: cut rows 0..M-1 and the parameter columns with Induced.
//
// Errors:
//   - ErrDimensionMismatch; evaluator errors (e.g. nn.ErrNonFiniteInput) are
//     wrapped unchanged.
//
// Notes:
//   - Overwriting pars is deliberate: the fitter's state must equal what the
//     network actually evaluated.
func (pm *PixelModel) ModelAndJacobian(pars []float64) ([]float64, *matrix.Dense, int, error) {
	a := pm.adapter
	if len(pars) != a.layout.Parameters {
		return nil, nil, 0, forwardErrorf(opModel, fmt.Errorf("got %d parameters, want %d: %w",
			len(pars), a.layout.Parameters, ErrDimensionMismatch))
	}
	clamped, err := matrix.ClampVector(pars, a.lo, a.hi)
	if err != nil {
		return nil, nil, 0, forwardErrorf(opModel, err)
	}

	in := make([]float64, 0, a.ev.InputSize())
	in = append(in, pm.geometry...)
	in = append(in, pars...)

	out, jac, err := a.ev.EvaluateWithJacobian(in)
	if err != nil {
		return nil, nil, clamped, forwardErrorf(opModel, err)
	}
	sub, err := jac.Induced(a.rows, a.cols)
	if err != nil {
		return nil, nil, clamped, forwardErrorf(opModel, err)
	}

	return append([]float64(nil), out[:a.layout.Measurements]...), sub, clamped, nil
}
