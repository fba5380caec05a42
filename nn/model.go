// SPDX-License-Identifier: MIT
// Package nn - trained feed-forward network (Model).
//
// Purpose:
//   - Evaluate a fully connected sigmoid network with min/max input
//     normalization and min/max output de-normalization.
//   - Provide the exact output×input Jacobian by reverse-mode propagation
//     through the stored activations.
//
// Concurrency:
//   - A Model is immutable after NewModel; every call allocates its own
//     activation buffers, so one Model may serve any number of goroutines.
//
// Complexity quicksheet (W = total weight count, N inputs, K outputs):
//   - Evaluate: O(W); EvaluateWithJacobian: O(W·K).

package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/oceanfit/matrix"
)

// Spec is the decoded form of a weight stream. ReadText and ReadJSON both
// produce a Spec; NewModel validates it and builds the immutable Model.
//
// Layout:
//   - Planes[0] is the input size N, Planes[len-1] the output size K.
//   - Biases[l] has Planes[l+1] entries.
//   - Weights[l] is Planes[l+1] rows by Planes[l] columns.
type Spec struct {
	Planes    []int         `json:"planes"`
	InputMin  []float64     `json:"input_min"`
	InputMax  []float64     `json:"input_max"`
	OutputMin []float64     `json:"output_min"`
	OutputMax []float64     `json:"output_max"`
	Biases    [][]float64   `json:"biases"`
	Weights   [][][]float64 `json:"weights"`
}

// layer is one fully connected sigmoid stage.
type layer struct {
	in, out int
	w       []float64 // row-major out×in
	b       []float64 // len out
}

// Model is a loaded, validated network. It implements Evaluator.
type Model struct {
	planes   []int
	inMin    []float64
	inMax    []float64
	inScale  []float64 // 1/(inMax-inMin)
	outMin   []float64
	outMax   []float64
	outScale []float64 // outMax-outMin
	layers   []layer
	alpha    *AlphaTable // nil means exact logistic
}

var _ Evaluator = (*Model)(nil)

// Option configures a Model at construction time.
type Option func(*Model)

// WithAlphaTable evaluates the activation through t instead of the default table.
func WithAlphaTable(t *AlphaTable) Option {
	return func(m *Model) { m.alpha = t }
}

// WithExactSigmoid evaluates the activation with math.Exp. Slower; used where
// bitwise agreement with an analytic reference matters (tests, calibration).
func WithExactSigmoid() Option {
	return func(m *Model) { m.alpha = nil }
}

// NewModel validates s and builds an immutable Model. Slices are copied.
//
// Errors:
//   - ErrMalformedNetwork for any structural or numeric defect in s.
func NewModel(s Spec, opts ...Option) (*Model, error) {
	if err := s.validate(); err != nil {
		return nil, nnErrorf(opNewModel, err)
	}

	nLayers := len(s.Planes) - 1
	m := &Model{
		planes:   append([]int(nil), s.Planes...),
		inMin:    append([]float64(nil), s.InputMin...),
		inMax:    append([]float64(nil), s.InputMax...),
		outMin:   append([]float64(nil), s.OutputMin...),
		outMax:   append([]float64(nil), s.OutputMax...),
		inScale:  make([]float64, len(s.InputMin)),
		outScale: make([]float64, len(s.OutputMin)),
		layers:   make([]layer, nLayers),
		alpha:    defaultAlpha,
	}
	for j := range m.inScale {
		m.inScale[j] = 1 / (m.inMax[j] - m.inMin[j])
	}
	for k := range m.outScale {
		m.outScale[k] = m.outMax[k] - m.outMin[k]
	}
	for l := 0; l < nLayers; l++ {
		in, out := s.Planes[l], s.Planes[l+1]
		w := make([]float64, 0, in*out)
		for i := 0; i < out; i++ {
			w = append(w, s.Weights[l][i]...)
		}
		m.layers[l] = layer{in: in, out: out, w: w, b: append([]float64(nil), s.Biases[l]...)}
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// validate checks plane sizes, ranges and coefficient shapes.
func (s *Spec) validate() error {
	if len(s.Planes) < 2 {
		return fmt.Errorf("need at least 2 planes, got %d: %w", len(s.Planes), ErrMalformedNetwork)
	}
	for i, p := range s.Planes {
		if p <= 0 {
			return fmt.Errorf("plane %d has size %d: %w", i, p, ErrMalformedNetwork)
		}
	}
	n, k := s.Planes[0], s.Planes[len(s.Planes)-1]
	if err := checkRange("input", s.InputMin, s.InputMax, n); err != nil {
		return err
	}
	if err := checkRange("output", s.OutputMin, s.OutputMax, k); err != nil {
		return err
	}

	nLayers := len(s.Planes) - 1
	if len(s.Biases) != nLayers || len(s.Weights) != nLayers {
		return fmt.Errorf("want %d layers, got %d biases and %d weights: %w",
			nLayers, len(s.Biases), len(s.Weights), ErrMalformedNetwork)
	}
	for l := 0; l < nLayers; l++ {
		in, out := s.Planes[l], s.Planes[l+1]
		if len(s.Biases[l]) != out {
			return fmt.Errorf("layer %d: %d biases, want %d: %w", l, len(s.Biases[l]), out, ErrMalformedNetwork)
		}
		if err := matrix.ValidateFinite(s.Biases[l]); err != nil {
			return fmt.Errorf("layer %d biases: %v: %w", l, err, ErrMalformedNetwork)
		}
		if len(s.Weights[l]) != out {
			return fmt.Errorf("layer %d: %d weight rows, want %d: %w", l, len(s.Weights[l]), out, ErrMalformedNetwork)
		}
		for i, row := range s.Weights[l] {
			if len(row) != in {
				return fmt.Errorf("layer %d row %d: %d weights, want %d: %w", l, i, len(row), in, ErrMalformedNetwork)
			}
			if err := matrix.ValidateFinite(row); err != nil {
				return fmt.Errorf("layer %d row %d: %v: %w", l, i, err, ErrMalformedNetwork)
			}
		}
	}

	return nil
}

func checkRange(name string, lo, hi []float64, n int) error {
	if len(lo) != n || len(hi) != n {
		return fmt.Errorf("%s range has %d/%d entries, want %d: %w", name, len(lo), len(hi), n, ErrMalformedNetwork)
	}
	for j := 0; j < n; j++ {
		if math.IsNaN(lo[j]) || math.IsNaN(hi[j]) || math.IsInf(lo[j], 0) || math.IsInf(hi[j], 0) || !(hi[j] > lo[j]) {
			return fmt.Errorf("%s range %d is [%g,%g]: %w", name, j, lo[j], hi[j], ErrMalformedNetwork)
		}
	}

	return nil
}

// InputSize returns N.
func (m *Model) InputSize() int { return m.planes[0] }

// OutputSize returns K.
func (m *Model) OutputSize() int { return m.planes[len(m.planes)-1] }

// Planes returns a copy of the layer sizes, input first.
func (m *Model) Planes() []int { return append([]int(nil), m.planes...) }

// InputBounds returns copies of the training-domain bounds.
func (m *Model) InputBounds() (lo, hi []float64) {
	return append([]float64(nil), m.inMin...), append([]float64(nil), m.inMax...)
}

func (m *Model) sigmoid(x float64) float64 {
	if m.alpha == nil {
		return exactSigmoid(x)
	}

	return m.alpha.Sigmoid(x)
}

func (m *Model) checkInput(in []float64) error {
	if len(in) != m.planes[0] {
		return fmt.Errorf("got %d inputs, want %d: %w", len(in), m.planes[0], ErrDimensionMismatch)
	}
	for j, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("input %d is %g: %w", j, v, ErrNonFiniteInput)
		}
	}

	return nil
}

// forward returns the activations of every plane: acts[0] is the normalized
// input, acts[len(layers)] the output-layer sigmoid values.
func (m *Model) forward(in []float64) [][]float64 {
	acts := make([][]float64, len(m.layers)+1)
	a := make([]float64, len(in))
	for j, v := range in {
		a[j] = (v - m.inMin[j]) * m.inScale[j]
	}
	acts[0] = a

	for l := range m.layers {
		ly := &m.layers[l]
		next := make([]float64, ly.out)
		for i := 0; i < ly.out; i++ {
			next[i] = m.sigmoid(floats.Dot(ly.w[i*ly.in:(i+1)*ly.in], a) + ly.b[i])
		}
		acts[l+1] = next
		a = next
	}

	return acts
}

func (m *Model) denormalize(s []float64) []float64 {
	out := make([]float64, len(s))
	for k, v := range s {
		out[k] = v*m.outScale[k] + m.outMin[k]
	}

	return out
}

// Evaluate forward-propagates in and returns the de-normalized outputs.
//
// Errors:
//   - ErrDimensionMismatch (len(in) != N), ErrNonFiniteInput.
func (m *Model) Evaluate(in []float64) ([]float64, error) {
	if err := m.checkInput(in); err != nil {
		return nil, nnErrorf(opEvaluate, err)
	}
	acts := m.forward(in)

	return m.denormalize(acts[len(acts)-1]), nil
}

// EvaluateWithJacobian returns outputs and the K×N Jacobian.
//
// Implementation:
//   - Stage 1: forward pass keeping every activation vector.
//   - Stage 2: seed G = diag(outScale ⊙ s(1-s)) at the output plane.
//   - Stage 3: for each layer from the top, G ← G·W; below the first layer
//     scale columns by s(1-s) of that plane, at the input scale by 1/(max-min).
//
// Errors:
//   - ErrDimensionMismatch, ErrNonFiniteInput; matrix.ErrNaNInf if the
//     derivatives overflow.
//
// Complexity:
//   - Time O(K·W), Space O(K·max plane).
func (m *Model) EvaluateWithJacobian(in []float64) ([]float64, *matrix.Dense, error) {
	if err := m.checkInput(in); err != nil {
		return nil, nil, nnErrorf(opJacobian, err)
	}
	acts := m.forward(in)
	top := acts[len(acts)-1]
	K := len(top)

	// g is K × width, row-major; width is the size of the current plane.
	width := K
	g := make([]float64, K*K)
	for k := 0; k < K; k++ {
		g[k*K+k] = m.outScale[k] * top[k] * (1 - top[k])
	}

	var k, i, j int
	var gki float64
	for l := len(m.layers) - 1; l >= 0; l-- {
		ly := &m.layers[l]
		next := make([]float64, K*ly.in)
		for k = 0; k < K; k++ {
			for i = 0; i < ly.out; i++ {
				gki = g[k*width+i]
				if gki == 0 {
					continue
				}
				floats.AddScaled(next[k*ly.in:(k+1)*ly.in], gki, ly.w[i*ly.in:(i+1)*ly.in])
			}
		}

		// Column scaling by the derivative of the plane below.
		below := acts[l]
		for k = 0; k < K; k++ {
			row := next[k*ly.in : (k+1)*ly.in]
			for j = range row {
				if l > 0 {
					row[j] *= below[j] * (1 - below[j])
				} else {
					row[j] *= m.inScale[j]
				}
			}
		}
		g, width = next, ly.in
	}

	jac, err := matrix.NewFromData(K, width, g)
	if err != nil {
		return nil, nil, nnErrorf(opJacobian, err)
	}

	return m.denormalize(top), jac, nil
}
