// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/forward"
	"github.com/katalvlaran/oceanfit/lm"
)

// Validate checks dimensions, ranges and name references. Errors wrap
// ErrConfiguration.
func (r *Run) Validate() error {
	switch {
	case r.Measurements <= 0:
		return configErrorf("measurements %d must be positive", r.Measurements)
	case r.FixedInputs < 0:
		return configErrorf("fixed_inputs %d must not be negative", r.FixedInputs)
	case len(r.Parameters) == 0:
		return configErrorf("no parameters")
	case !(r.Variance > 0) || math.IsInf(r.Variance, 0):
		return configErrorf("variance %g must be positive and finite", r.Variance)
	case r.ChiSquareThreshold < 0 || math.IsNaN(r.ChiSquareThreshold):
		return configErrorf("chi_square_threshold %g", r.ChiSquareThreshold)
	case r.Workers < 0:
		return configErrorf("workers %d must not be negative", r.Workers)
	case r.OutputFloor != nil && len(r.OutputFloor) != r.Measurements:
		return configErrorf("output_floor has %d values for %d measurements", len(r.OutputFloor), r.Measurements)
	}

	seen := make(map[string]bool, len(r.Parameters))
	for i, p := range r.Parameters {
		if p.Name == "" {
			return configErrorf("parameter %d has no name", i)
		}
		if seen[p.Name] {
			return configErrorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if math.IsNaN(p.Start) || math.IsInf(p.Start, 0) {
			return configErrorf("parameter %q start %g", p.Name, p.Start)
		}
	}
	for _, c := range r.Conversions {
		if !seen[c.From] {
			return configErrorf("conversion %q reads unknown parameter %q", c.Name, c.From)
		}
		if c.Name == "" || math.IsNaN(c.Factor) || math.IsNaN(c.Exponent) {
			return configErrorf("conversion %+v", c)
		}
	}

	if _, err := r.FitterConfig(); err != nil {
		return fmt.Errorf("fitter: %v: %w", err, ErrConfiguration)
	}
	if pol := r.Polarization; pol.Enabled {
		if !(pol.OverestimationFactor > 0) || math.IsInf(pol.OverestimationFactor, 0) {
			return configErrorf("overestimation_factor %g", pol.OverestimationFactor)
		}
		if math.IsNaN(pol.ReflectanceFloor) || math.IsInf(pol.ReflectanceFloor, 0) {
			return configErrorf("reflectance_floor %g", pol.ReflectanceFloor)
		}
	}

	return nil
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration)
}

// NumParameters is P.
func (r *Run) NumParameters() int { return len(r.Parameters) }

// Layout is the forward-network layout of the run.
func (r *Run) Layout() forward.Layout {
	return forward.Layout{FixedInputs: r.FixedInputs, Parameters: len(r.Parameters), Measurements: r.Measurements}
}

// Start returns a fresh copy of the start parameters.
func (r *Run) Start() []float64 {
	out := make([]float64, len(r.Parameters))
	for i, p := range r.Parameters {
		out[i] = p.Start
	}

	return out
}

// ParameterIndex returns the position of name, or -1.
func (r *Run) ParameterIndex(name string) int {
	for i, p := range r.Parameters {
		if p.Name == name {
			return i
		}
	}

	return -1
}

// FitterConfig builds the validated lm.Config.
func (r *Run) FitterConfig() (lm.Config, error) {
	opts := []lm.Option{
		lm.WithMaxIterations(r.Fitter.MaxIterations),
		lm.WithTau(r.Fitter.Tau),
		lm.WithEpsilon1(r.Fitter.Eps1),
		lm.WithEpsilon2(r.Fitter.Eps2),
		lm.WithDampingRatio(r.Fitter.Nu),
		lm.WithMaxRejections(r.Fitter.MaxRejections),
	}
	if r.Fitter.History {
		opts = append(opts, lm.WithHistory())
	}

	return lm.NewConfig(opts...)
}

// Covariance returns Variance·I of size M.
func (r *Run) Covariance() *mat.SymDense {
	c := mat.NewSymDense(r.Measurements, nil)
	for i := 0; i < r.Measurements; i++ {
		c.SetSym(i, i, r.Variance)
	}

	return c
}
