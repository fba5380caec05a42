// SPDX-License-Identifier: MIT
// Package polcorr - polarization correction of TOA reflectances.
//
// Purpose:
//   - Predict a per-band polarization factor with a dedicated network and
//     divide the raw top-of-atmosphere reflectances by it.
//
// Network layout (trained contract, order is fixed):
//
//	in  = [sza, vza, aziDiff, toa[0..B), ed[0..B)/cos(sza)]   (3 + 2B)
//	out = [f[0..B)]                                            (B)
//
// The network overestimates the polarization effect; the applied factor is
//
//	f' = 1 + (f - 1) / OverestimationFactor
//
// Raw reflectances are raised to ReflectanceFloor on the way into the network
// (nn.InputFloor); the division itself uses the caller's values.

package polcorr

import (
	"fmt"
	"math"

	"github.com/katalvlaran/oceanfit/matrix"
	"github.com/katalvlaran/oceanfit/nn"
)

const (
	// DefaultOverestimationFactor scales down the predicted deviation from 1.
	// Empirical: the network output is known to overshoot by 3%.
	DefaultOverestimationFactor = 1.03

	// DefaultReflectanceFloor is the smallest TOA reflectance handed to the
	// network.
	DefaultReflectanceFloor = 0.001

	// geometryInputs is the number of leading angle inputs.
	geometryInputs = 3
)

// Geometry holds the pixel angles in degrees.
type Geometry struct {
	SZA     float64 // sun zenith
	VZA     float64 // view zenith
	AziDiff float64 // relative azimuth
}

func (g Geometry) validate() error {
	for _, v := range [...]float64{g.SZA, g.VZA, g.AziDiff} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%+v: %w", g, ErrInvalidGeometry)
		}
	}
	if math.Cos(g.SZA*math.Pi/180) <= 0 {
		return fmt.Errorf("sza %g: %w", g.SZA, ErrInvalidGeometry)
	}

	return nil
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithOverestimationFactor replaces DefaultOverestimationFactor.
func WithOverestimationFactor(f float64) Option {
	return func(c *Corrector) { c.overestimation = f }
}

// WithReflectanceFloor replaces DefaultReflectanceFloor.
func WithReflectanceFloor(v float64) Option {
	return func(c *Corrector) { c.floor = v }
}

// Corrector applies the polarization network. Immutable after New; safe for
// concurrent use when the underlying network is.
type Corrector struct {
	ev             *nn.InputFloorEvaluator
	bands          int
	overestimation float64
	floor          float64
}

// Correction is the per-pixel outcome.
type Correction struct {
	Reflectances []float64 // toa / f'
	Factors      []float64 // f' per band
	Floored      int       // toa inputs raised to the floor before evaluation
}

// New wraps ev, whose planes must be 3+2B inputs and B outputs.
func New(ev nn.Evaluator, opts ...Option) (*Corrector, error) {
	if ev == nil {
		return nil, polErrorf(opNew, fmt.Errorf("nil evaluator: %w", ErrDimensionMismatch))
	}
	c := &Corrector{
		bands:          ev.OutputSize(),
		overestimation: DefaultOverestimationFactor,
		floor:          DefaultReflectanceFloor,
	}
	for _, opt := range opts {
		opt(c)
	}
	if !(c.overestimation > 0) || math.IsInf(c.overestimation, 0) {
		return nil, polErrorf(opNew, fmt.Errorf("overestimation factor %g: %w", c.overestimation, ErrInvalidOption))
	}
	if c.bands <= 0 || ev.InputSize() != geometryInputs+2*c.bands {
		return nil, polErrorf(opNew, fmt.Errorf("%d inputs, %d outputs: %w", ev.InputSize(), c.bands, ErrDimensionMismatch))
	}

	toa := make([]int, c.bands)
	for i := range toa {
		toa[i] = geometryInputs + i
	}
	floored, err := nn.InputFloor(ev, toa, c.floor)
	if err != nil {
		return nil, polErrorf(opNew, fmt.Errorf("%v: %w", err, ErrInvalidOption))
	}
	c.ev = floored

	return c, nil
}

// Bands is the number of corrected bands.
func (c *Corrector) Bands() int { return c.bands }

// Correct evaluates the network for one pixel. ed is the downwelling
// irradiance and toa the raw reflectance, both one value per band.
func (c *Corrector) Correct(geom Geometry, ed, toa []float64) (Correction, error) {
	if len(ed) != c.bands || len(toa) != c.bands {
		return Correction{}, polErrorf(opCorrect, fmt.Errorf("ed %d, toa %d for %d bands: %w", len(ed), len(toa), c.bands, ErrDimensionMismatch))
	}
	if err := geom.validate(); err != nil {
		return Correction{}, polErrorf(opCorrect, err)
	}
	if err := matrix.ValidateFinite(toa); err != nil {
		return Correction{}, polErrorf(opCorrect, err)
	}

	in := c.input(geom, ed, toa)
	f, floored, err := c.ev.EvaluateCounted(in)
	if err != nil {
		return Correction{}, polErrorf(opCorrect, err)
	}

	out := Correction{
		Reflectances: make([]float64, c.bands),
		Factors:      make([]float64, c.bands),
		Floored:      floored,
	}
	for i, fi := range f {
		eff := 1 + (fi-1)/c.overestimation
		if !(eff > 0) || math.IsInf(eff, 0) {
			return Correction{}, polErrorf(opCorrect, fmt.Errorf("band %d: f=%g: %w", i, eff, ErrNonPositiveFactor))
		}
		out.Factors[i] = eff
		out.Reflectances[i] = toa[i] / eff
	}

	return out, nil
}

func (c *Corrector) input(geom Geometry, ed, toa []float64) []float64 {
	in := make([]float64, 0, geometryInputs+2*c.bands)
	in = append(in, geom.SZA, geom.VZA, geom.AziDiff)
	in = append(in, toa...)
	cosSZA := math.Cos(geom.SZA * math.Pi / 180)
	for _, e := range ed {
		in = append(in, e/cosSZA)
	}

	return in
}
