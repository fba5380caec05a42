// Package kd derives diffuse attenuation coefficients from the constituents
// retrieved by the pixel inversion.
//
// It is a closed-form post-processing step: Estimate is pure, allocation-free
// and independent of the iterative fitter.
package kd
