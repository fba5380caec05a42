// SPDX-License-Identifier: MIT
// Package lm: sentinel error set.
// Only malformed input is an error; MaxIterationsExceeded and Diverged are
// statuses carried by FitResult.

package lm

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates start, measurement, covariance or model
	// shapes that disagree with each other.
	ErrDimensionMismatch = errors.New("lm: dimension mismatch")

	// ErrNonFiniteMeasurement indicates a NaN or ±Inf measurement value.
	ErrNonFiniteMeasurement = errors.New("lm: non-finite measurement")

	// ErrNonFiniteStart indicates a NaN or ±Inf starting parameter.
	ErrNonFiniteStart = errors.New("lm: non-finite start parameter")

	// ErrInvalidCovariance indicates a covariance that is non-finite, not
	// positive semi-definite, or identically zero.
	ErrInvalidCovariance = errors.New("lm: invalid covariance")

	// ErrInvalidConfig indicates a Config field outside its valid range.
	ErrInvalidConfig = errors.New("lm: invalid config")

	// ErrNilModel indicates Fit was called without a model.
	ErrNilModel = errors.New("lm: nil model")
)

const (
	opFit       = "Fit"
	opConfig    = "Config"
	opWeighting = "Weighting"
)

func lmErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
