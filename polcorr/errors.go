// SPDX-License-Identifier: MIT
// Package polcorr: sentinel error set.

package polcorr

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates a network whose planes do not fit the
	// [geometry, toa, ed/cos] layout, or per-pixel vectors of the wrong length.
	ErrDimensionMismatch = errors.New("polcorr: dimension mismatch")

	// ErrInvalidGeometry indicates a non-finite angle or a sun at or below the
	// horizon (cos(sza) <= 0).
	ErrInvalidGeometry = errors.New("polcorr: invalid geometry")

	// ErrInvalidOption indicates an option value outside its valid range.
	ErrInvalidOption = errors.New("polcorr: invalid option")

	// ErrNonPositiveFactor indicates a correction factor the reflectances
	// cannot be divided by.
	ErrNonPositiveFactor = errors.New("polcorr: non-positive correction factor")
)

const (
	opNew     = "New"
	opCorrect = "Correct"
)

func polErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
