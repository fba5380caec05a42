// SPDX-License-Identifier: MIT

package forward

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLayout indicates a Layout that does not fit the wrapped network.
	ErrInvalidLayout = errors.New("forward: invalid layout")

	// ErrDimensionMismatch indicates a geometry or parameter vector of the wrong length.
	ErrDimensionMismatch = errors.New("forward: dimension mismatch")

	// ErrNonFiniteGeometry indicates a NaN or ±Inf fixed input.
	ErrNonFiniteGeometry = errors.New("forward: non-finite geometry")
)

const (
	opNewAdapter = "NewAdapter"
	opSetFixed   = "SetFixedInputs"
	opModel      = "ModelAndJacobian"
)

func forwardErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
