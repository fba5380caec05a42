// SPDX-License-Identifier: MIT
// Package matrix: sentinel errors.
//
// Every kernel returns one of these, wrapped with an operation tag through
// matrixErrorf or validatorErrorf; callers match with errors.Is. User input
// never makes a kernel panic.
//
// Check order inside a kernel: nil -> shape/index/NaN -> dimensions -> singular.

package matrix

import "errors"

var (
	// ErrBadShape is returned for an invalid window or sub-block request.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrOutOfRange reports a row or column index outside the matrix.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrDimensionMismatch reports incompatible operands, e.g. a.Cols != b.Rows
	// in Mul, or a right-hand side of the wrong length.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrNaNInf reports a non-finite value where the kernel requires finite ones
	// (Set, NewFromData, clip bounds).
	ErrNaNInf = errors.New("matrix: NaN or Inf encountered")

	// ErrNilMatrix reports a nil matrix or vector argument.
	ErrNilMatrix = errors.New("matrix: nil receiver")

	// ErrSingular reports a zero pivot in LU or SolveLU. No pivoting is done.
	ErrSingular = errors.New("matrix: singular matrix")

	// ErrInvalidDimensions reports non-positive requested dimensions.
	ErrInvalidDimensions = errors.New("matrix: dimensions must be > 0")
)
