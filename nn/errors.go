// SPDX-License-Identifier: MIT
// Package nn: sentinel error set.
// Loaders and evaluators return these sentinels wrapped with an operation tag
// (see nnErrorf); callers match them via errors.Is.

package nn

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedNetwork indicates a weight stream or Spec that cannot describe
	// a valid feed-forward network (bad plane sizes, ragged weights, empty or
	// inverted normalization ranges, non-finite coefficients).
	ErrMalformedNetwork = errors.New("nn: malformed network")

	// ErrDimensionMismatch indicates an input vector whose length differs from
	// the network's input plane, or a decorator configured for the wrong size.
	ErrDimensionMismatch = errors.New("nn: dimension mismatch")

	// ErrNonFiniteInput indicates a NaN or ±Inf component in an input vector.
	ErrNonFiniteInput = errors.New("nn: non-finite input")

	// ErrInvalidIndex indicates a decorator index outside [0, InputSize).
	ErrInvalidIndex = errors.New("nn: input index out of range")
)

// Operation tags used in error wrappers.
const (
	opEvaluate = "Evaluate"
	opJacobian = "EvaluateWithJacobian"
	opNewModel = "NewModel"
	opReadText = "ReadText"
	opReadJSON = "ReadJSON"
	opLoadFile = "LoadFile"
	opFloor    = "Floor"
)

// nnErrorf wraps err with an operation tag, preserving it for errors.Is.
func nnErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
