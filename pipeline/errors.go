// SPDX-License-Identifier: MIT
// Package pipeline: sentinel error set.
// Every error returned by this package is a configuration error: it aborts
// the run. Per-pixel numerical trouble is reported through Result.Flags.

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates a pixel whose vectors do not match the
	// run's band count or geometry layout.
	ErrDimensionMismatch = errors.New("pipeline: dimension mismatch")

	// ErrNoPolarizationNetwork indicates polarization correction was
	// requested but no polarization network was supplied.
	ErrNoPolarizationNetwork = errors.New("pipeline: no polarization network")
)

const (
	opNew    = "New"
	opInvert = "Invert"
	opBatch  = "InvertBatch"
)

func pipelineErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
