// SPDX-License-Identifier: MIT

package pipeline

import "strings"

// Flags is the per-pixel quality bitmask.
type Flags uint16

const (
	FlagConverged Flags = 1 << iota
	FlagMaxIterations
	FlagDiverged
	// FlagInvalidInput: the pixel could not be fitted (non-finite or
	// non-positive reflectance, invalid geometry).
	FlagInvalidInput
	// FlagParameterClamped: at least one trial left the training domain.
	FlagParameterClamped
	// FlagReflectanceFloored: raw reflectances were raised before the
	// polarization network.
	FlagReflectanceFloored
	// FlagChiSquareHigh: χ² above the configured threshold.
	FlagChiSquareHigh
	// FlagGeometryOutOfDomain: the fixed geometry is an extrapolation.
	FlagGeometryOutOfDomain
	// FlagSkipped: the batch stopped before this pixel was processed.
	FlagSkipped
)

var flagNames = [...]string{
	"converged", "max_iterations", "diverged", "invalid_input", "clamped",
	"floored", "chi2_high", "geometry_out_of_domain", "skipped",
}

// Has reports whether every bit of x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// String lists the set flags joined by '|'.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}

	return strings.Join(parts, "|")
}
