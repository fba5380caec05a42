// SPDX-License-Identifier: MIT

package lm

// Status is the terminal state of a fit.
type Status int

const (
	// StatusConverged: a convergence test passed, or no damped step could
	// lower χ² any further.
	StatusConverged Status = iota
	// StatusMaxIterationsExceeded: nitermax accepted steps without convergence.
	// The last estimate is still returned.
	StatusMaxIterationsExceeded
	// StatusDiverged: the damped system stayed unsolvable (or the model not
	// finite) for too many consecutive trials, or the model could not be
	// evaluated at the start point.
	StatusDiverged
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "Converged"
	case StatusMaxIterationsExceeded:
		return "MaxIterationsExceeded"
	case StatusDiverged:
		return "Diverged"
	default:
		return "Unknown"
	}
}

// Reason records which test ended the fit.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonSmallStep
	ReasonSmallGradient
	ReasonMaxIterations
	ReasonTooManyRejections
	ReasonNonFiniteStart
	ReasonNoDecrease
)

var reasonNames = [...]string{
	ReasonNone:              "none",
	ReasonSmallStep:         "relative step below eps2",
	ReasonSmallGradient:     "gradient below eps1",
	ReasonMaxIterations:     "iteration limit",
	ReasonTooManyRejections: "consecutive rejections",
	ReasonNonFiniteStart:    "model not finite at start",
	ReasonNoDecrease:        "no chi-square decrease at any damping",
}

// String implements fmt.Stringer.
func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}

	return reasonNames[r]
}
