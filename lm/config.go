// SPDX-License-Identifier: MIT

package lm

import (
	"fmt"
	"math"
)

// Default fitter constants.
const (
	DefaultMaxIterations = 150
	DefaultTau           = 1e-3
	DefaultEpsilon1      = 1e-12
	DefaultEpsilon2      = 1e-10
	DefaultDampingRatio  = 2.0
	DefaultMaxRejections = 20
)

// Config holds the per-run fitter constants. It is immutable once handed to
// NewFitter.
type Config struct {
	// MaxIterations bounds the number of accepted steps (nitermax).
	MaxIterations int

	// Tau seeds the damping: λ₀ = Tau · max diag(JᵀWJ). Tau = 0 makes the
	// first trial a pure Gauss-Newton step.
	Tau float64

	// Epsilon1 is the gradient threshold: converged when |JᵀWr|∞ < Epsilon1.
	Epsilon1 float64

	// Epsilon2 is the relative step threshold: converged when |δ|/|p| < Epsilon2.
	Epsilon2 float64

	// DampingRatio is ν: λ is divided by ν on acceptance, multiplied on rejection.
	DampingRatio float64

	// MaxRejections is the number of consecutive rejected trials after which
	// the fit stops as Diverged.
	MaxRejections int

	// RecordHistory keeps the accepted chi-square sequence in FitResult.History.
	RecordHistory bool
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithMaxIterations sets nitermax.
func WithMaxIterations(n int) Option { return func(c *Config) { c.MaxIterations = n } }

// WithTau sets the damping seed factor.
func WithTau(tau float64) Option { return func(c *Config) { c.Tau = tau } }

// WithEpsilon1 sets the gradient convergence threshold.
func WithEpsilon1(eps float64) Option { return func(c *Config) { c.Epsilon1 = eps } }

// WithEpsilon2 sets the relative step convergence threshold.
func WithEpsilon2(eps float64) Option { return func(c *Config) { c.Epsilon2 = eps } }

// WithDampingRatio sets ν.
func WithDampingRatio(nu float64) Option { return func(c *Config) { c.DampingRatio = nu } }

// WithMaxRejections sets the consecutive-rejection limit.
func WithMaxRejections(n int) Option { return func(c *Config) { c.MaxRejections = n } }

// WithHistory enables chi-square history recording.
func WithHistory() Option { return func(c *Config) { c.RecordHistory = true } }

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Tau:           DefaultTau,
		Epsilon1:      DefaultEpsilon1,
		Epsilon2:      DefaultEpsilon2,
		DampingRatio:  DefaultDampingRatio,
		MaxRejections: DefaultMaxRejections,
	}
}

// NewConfig applies opts over DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations <= 0:
		return lmErrorf(opConfig, fmt.Errorf("MaxIterations %d: %w", c.MaxIterations, ErrInvalidConfig))
	case !finiteNonNegative(c.Tau):
		return lmErrorf(opConfig, fmt.Errorf("Tau %g: %w", c.Tau, ErrInvalidConfig))
	case !finiteNonNegative(c.Epsilon1):
		return lmErrorf(opConfig, fmt.Errorf("Epsilon1 %g: %w", c.Epsilon1, ErrInvalidConfig))
	case !finiteNonNegative(c.Epsilon2):
		return lmErrorf(opConfig, fmt.Errorf("Epsilon2 %g: %w", c.Epsilon2, ErrInvalidConfig))
	case !(c.DampingRatio > 1) || math.IsInf(c.DampingRatio, 0):
		return lmErrorf(opConfig, fmt.Errorf("DampingRatio %g must be > 1: %w", c.DampingRatio, ErrInvalidConfig))
	case c.MaxRejections <= 0:
		return lmErrorf(opConfig, fmt.Errorf("MaxRejections %d: %w", c.MaxRejections, ErrInvalidConfig))
	}

	return nil
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
