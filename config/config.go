// SPDX-License-Identifier: MIT
// Package config - processing-run description.
//
// Purpose:
//   - Decode the per-run YAML document (fitter constants, fit dimensions,
//     measurement noise, start point, network files, polarization settings,
//     output conversions) into a Run.
//   - Turn a validated Run into the typed values the numeric packages take:
//     lm.Config, forward.Layout, the measurement covariance.
//
// Loading order: Default() first, then the document on top of it, then
// Validate. Keys absent from the document keep their defaults; unknown keys
// are rejected.

package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/oceanfit/lm"
	"github.com/katalvlaran/oceanfit/polcorr"
)

// ErrConfiguration wraps every load and validation failure. It is fatal to a
// run.
var ErrConfiguration = errors.New("config: invalid configuration")

// Run is one processing configuration.
type Run struct {
	// Measurements is M, the number of bands fitted.
	Measurements int `yaml:"measurements"`

	// FixedInputs is the number of geometry inputs ahead of the parameters in
	// the forward network's input plane.
	FixedInputs int `yaml:"fixed_inputs"`

	// Parameters lists the fitted quantities in network input order. P is
	// len(Parameters). Values live in natural-log space.
	Parameters []Parameter `yaml:"parameters"`

	// Variance is the shared per-band measurement variance; the covariance is
	// Variance·I.
	Variance float64 `yaml:"variance"`

	// LogMeasurements fits ln(reflectance) instead of reflectance.
	LogMeasurements bool `yaml:"log_measurements"`

	// OutputFloor, when set, clips the forward network's first M outputs from
	// below (one value per band).
	OutputFloor []float64 `yaml:"output_floor,omitempty"`

	// ChiSquareThreshold flags fits whose χ² exceeds it; 0 disables the flag.
	ChiSquareThreshold float64 `yaml:"chi_square_threshold"`

	// Workers bounds batch parallelism; 0 means one per CPU.
	Workers int `yaml:"workers"`

	Fitter       Fitter       `yaml:"fitter"`
	Networks     Networks     `yaml:"networks"`
	Polarization Polarization `yaml:"polarization"`
	Conversions  []Conversion `yaml:"conversions"`
}

// Parameter is one fitted quantity.
type Parameter struct {
	Name  string  `yaml:"name"`
	Start float64 `yaml:"start"`
}

// Fitter mirrors lm.Config.
type Fitter struct {
	MaxIterations int     `yaml:"nitermax"`
	Tau           float64 `yaml:"tau"`
	Eps1          float64 `yaml:"eps1"`
	Eps2          float64 `yaml:"eps2"`
	Nu            float64 `yaml:"nu"`
	MaxRejections int     `yaml:"max_rejections"`
	History       bool    `yaml:"history"`
}

// Networks names the weight files. Relative paths are resolved against the
// directory of the YAML file by Load.
type Networks struct {
	Forward      string `yaml:"forward"`
	Polarization string `yaml:"polarization,omitempty"`
	ExactSigmoid bool   `yaml:"exact_sigmoid"`
}

// Polarization holds the correction settings.
type Polarization struct {
	Enabled              bool    `yaml:"enabled"`
	OverestimationFactor float64 `yaml:"overestimation_factor"`
	ReflectanceFloor     float64 `yaml:"reflectance_floor"`
}

// Conversion derives a physical output: Factor · exp(p[From])^Exponent.
type Conversion struct {
	Name     string  `yaml:"name"`
	From     string  `yaml:"from"`
	Factor   float64 `yaml:"factor"`
	Exponent float64 `yaml:"exponent"`
}

// Apply evaluates the conversion for a log-space parameter value.
func (c Conversion) Apply(p float64) float64 {
	return c.Factor * math.Pow(math.Exp(p), c.Exponent)
}

// Parameter names the post-processing recognizes.
const (
	ParamBTsm  = "bTsm"
	ParamAPig  = "aPig"
	ParamAYs   = "aYs"
	ParamABtsm = "aBtsm"
)

// Default returns the three-parameter, eight-band configuration.
func Default() *Run {
	return &Run{
		Measurements: 8,
		FixedInputs:  3,
		Parameters: []Parameter{
			{Name: ParamBTsm, Start: math.Log(1.0)},
			{Name: ParamAPig, Start: math.Log(0.1)},
			{Name: ParamAYs, Start: math.Log(0.1)},
		},
		Variance:        1.5e-3,
		LogMeasurements: true,
		Fitter: Fitter{
			MaxIterations: lm.DefaultMaxIterations,
			Tau:           lm.DefaultTau,
			Eps1:          lm.DefaultEpsilon1,
			Eps2:          lm.DefaultEpsilon2,
			Nu:            lm.DefaultDampingRatio,
			MaxRejections: lm.DefaultMaxRejections,
		},
		Polarization: Polarization{
			OverestimationFactor: polcorr.DefaultOverestimationFactor,
			ReflectanceFloor:     polcorr.DefaultReflectanceFloor,
		},
		Conversions: []Conversion{
			{Name: "chl", From: ParamAPig, Factor: 21.0, Exponent: 1.04},
			{Name: "tsm", From: ParamBTsm, Factor: 1.73, Exponent: 1.0},
		},
	}
}

// Parse decodes a YAML document over Default and validates it.
func Parse(r io.Reader) (*Run, error) {
	run := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(run); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %v: %w", err, ErrConfiguration)
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}

	return run, nil
}

// Load reads and parses path, resolving relative network paths against the
// file's directory.
func Load(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, ErrConfiguration)
	}
	defer f.Close()

	run, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	run.Networks.Forward = resolve(dir, run.Networks.Forward)
	run.Networks.Polarization = resolve(dir, run.Networks.Polarization)

	return run, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(dir, p)
}

// Marshal encodes r as YAML.
func (r *Run) Marshal(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}

	return enc.Close()
}
