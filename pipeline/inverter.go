// SPDX-License-Identifier: MIT
// Package pipeline - per-pixel inversion.
//
// Purpose:
//   - Run one pixel end to end: optional polarization correction, measurement
//     vector assembly, Levenberg–Marquardt fit against the forward network,
//     physical conversions and diffuse attenuation.
//
// Implementation:
//   - Stage 1: check pixel shapes against the run (configuration errors).
//   - Stage 2: polarization correction when requested.
//   - Stage 3: measurements (ln r in log mode) and the pixel-bound model.
//   - Stage 4: fit with a pooled lm.Fitter, then derive outputs and flags.
//
// Error policy:
//   - Returned errors abort the run; invalid pixel values become
//     FlagInvalidInput with Fitted == false.

package pipeline

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/forward"
	"github.com/katalvlaran/oceanfit/kd"
	"github.com/katalvlaran/oceanfit/lm"
	"github.com/katalvlaran/oceanfit/nn"
	"github.com/katalvlaran/oceanfit/polcorr"
)

// Pixel is one inversion input.
type Pixel struct {
	// Geometry is the forward network's fixed inputs (FixedInputs values).
	Geometry []float64
	// PolGeometry and Ed feed the polarization network; ignored without it.
	PolGeometry polcorr.Geometry
	Ed          []float64
	// Reflectances holds the M raw reflectances.
	Reflectances []float64
}

// Result is the outcome of one pixel.
type Result struct {
	Fit    lm.FitResult
	Fitted bool // false when the pixel was rejected before fitting
	Flags  Flags

	// Measurements is the vector handed to the fitter.
	Measurements []float64

	// Physical maps each parameter name to exp(p) and each conversion name to
	// its converted value.
	Physical map[string]float64

	// Attenuation is set when the run fits bTsm, aPig and aYs.
	Attenuation    kd.Attenuation
	HasAttenuation bool

	// Floored counts raw reflectances raised before the polarization network.
	Floored int
}

// Option configures an Inverter.
type Option func(*Inverter)

// WithLogger sets the logger (default zap.NewNop()).
func WithLogger(l *zap.Logger) Option {
	return func(inv *Inverter) {
		if l != nil {
			inv.log = l
		}
	}
}

// WithWorkers overrides run.Workers for InvertBatch.
func WithWorkers(n int) Option { return func(inv *Inverter) { inv.workers = n } }

// Inverter holds everything shared by the pixels of one run. Safe for
// concurrent use.
type Inverter struct {
	run     *config.Run
	adapter *forward.Adapter
	pol     *polcorr.Corrector
	cfg     lm.Config
	cov     *mat.SymDense
	start   []float64
	log     *zap.Logger
	workers int
	fitters sync.Pool

	kdIdx [4]int // bTsm, aPig, aYs, aBtsm; -1 when absent
}

// New builds an Inverter for run. fwd is the forward network; pol may be nil
// when no polarization network is available.
//
// Errors wrap config.ErrConfiguration.
func New(run *config.Run, fwd nn.Evaluator, pol nn.Evaluator, opts ...Option) (*Inverter, error) {
	if run == nil {
		return nil, pipelineErrorf(opNew, fmt.Errorf("nil run: %w", config.ErrConfiguration))
	}
	if err := run.Validate(); err != nil {
		return nil, pipelineErrorf(opNew, err)
	}
	cfg, err := run.FitterConfig()
	if err != nil {
		return nil, pipelineErrorf(opNew, fmt.Errorf("%w: %w", config.ErrConfiguration, err))
	}
	if fwd == nil {
		return nil, pipelineErrorf(opNew, fmt.Errorf("nil forward network: %w", config.ErrConfiguration))
	}

	if run.OutputFloor != nil {
		if fwd, err = outputFloor(fwd, run.OutputFloor); err != nil {
			return nil, pipelineErrorf(opNew, fmt.Errorf("%w: %w", config.ErrConfiguration, err))
		}
	}
	adapter, err := forward.NewAdapter(fwd, run.Layout())
	if err != nil {
		return nil, pipelineErrorf(opNew, fmt.Errorf("%w: %w", config.ErrConfiguration, err))
	}

	inv := &Inverter{
		run:     run,
		adapter: adapter,
		cfg:     cfg,
		cov:     run.Covariance(),
		start:   run.Start(),
		log:     zap.NewNop(),
		workers: run.Workers,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.workers <= 0 {
		inv.workers = runtime.GOMAXPROCS(0)
	}

	if pol != nil {
		inv.pol, err = polcorr.New(pol,
			polcorr.WithOverestimationFactor(run.Polarization.OverestimationFactor),
			polcorr.WithReflectanceFloor(run.Polarization.ReflectanceFloor))
		if err != nil {
			return nil, pipelineErrorf(opNew, fmt.Errorf("%w: %w", config.ErrConfiguration, err))
		}
		if inv.pol.Bands() != run.Measurements {
			return nil, pipelineErrorf(opNew, fmt.Errorf("polarization network has %d bands for %d measurements: %w",
				inv.pol.Bands(), run.Measurements, config.ErrConfiguration))
		}
	}

	for i, name := range [...]string{config.ParamBTsm, config.ParamAPig, config.ParamAYs, config.ParamABtsm} {
		inv.kdIdx[i] = run.ParameterIndex(name)
	}
	inv.fitters.New = func() any {
		f, _ := lm.NewFitter(cfg) // cfg is validated above

		return f
	}

	return inv, nil
}

// outputFloor clips the first len(floor) outputs; trailing outputs are left
// alone.
func outputFloor(ev nn.Evaluator, floor []float64) (nn.Evaluator, error) {
	full := make([]float64, ev.OutputSize())
	for k := range full {
		full[k] = -math.MaxFloat64
	}
	if len(floor) > len(full) {
		return nil, fmt.Errorf("%d floors for %d outputs: %w", len(floor), len(full), nn.ErrDimensionMismatch)
	}
	copy(full, floor)
	clipped, err := nn.OutputFloor(ev, full)
	if err != nil {
		return nil, err
	}

	return clipped, nil
}

// Workers is the batch parallelism.
func (inv *Inverter) Workers() int { return inv.workers }

// HasPolarization reports whether a polarization network is loaded.
func (inv *Inverter) HasPolarization() bool { return inv.pol != nil }

// Invert processes one pixel with a pooled fitter.
func (inv *Inverter) Invert(px Pixel, polarization bool) (Result, error) {
	f := inv.fitters.Get().(*lm.Fitter)
	defer inv.fitters.Put(f)

	return inv.invert(f, px, polarization)
}

func (inv *Inverter) invert(f *lm.Fitter, px Pixel, polarization bool) (Result, error) {
	// Stage 1: shapes.
	m := inv.run.Measurements
	if len(px.Reflectances) != m {
		return Result{}, pipelineErrorf(opInvert, fmt.Errorf("%d reflectances for %d bands: %w", len(px.Reflectances), m, ErrDimensionMismatch))
	}
	if len(px.Geometry) != inv.run.FixedInputs {
		return Result{}, pipelineErrorf(opInvert, fmt.Errorf("%d geometry values, want %d: %w", len(px.Geometry), inv.run.FixedInputs, ErrDimensionMismatch))
	}
	if polarization && inv.pol == nil {
		return Result{}, pipelineErrorf(opInvert, ErrNoPolarizationNetwork)
	}

	var res Result
	refl := px.Reflectances

	// Stage 2: polarization.
	if polarization {
		corr, err := inv.pol.Correct(px.PolGeometry, px.Ed, refl)
		switch {
		case errors.Is(err, polcorr.ErrDimensionMismatch):
			return Result{}, pipelineErrorf(opInvert, fmt.Errorf("%v: %w", err, ErrDimensionMismatch))
		case err != nil:
			return inv.reject(res, err), nil
		}
		refl = corr.Reflectances
		res.Floored = corr.Floored
		if corr.Floored > 0 {
			res.Flags |= FlagReflectanceFloored
		}
	}

	// Stage 3: measurements and model.
	y, err := inv.measurements(refl)
	if err != nil {
		return inv.reject(res, err), nil
	}
	res.Measurements = y

	pm, err := inv.adapter.SetFixedInputs(px.Geometry)
	if err != nil {
		if errors.Is(err, forward.ErrNonFiniteGeometry) {
			return inv.reject(res, err), nil
		}

		return Result{}, pipelineErrorf(opInvert, err)
	}
	if pm.GeometryOutOfDomain() > 0 {
		res.Flags |= FlagGeometryOutOfDomain
	}

	// Stage 4: fit.
	fit, err := f.Fit(pm, lm.FitInitialization{
		Start:        inv.start,
		Measurements: y,
		Covariance:   inv.cov,
	})
	if err != nil {
		return Result{}, pipelineErrorf(opInvert, err)
	}
	res.Fit, res.Fitted = fit, true
	res.Flags |= statusFlag(fit.Status)
	if fit.ClampCount > 0 {
		res.Flags |= FlagParameterClamped
	}
	if t := inv.run.ChiSquareThreshold; t > 0 && !(fit.ChiSquare <= t) {
		res.Flags |= FlagChiSquareHigh
	}
	inv.derive(&res)

	return res, nil
}

func (inv *Inverter) reject(res Result, err error) Result {
	inv.log.Debug("pixel rejected", zap.Error(err))
	res.Flags |= FlagInvalidInput

	return res
}

// measurements converts reflectances into the fitted vector.
func (inv *Inverter) measurements(refl []float64) ([]float64, error) {
	y := make([]float64, len(refl))
	for i, r := range refl {
		switch {
		case math.IsNaN(r) || math.IsInf(r, 0):
			return nil, fmt.Errorf("band %d: reflectance %g", i, r)
		case inv.run.LogMeasurements && r <= 0:
			return nil, fmt.Errorf("band %d: reflectance %g has no logarithm", i, r)
		case inv.run.LogMeasurements:
			y[i] = math.Log(r)
		default:
			y[i] = r
		}
	}

	return y, nil
}

func statusFlag(s lm.Status) Flags {
	switch s {
	case lm.StatusConverged:
		return FlagConverged
	case lm.StatusMaxIterationsExceeded:
		return FlagMaxIterations
	default:
		return FlagDiverged
	}
}

// derive fills Physical and Attenuation from the fitted parameters.
func (inv *Inverter) derive(res *Result) {
	p := res.Fit.Parameters
	res.Physical = make(map[string]float64, len(p)+len(inv.run.Conversions))
	for i, par := range inv.run.Parameters {
		res.Physical[par.Name] = math.Exp(p[i])
	}
	for _, c := range inv.run.Conversions {
		res.Physical[c.Name] = c.Apply(p[inv.run.ParameterIndex(c.From)])
	}

	b, a, ys, det := inv.kdIdx[0], inv.kdIdx[1], inv.kdIdx[2], inv.kdIdx[3]
	if b < 0 || a < 0 || ys < 0 {
		return
	}
	t := kd.Triplet{BTsm: math.Exp(p[b]), APig: math.Exp(p[a]), AGelbstoff: math.Exp(p[ys])}
	if det >= 0 {
		t.ABtsm = math.Exp(p[det])
	}
	res.Attenuation, res.HasAttenuation = kd.Estimate(t), true
}
