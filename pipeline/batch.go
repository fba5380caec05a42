// SPDX-License-Identifier: MIT
// Package pipeline - parallel batch inversion.
//
// Concurrency:
//   - errgroup with SetLimit(workers); each task checks a fitter out of the
//     Inverter's pool and returns it when its pixel is done.
//   - Cancellation (ctx or a configuration error in another pixel) stops new
//     pixels from starting; fits already running finish normally.
//   - results[i] is written only by the task for pixel i.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/oceanfit/lm"
)

// Summary aggregates a batch.
type Summary struct {
	Pixels        int
	Converged     int
	MaxIterations int
	Diverged      int
	InvalidInput  int
	Clamped       int
	Floored       int
	ChiSquareHigh int
	OutOfDomain   int
	Skipped       int
	Iterations    int // accepted steps over all fits
}

// Add accounts for one result.
func (s *Summary) Add(r Result) {
	s.Pixels++
	s.Iterations += r.Fit.Iterations
	counters := [...]struct {
		flag Flags
		n    *int
	}{
		{FlagConverged, &s.Converged},
		{FlagMaxIterations, &s.MaxIterations},
		{FlagDiverged, &s.Diverged},
		{FlagInvalidInput, &s.InvalidInput},
		{FlagParameterClamped, &s.Clamped},
		{FlagReflectanceFloored, &s.Floored},
		{FlagChiSquareHigh, &s.ChiSquareHigh},
		{FlagGeometryOutOfDomain, &s.OutOfDomain},
		{FlagSkipped, &s.Skipped},
	}
	for _, c := range counters {
		if r.Flags.Has(c.flag) {
			*c.n++
		}
	}
}

// InvertBatch inverts pixels in parallel. results has one entry per pixel in
// input order; pixels never started carry FlagSkipped. The returned error is
// the first configuration error or the context's error.
func (inv *Inverter) InvertBatch(ctx context.Context, pixels []Pixel, polarization bool) ([]Result, Summary, error) {
	began := time.Now()
	results := make([]Result, len(pixels))
	for i := range results {
		results[i].Flags = FlagSkipped
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.workers)
	for i := range pixels {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := inv.fitters.Get().(*lm.Fitter)
			defer inv.fitters.Put(f)

			res, err := inv.invert(f, pixels[i], polarization)
			if err != nil {
				return fmt.Errorf("pixel %d: %w", i, err)
			}
			results[i] = res

			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var sum Summary
	for _, r := range results {
		sum.Add(r)
	}
	fields := []zap.Field{
		zap.Int("pixels", sum.Pixels),
		zap.Int("converged", sum.Converged),
		zap.Int("max_iterations", sum.MaxIterations),
		zap.Int("diverged", sum.Diverged),
		zap.Int("invalid", sum.InvalidInput),
		zap.Int("skipped", sum.Skipped),
		zap.Int("workers", inv.workers),
		zap.Duration("elapsed", time.Since(began)),
	}
	if err != nil {
		inv.log.Error("batch stopped", append(fields, zap.Error(err))...)

		return results, sum, pipelineErrorf(opBatch, err)
	}
	inv.log.Info("batch done", fields...)

	return results, sum, nil
}
