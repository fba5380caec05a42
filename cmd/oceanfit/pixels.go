// SPDX-License-Identifier: MIT

package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/pipeline"
)

// errPixelFile indicates a malformed pixel table.
var errPixelFile = errors.New("oceanfit: malformed pixel file")

// pixelColumns locates each Pixel field in a CSV header:
// geom_<i>, sza, vza, azi_diff, ed_<i>, refl_<i>.
type pixelColumns struct {
	geom, ed, refl []int
	sza, vza, azi  int
}

func locate(header []string, run *config.Run, polarization bool) (pixelColumns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	need := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("missing column %q: %w", name, errPixelFile)
		}
		return i, nil
	}
	series := func(prefix string, n int) ([]int, error) {
		out := make([]int, n)
		for i := range out {
			c, err := need(fmt.Sprintf("%s_%d", prefix, i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	var (
		cols pixelColumns
		err  error
	)
	if cols.geom, err = series("geom", run.FixedInputs); err != nil {
		return cols, err
	}
	if cols.refl, err = series("refl", run.Measurements); err != nil {
		return cols, err
	}
	cols.sza, cols.vza, cols.azi = -1, -1, -1
	if !polarization {
		return cols, nil
	}
	if cols.ed, err = series("ed", run.Measurements); err != nil {
		return cols, err
	}
	if cols.sza, err = need("sza"); err != nil {
		return cols, err
	}
	if cols.vza, err = need("vza"); err != nil {
		return cols, err
	}
	cols.azi, err = need("azi_diff")

	return cols, err
}

// readPixels parses a headed CSV table into pixels.
func readPixels(r io.Reader, run *config.Run, polarization bool) ([]pipeline.Pixel, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %v: %w", err, errPixelFile)
	}
	cols, err := locate(header, run, polarization)
	if err != nil {
		return nil, err
	}

	var pixels []pipeline.Pixel
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return pixels, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", line, err, errPixelFile)
		}
		px, err := parsePixel(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pixels = append(pixels, px)
	}
}

func parsePixel(rec []string, cols pixelColumns) (pipeline.Pixel, error) {
	var (
		px  pipeline.Pixel
		err error
	)
	field := func(c int) (float64, error) {
		v, err := strconv.ParseFloat(rec[c], 64)
		if err != nil {
			return 0, fmt.Errorf("column %d: %v: %w", c+1, err, errPixelFile)
		}
		return v, nil
	}
	series := func(cs []int) ([]float64, error) {
		out := make([]float64, len(cs))
		for i, c := range cs {
			if out[i], err = field(c); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	if px.Geometry, err = series(cols.geom); err != nil {
		return px, err
	}
	if px.Reflectances, err = series(cols.refl); err != nil {
		return px, err
	}
	if cols.ed == nil {
		return px, nil
	}
	if px.Ed, err = series(cols.ed); err != nil {
		return px, err
	}
	if px.PolGeometry.SZA, err = field(cols.sza); err != nil {
		return px, err
	}
	if px.PolGeometry.VZA, err = field(cols.vza); err != nil {
		return px, err
	}
	px.PolGeometry.AziDiff, err = field(cols.azi)

	return px, err
}

// writeResults emits one row per pixel: index, status, flags, chi2,
// iterations, clamps, fitted parameters, physical outputs, attenuation.
func writeResults(w io.Writer, run *config.Run, results []pipeline.Result) error {
	cw := csv.NewWriter(w)
	header := []string{"pixel", "status", "flags", "chi2", "iterations", "clamped"}
	for _, p := range run.Parameters {
		header = append(header, "p_"+p.Name)
	}
	for _, p := range run.Parameters {
		header = append(header, p.Name)
	}
	for _, c := range run.Conversions {
		header = append(header, c.Name)
	}
	header = append(header, "kmin", "kd490")
	if err := cw.Write(header); err != nil {
		return err
	}

	num := func(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
	for i, r := range results {
		status := "none"
		if r.Fitted {
			status = r.Fit.Status.String()
		}
		row := []string{
			strconv.Itoa(i), status, r.Flags.String(), num(r.Fit.ChiSquare),
			strconv.Itoa(r.Fit.Iterations), strconv.Itoa(r.Fit.ClampCount),
		}
		for j := range run.Parameters {
			v := "NaN"
			if r.Fitted {
				v = num(r.Fit.Parameters[j])
			}
			row = append(row, v)
		}
		for _, p := range run.Parameters {
			row = append(row, physical(r, p.Name))
		}
		for _, c := range run.Conversions {
			row = append(row, physical(r, c.Name))
		}
		if r.HasAttenuation {
			row = append(row, num(r.Attenuation.KMin), num(r.Attenuation.Kd490))
		} else {
			row = append(row, "NaN", "NaN")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()

	return cw.Error()
}

func physical(r pipeline.Result, name string) string {
	v, ok := r.Physical[name]
	if !ok {
		return "NaN"
	}

	return strconv.FormatFloat(v, 'g', 8, 64)
}
