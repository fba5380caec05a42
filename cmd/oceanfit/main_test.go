// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/nn"
	"github.com/katalvlaran/oceanfit/pipeline"
	"github.com/katalvlaran/oceanfit/store"
)

func twoBandRun() *config.Run {
	run := config.Default()
	run.Measurements = 2
	run.FixedInputs = 1
	run.Parameters = []config.Parameter{{Name: config.ParamAPig, Start: -1}}
	run.Conversions = []config.Conversion{{Name: "chl", From: config.ParamAPig, Factor: 21, Exponent: 1.04}}

	return run
}

func TestReadPixels(t *testing.T) {
	t.Parallel()
	const table = `# comment line
refl_1,geom_0,refl_0,sza,vza,azi_diff,ed_0,ed_1
0.02,35,0.01,30,10,90,1.1,1.2
0.03,40,0.015,31,11,91,1.3,1.4
`
	pixels, err := readPixels(strings.NewReader(table), twoBandRun(), true)
	require.NoError(t, err)
	require.Len(t, pixels, 2)
	require.Equal(t, []float64{35}, pixels[0].Geometry)
	require.Equal(t, []float64{0.01, 0.02}, pixels[0].Reflectances)
	require.Equal(t, []float64{1.3, 1.4}, pixels[1].Ed)
	require.Equal(t, 91.0, pixels[1].PolGeometry.AziDiff)

	// without polarization the angle and irradiance columns are optional
	pixels, err = readPixels(strings.NewReader("geom_0,refl_0,refl_1\n1,2,3\n"), twoBandRun(), false)
	require.NoError(t, err)
	require.Nil(t, pixels[0].Ed)
}

func TestReadPixelsRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"empty":          "",
		"missing refl":   "geom_0,refl_0\n1,2\n",
		"missing angles": "geom_0,refl_0,refl_1,ed_0,ed_1\n1,2,3,4,5\n",
		"bad number":     "geom_0,refl_0,refl_1,sza,vza,azi_diff,ed_0,ed_1\n1,x,3,4,5,6,7,8\n",
		"ragged":         "geom_0,refl_0,refl_1,sza,vza,azi_diff,ed_0,ed_1\n1,2\n",
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := readPixels(strings.NewReader(table), twoBandRun(), true)
			require.ErrorIs(t, err, errPixelFile)
		})
	}
}

func TestWriteResults(t *testing.T) {
	t.Parallel()
	run := twoBandRun()
	results := []pipeline.Result{
		{Flags: pipeline.FlagInvalidInput},
		{Flags: pipeline.FlagSkipped},
	}
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, run, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"pixel", "status", "flags", "chi2", "iterations", "clamped", "p_aPig", "aPig", "chl", "kmin", "kd490"}, rows[0])
	require.Equal(t, []string{"0", "none", "invalid_input", "0", "0", "0", "NaN", "NaN", "NaN", "NaN", "NaN"}, rows[1])
	require.Equal(t, "skipped", rows[2][2])
}

func TestPolarizationMode(t *testing.T) {
	t.Parallel()
	run := config.Default()
	run.Polarization.Enabled = true
	for mode, want := range map[string]bool{"on": true, "off": false, "config": true} {
		got, err := polarizationMode(mode, run)
		require.NoError(t, err)
		require.Equal(t, want, got, mode)
	}
	_, err := polarizationMode("maybe", run)
	require.ErrorIs(t, err, config.ErrConfiguration)
}

// TestRunEndToEnd writes a network, a run file and a pixel table, then
// checks the retrieved parameter in the result table.
func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	spec := nn.Spec{
		Planes:    []int{2, 3, 2},
		InputMin:  []float64{0, -3},
		InputMax:  []float64{60, 1},
		OutputMin: []float64{0, 0},
		OutputMax: []float64{0.05, 0.05},
		Biases:    [][]float64{{0.1, -0.2, 0.3}, {0, 0.1}},
		Weights:   [][][]float64{{{0.5, 1.5}, {-0.3, -1.2}, {0.2, 0.8}}, {{1.0, -0.5, 0.7}, {-0.8, 1.1, 0.4}}},
	}
	var net bytes.Buffer
	require.NoError(t, nn.WriteJSON(&net, spec))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fwd.json"), net.Bytes(), 0o600))

	cfg := twoBandRun()
	cfg.Networks.Forward = "fwd.json"
	cfg.Networks.ExactSigmoid = true
	cfg.LogMeasurements = false
	cfg.Variance = 1e-4
	var yml bytes.Buffer
	require.NoError(t, cfg.Marshal(&yml))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.yaml"), yml.Bytes(), 0o600))

	model, err := nn.NewModel(spec, nn.WithExactSigmoid())
	require.NoError(t, err)
	want := math.Log(0.3)
	refl, err := model.Evaluate([]float64{25, want})
	require.NoError(t, err)
	table := "geom_0,refl_0,refl_1\n25," + strconv.FormatFloat(refl[0], 'g', -1, 64) + "," + strconv.FormatFloat(refl[1], 'g', -1, 64) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pixels.csv"), []byte(table), 0o600))

	out := filepath.Join(dir, "out.csv")
	err = run(context.Background(), options{
		configPath: filepath.Join(dir, "run.yaml"),
		pixelsPath: filepath.Join(dir, "pixels.csv"),
		outPath:    out,
		dbPath:     filepath.Join(dir, "results.db"),
		plotPath:   filepath.Join(dir, "history.png"),
		runID:      "e2e",
		polarize:   "off",
	}, zap.NewNop())
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Converged", rows[1][1])
	got, err := strconv.ParseFloat(rows[1][7], 64)
	require.NoError(t, err)
	require.InDelta(t, 0.3, got, 1e-6)

	db, err := store.Open(filepath.Join(dir, "results.db"))
	require.NoError(t, err)
	defer db.Close()
	counts, err := db.StatusCounts(context.Background(), "e2e")
	require.NoError(t, err)
	require.Equal(t, map[string]int{"Converged": 1}, counts)
	aPig, err := db.Value(context.Background(), "e2e", 0, "aPig")
	require.NoError(t, err)
	require.InDelta(t, 0.3, aPig, 1e-6)

	info, err := os.Stat(filepath.Join(dir, "history.png"))
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestRunRequiresPaths(t *testing.T) {
	t.Parallel()
	err := run(context.Background(), options{}, zap.NewNop())
	require.ErrorIs(t, err, config.ErrConfiguration)
}
