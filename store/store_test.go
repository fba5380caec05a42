// SPDX-License-Identifier: MIT
package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/kd"
	"github.com/katalvlaran/oceanfit/lm"
	"github.com/katalvlaran/oceanfit/pipeline"
	"github.com/katalvlaran/oceanfit/store"
)

func TestWriteAndQueryResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	run := config.Default()
	runID := uuid.NewString()
	require.NoError(t, db.StartRun(ctx, runID, run, true))

	results := []pipeline.Result{
		{
			Fitted: true,
			Flags:  pipeline.FlagConverged,
			Fit: lm.FitResult{
				Parameters: []float64{0.4, -1.6, -2.3},
				ChiSquare:  1.25,
				Iterations: 5,
				Status:     lm.StatusConverged,
			},
			Physical:       map[string]float64{config.ParamAPig: 0.2, "chl": 3.9},
			Attenuation:    kd.Attenuation{KMin: 0.3, Kd490: 0.4},
			HasAttenuation: true,
		},
		{Flags: pipeline.FlagInvalidInput},
		{
			Fitted: true,
			Flags:  pipeline.FlagDiverged,
			Fit:    lm.FitResult{Parameters: []float64{0, 0, 0}, Status: lm.StatusDiverged},
		},
	}
	require.NoError(t, db.WriteResults(ctx, runID, run, results))

	counts, err := db.StatusCounts(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"Converged": 1, "none": 1, "Diverged": 1}, counts)

	v, err := db.Value(ctx, runID, 0, "p_"+config.ParamAPig)
	require.NoError(t, err)
	require.Equal(t, -1.6, v)
	v, err = db.Value(ctx, runID, 0, "chl")
	require.NoError(t, err)
	require.Equal(t, 3.9, v)

	_, err = db.Value(ctx, runID, 1, "chl")
	require.ErrorIs(t, err, sql.ErrNoRows)

	// writing the same pixels twice violates the primary key and rolls back
	require.Error(t, db.WriteResults(ctx, runID, run, results[:1]))
	counts, err = db.StatusCounts(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, 1, counts["Converged"])
}

func TestStatusCountsUnknownRun(t *testing.T) {
	t.Parallel()
	db, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.StatusCounts(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrUnknownRun)
}
