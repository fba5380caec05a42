// SPDX-License-Identifier: MIT
// Package store - SQLite sink for inversion results.
//
// Tables (schema.sql):
//   - runs: one row per processing run, with the run configuration as YAML.
//   - pixel_results: status, flags and fit statistics per pixel.
//   - pixel_values: fitted parameters (p_<name>) and physical outputs per pixel.
//
// A run's pixels are written in a single transaction.

package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// ErrUnknownRun indicates a run id with no runs row.
var ErrUnknownRun = errors.New("store: unknown run")

// DB is a results database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec(schemaSQL); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("store: schema: %w", err)
	}

	return &DB{db}, nil
}

// StartRun records a run and its configuration.
func (db *DB) StartRun(ctx context.Context, runID string, run *config.Run, polarization bool) error {
	var yml bytes.Buffer
	if err := run.Marshal(&yml); err != nil {
		return fmt.Errorf("store: marshal config: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_unix, polarization, config_yaml) VALUES (?, ?, ?, ?)`,
		runID, time.Now().Unix(), polarization, yml.String())
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	return nil
}

// WriteResults stores results[i] as pixel i of runID.
func (db *DB) WriteResults(ctx context.Context, runID string, run *config.Run, results []pipeline.Result) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.PrepareContext(ctx, `INSERT INTO pixel_results
		(run_id, pixel, fitted, status, flags, chi2, iterations, clamped, kmin, kd490)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer res.Close()
	val, err := tx.PrepareContext(ctx, `INSERT INTO pixel_values (run_id, pixel, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer val.Close()

	for i, r := range results {
		status := "none"
		var chi2, kmin, kd490 sql.NullFloat64
		if r.Fitted {
			status = r.Fit.Status.String()
			chi2 = nullable(r.Fit.ChiSquare)
		}
		if r.HasAttenuation {
			kmin, kd490 = nullable(r.Attenuation.KMin), nullable(r.Attenuation.Kd490)
		}
		if _, err = res.ExecContext(ctx, runID, i, r.Fitted, status, int64(r.Flags), chi2,
			r.Fit.Iterations, r.Fit.ClampCount, kmin, kd490); err != nil {
			return fmt.Errorf("store: pixel %d: %w", i, err)
		}
		if !r.Fitted {
			continue
		}
		for j, p := range run.Parameters {
			if err = insertValue(ctx, val, runID, i, "p_"+p.Name, r.Fit.Parameters[j]); err != nil {
				return err
			}
		}
		names := make([]string, 0, len(r.Physical))
		for name := range r.Physical {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err = insertValue(ctx, val, runID, i, name, r.Physical[name]); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func insertValue(ctx context.Context, stmt *sql.Stmt, runID string, pixel int, name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if _, err := stmt.ExecContext(ctx, runID, pixel, name, v); err != nil {
		return fmt.Errorf("store: pixel %d %s: %w", pixel, name, err)
	}

	return nil
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

// StatusCounts returns the number of pixels per status for runID.
func (db *DB) StatusCounts(ctx context.Context, runID string) (map[string]int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%q: %w", runID, ErrUnknownRun)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM pixel_results WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}

	return out, rows.Err()
}

// Value returns one stored value of a pixel.
func (db *DB) Value(ctx context.Context, runID string, pixel int, name string) (float64, error) {
	var v float64
	err := db.QueryRowContext(ctx,
		`SELECT value FROM pixel_values WHERE run_id = ? AND pixel = ? AND name = ?`, runID, pixel, name).Scan(&v)

	return v, err
}
