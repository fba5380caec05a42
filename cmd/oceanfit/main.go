// SPDX-License-Identifier: MIT
// Command oceanfit inverts a table of pixel reflectances.
//
// Usage:
//
//	oceanfit --config run.yaml --pixels pixels.csv [--out results.csv] [--db results.db] [--plot history.png]
//	oceanfit --print-config > run.yaml
//
// The pixel table has a header row with geom_<i> and refl_<i> columns and,
// when polarization correction is on, sza, vza, azi_diff and ed_<i>.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/katalvlaran/oceanfit/config"
	"github.com/katalvlaran/oceanfit/nn"
	"github.com/katalvlaran/oceanfit/pipeline"
	"github.com/katalvlaran/oceanfit/report"
	"github.com/katalvlaran/oceanfit/store"
)

type options struct {
	configPath  string
	pixelsPath  string
	outPath     string
	dbPath      string
	plotPath    string
	plotLines   int
	runID       string
	workers     int
	logLevel    string
	polarize    string
	printConfig bool
}

func main() {
	var opts options
	fs := flag.NewFlagSet("oceanfit", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "run configuration (YAML)")
	fs.StringVar(&opts.pixelsPath, "pixels", "", "pixel table (CSV)")
	fs.StringVarP(&opts.outPath, "out", "o", "-", "result table (CSV), - for stdout")
	fs.StringVar(&opts.dbPath, "db", "", "also store results in this SQLite database")
	fs.StringVar(&opts.plotPath, "plot", "", "write a chi-square convergence plot (.png, .svg, .pdf); enables history")
	fs.StringVar(&opts.runID, "run-id", "", "identifier stored with the results (default: random UUID)")
	fs.IntVar(&opts.plotLines, "plot-lines", 50, "pixels drawn in the convergence plot (0: all)")
	fs.IntVar(&opts.workers, "workers", 0, "parallel fits (0: from config, else one per CPU)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&opts.polarize, "polarization", "config", "polarization correction: on, off or config")
	fs.BoolVar(&opts.printConfig, "print-config", false, "print the default configuration and exit")
	_ = fs.Parse(os.Args[1:])

	if opts.printConfig {
		if err := config.Default().Marshal(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("oceanfit failed", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	if opts.configPath == "" || opts.pixelsPath == "" {
		return fmt.Errorf("--config and --pixels are required: %w", config.ErrConfiguration)
	}
	runCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	polarization, err := polarizationMode(opts.polarize, runCfg)
	if err != nil {
		return err
	}
	if opts.plotPath != "" {
		runCfg.Fitter.History = true
	}
	runID := opts.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(zap.String("run", runID))

	var netOpts []nn.Option
	if runCfg.Networks.ExactSigmoid {
		netOpts = append(netOpts, nn.WithExactSigmoid())
	}
	fwd, err := nn.LoadFile(runCfg.Networks.Forward, netOpts...)
	if err != nil {
		return fmt.Errorf("forward network: %w", err)
	}
	var pol nn.Evaluator
	if runCfg.Networks.Polarization != "" {
		polNet, err := nn.LoadFile(runCfg.Networks.Polarization, netOpts...)
		if err != nil {
			return fmt.Errorf("polarization network: %w", err)
		}
		pol = polNet
	}
	logger.Info("networks loaded",
		zap.String("forward", runCfg.Networks.Forward),
		zap.Ints("planes", fwd.Planes()),
		zap.Bool("polarization", polarization))

	invOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if opts.workers > 0 {
		invOpts = append(invOpts, pipeline.WithWorkers(opts.workers))
	}
	inv, err := pipeline.New(runCfg, fwd, pol, invOpts...)
	if err != nil {
		return err
	}

	in, err := os.Open(opts.pixelsPath)
	if err != nil {
		return err
	}
	defer in.Close()
	pixels, err := readPixels(in, runCfg, polarization)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.pixelsPath, err)
	}

	results, sum, err := inv.InvertBatch(ctx, pixels, polarization)
	if err != nil {
		return err
	}
	logger.Info("inversion summary",
		zap.Int("pixels", sum.Pixels),
		zap.Int("converged", sum.Converged),
		zap.Int("clamped", sum.Clamped),
		zap.Int("chi2_high", sum.ChiSquareHigh),
		zap.Int("iterations", sum.Iterations))

	if err := writeOut(opts.outPath, runCfg, results); err != nil {
		return err
	}
	if opts.dbPath != "" {
		if err := persist(ctx, opts.dbPath, runID, runCfg, polarization, results); err != nil {
			return err
		}
		logger.Info("results stored", zap.String("db", opts.dbPath))
	}
	if opts.plotPath != "" {
		if err := report.SaveChiSquareHistory(opts.plotPath, results, opts.plotLines); err != nil {
			return err
		}
		logger.Info("convergence plot written", zap.String("path", opts.plotPath))
	}

	return nil
}

func persist(ctx context.Context, path, runID string, run *config.Run, polarization bool, results []pipeline.Result) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.StartRun(ctx, runID, run, polarization); err != nil {
		return err
	}

	return db.WriteResults(ctx, runID, run, results)
}

func polarizationMode(mode string, run *config.Run) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "config":
		return run.Polarization.Enabled, nil
	default:
		return false, fmt.Errorf("--polarization %q: %w", mode, config.ErrConfiguration)
	}
}

func writeOut(path string, run *config.Run, results []pipeline.Result) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return writeResults(w, run, results)
}
