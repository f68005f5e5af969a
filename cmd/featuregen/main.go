// Command featuregen runs the offline side of the pipeline: it generates
// synthetic transaction logs, derives contract-conforming training tables,
// and exports the built-in model artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbd888/ewarisk/internal/config"
	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/dataset"
	"github.com/mbd888/ewarisk/internal/features"
	"github.com/mbd888/ewarisk/internal/logging"
	"github.com/mbd888/ewarisk/internal/model"
	"github.com/mbd888/ewarisk/internal/retry"
	"github.com/mbd888/ewarisk/internal/synth"
	"github.com/mbd888/ewarisk/internal/traces"
	"github.com/mbd888/ewarisk/internal/txlog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := traces.Init(ctx, "ewarisk-featuregen", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	args := os.Args[2:]
	switch os.Args[1] {
	case "synth":
		err = runSynth(ctx, cfg, logger, args)
	case "dataset":
		err = runDataset(ctx, cfg, logger, args, os.Stdout)
	case "run":
		err = runAll(ctx, cfg, logger, args, os.Stdout)
	case "model":
		err = runModel(logger, args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("featuregen failed", "command", os.Args[1], "error", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("EWA risk feature generator")
	fmt.Println("\nUsage:")
	fmt.Println("  featuregen <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  synth     Generate synthetic profiles and transactions into DATABASE_URL")
	fmt.Println("  dataset   Derive the training table for a contract from DATABASE_URL")
	fmt.Println("  run       Generate synthetic data in memory and derive the training table")
	fmt.Println("  model     Write the built-in model artifact for a contract")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'featuregen <command> -h' for more information on a command.")
}

// newLogger writes logs to stderr. Stdout is reserved for the dataset.
func newLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	return logging.NewWithWriter(stderr, cfg.LogLevel, cfg.LogFormat)
}

// synthFlags registers the generator options on fs.
func synthFlags(fs *flag.FlagSet) func() (synth.Config, error) {
	def := synth.DefaultConfig()
	seed := fs.Uint64("seed", def.Seed, "random seed")
	employees := fs.Int("employees", def.Employees, "number of employees")
	days := fs.Int("days", def.Days, "days of history per employee")
	start := fs.String("start", def.Start.Format(time.DateOnly), "first simulated day (YYYY-MM-DD)")

	return func() (synth.Config, error) {
		t, err := time.Parse(time.DateOnly, *start)
		if err != nil {
			return synth.Config{}, fmt.Errorf("invalid -start: %w", err)
		}
		return synth.Config{Seed: *seed, Employees: *employees, Days: *days, Start: t}, nil
	}
}

type datasetOptions struct {
	contract string
	out      string
	strict   bool
	workers  int
}

func datasetFlags(fs *flag.FlagSet, cfg *config.Config) *datasetOptions {
	o := &datasetOptions{}
	fs.StringVar(&o.contract, "contract", cfg.ContractVersion, "feature contract version")
	fs.StringVar(&o.out, "out", "-", "output CSV path, - for stdout")
	fs.BoolVar(&o.strict, "strict", false, "fail on employees with insufficient history instead of skipping them")
	fs.IntVar(&o.workers, "workers", cfg.DatasetWorkers, "parallel derivations")
	return o
}

func runSynth(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	synthConfig := synthFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sc, err := synthConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ds, err := synth.Generate(sc)
	if err != nil {
		return err
	}
	if err := synth.Persist(ctx, store, ds); err != nil {
		return err
	}
	logger.Info("synthetic data stored",
		"employees", len(ds.Profiles),
		"transactions", len(ds.Transactions),
		"seed", sc.Seed,
	)
	return nil
}

func runDataset(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("dataset", flag.ContinueOnError)
	opts := datasetFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = writeDataset(ctx, store, opts, logger, stdout)
	return err
}

func runAll(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	synthConfig := synthFlags(fs)
	opts := datasetFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	sc, err := synthConfig()
	if err != nil {
		return err
	}

	ds, err := synth.Generate(sc)
	if err != nil {
		return err
	}
	store := txlog.NewMemoryStore()
	if err := synth.Persist(ctx, store, ds); err != nil {
		return err
	}
	_, err = writeDataset(ctx, store, opts, logger, stdout)
	return err
}

func runModel(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("model", flag.ContinueOnError)
	version := fs.String("contract", contract.WithdrawalV1, "feature contract version")
	out := fs.String("out", "", "artifact path (.json, .msgpack or .mpk)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}

	a, err := model.Default(*version)
	if err != nil {
		return err
	}
	if err := model.Save(a, *out); err != nil {
		return err
	}
	logger.Info("model artifact written", "model", a.Name(), "contract", a.ContractVersion(), "path", *out)
	return nil
}

func writeDataset(ctx context.Context, store txlog.Store, opts *datasetOptions, logger *slog.Logger, stdout io.Writer) (*dataset.Report, error) {
	c, err := contract.Lookup(opts.contract)
	if err != nil {
		return nil, err
	}
	builder, err := features.NewBuilder(c)
	if err != nil {
		return nil, err
	}
	gen := &dataset.Generator{
		Store:   store,
		Builder: builder,
		Workers: opts.workers,
		Strict:  opts.strict,
		Logger:  logger,
	}
	rows, report, err := gen.Generate(ctx)
	if err != nil {
		return nil, err
	}

	if opts.out == "-" {
		if err := dataset.WriteCSV(stdout, c, rows); err != nil {
			return nil, fmt.Errorf("write dataset: %w", err)
		}
	} else if err := writeFile(opts.out, c, rows); err != nil {
		return nil, err
	}
	logger.Info("dataset written",
		"run_id", report.RunID,
		"contract", report.Contract,
		"rows", report.Rows,
		"positives", report.Positives,
		"skipped", report.Skipped,
		"out", opts.out,
	)
	return report, nil
}

func writeFile(path string, c *contract.Contract, rows []dataset.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := dataset.WriteCSV(f, c, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (txlog.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required; use 'featuregen run' for an in-memory pipeline")
	}
	db, err := txlog.OpenPostgres(ctx, cfg.DatabaseURL, retry.DefaultPolicy(), logger)
	if err != nil {
		return nil, nil, err
	}
	return txlog.NewPostgresStore(db), func() { _ = db.Close() }, nil
}
