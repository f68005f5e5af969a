// Command server runs the EWA request-risk scoring API.
package main

import (
	"context"
	"os"
	"time"

	"github.com/mbd888/ewarisk/internal/circuitbreaker"
	"github.com/mbd888/ewarisk/internal/config"
	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/logging"
	"github.com/mbd888/ewarisk/internal/model"
	"github.com/mbd888/ewarisk/internal/retry"
	"github.com/mbd888/ewarisk/internal/scoring"
	"github.com/mbd888/ewarisk/internal/server"
	"github.com/mbd888/ewarisk/internal/traces"
	"github.com/mbd888/ewarisk/internal/txlog"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting ewarisk",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
		"env", cfg.Env,
	)

	ctx := context.Background()

	shutdownTracing, err := traces.Init(ctx, "ewarisk", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(tctx)
	}()

	c, err := contract.Lookup(cfg.ContractVersion)
	if err != nil {
		logger.Error("unknown feature contract", "error", err)
		os.Exit(1)
	}

	artifact, err := loadModel(cfg)
	if err != nil {
		logger.Error("failed to load model", "error", err, "path", cfg.ModelPath)
		os.Exit(1)
	}
	classifier := model.NewGuarded(artifact, circuitbreaker.New(cfg.BreakerThreshold, 30*time.Second))

	svc, err := scoring.NewService(c, classifier,
		scoring.Thresholds{Medium: cfg.MediumThreshold, High: cfg.HighThreshold}, logger)
	if err != nil {
		logger.Error("model does not serve the configured contract", "error", err)
		os.Exit(1)
	}

	opts := []server.Option{server.WithLogger(logger), server.WithVersion(Version)}
	if cfg.DatabaseURL != "" {
		db, err := txlog.OpenPostgres(ctx, cfg.DatabaseURL, retry.DefaultPolicy(), logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err, "url", server.MaskDSN(cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("using PostgreSQL transaction store", "url", server.MaskDSN(cfg.DatabaseURL))
		opts = append(opts, server.WithDB(db))
	}

	srv, err := server.New(cfg, svc, opts...)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func loadModel(cfg *config.Config) (*model.Artifact, error) {
	if cfg.ModelPath == "" {
		return model.Default(cfg.ContractVersion)
	}
	return model.Load(cfg.ModelPath)
}
