// cmd/taxpayer-ingress/root.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fiscaldata/taxpayer-ingress/pkg/config"
	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
	"github.com/fiscaldata/taxpayer-ingress/pkg/metrics"
	"github.com/fiscaldata/taxpayer-ingress/pkg/metrics/prompush"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	envFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rc := &cobra.Command{
		Use:   "taxpayer-ingress",
		Short: "Loads the taxpayer registry extract into the canonical store",
		Long: `taxpayer-ingress ingests a delimited taxpayer registry extract, normalizes
it against the reference catalogs, migrates it into the canonical store, and
persists the aggregation suite the reporting layer reads.

Configuration comes from environment variables, optionally loaded from a
.env file. DB_DRIVER selects the destination backend (postgres or
sqlserver).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringVar(&opts.envFile, "env-file", "",
		"Load environment variables from this file before reading configuration")

	rc.AddCommand(newRunCommand(opts))
	rc.AddCommand(newReportCommand(opts))
	rc.AddCommand(newAnalyzeCommand(opts))

	rc.SetOut(os.Stdout)
	rc.SetErr(os.Stderr)
	return rc
}

// appContext bundles what a subcommand needs once startup is done.
type appContext struct {
	cfg    *config.Config
	conn   connector.DatabaseConnector
	logger *zap.Logger
}

// setup loads configuration, installs the global logger and the optional
// metrics backend, and waits for the database to become available. A
// database that never turns up is the caller's signal to exit non-zero.
func setup(ctx context.Context, opts *rootOptions) (*appContext, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.envFile, err)
		}
	} else {
		// A .env in the working directory is optional
		_ = godotenv.Load()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if cfg.PushgatewayURL != "" {
		backend, err := prompush.NewBackend(cfg.MetricsJobName, cfg.PushgatewayURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set up metrics push: %w", err)
		}
		metrics.SetBackend(backend)
		logger.Info("Metrics push enabled",
			zap.String("gateway", cfg.PushgatewayURL),
			zap.String("job", cfg.MetricsJobName))
	}

	factory := connector.NewConnectorFactory(cfg, logger)
	conn, err := connector.WaitForDatabase(ctx, factory.Create,
		cfg.ConnectTimeout, cfg.ConnectRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("database is not available: %w", err)
	}

	if err := conn.Validate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database connection failed validation: %w", err)
	}

	return &appContext{cfg: cfg, conn: conn, logger: logger}, nil
}

// close pushes any recorded metrics and releases the connection.
func (a *appContext) close() {
	if err := metrics.Flush(); err != nil {
		a.logger.Warn("Failed to push metrics", zap.Error(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("Failed to close database connection", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// buildLogger constructs the process logger from LOG_LEVEL and LOG_FORMAT.
func buildLogger(level, format string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
