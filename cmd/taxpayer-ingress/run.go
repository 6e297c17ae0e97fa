// cmd/taxpayer-ingress/run.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiscaldata/taxpayer-ingress/pkg/pipeline"
)

type runOptions struct {
	root         *rootOptions
	source       string
	batchSize    int
	skipAnalysis bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{root: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full ingest pipeline",
		Long: `Bootstraps the schema, loads the source extract into staging, resolves the
open-ended catalogs, migrates staging into the canonical store, recomputes
the analysis suite, and prints the summary report.

A canonical store that already holds data skips the load stages and goes
straight to analysis and reporting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "",
		"Path to the source extract (overrides SOURCE_CSV_PATH)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0,
		"Rows per insert batch (overrides BATCH_SIZE)")
	cmd.Flags().BoolVar(&opts.skipAnalysis, "skip-analysis", false,
		"Leave the stored analysis results untouched")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()

	app, err := setup(ctx, opts.root)
	if err != nil {
		return err
	}
	defer app.close()

	if opts.source != "" {
		app.cfg.SourcePath = opts.source
	}
	if opts.batchSize > 0 {
		app.cfg.BatchSize = opts.batchSize
	}

	stages, err := pipeline.BuildStages(app.cfg, app.conn)
	if err != nil {
		return err
	}

	p := pipeline.New(stages, pipeline.Options{
		Job:              app.cfg.MetricsJobName,
		MinCanonicalRows: app.cfg.MinCanonicalRows,
		SkipAnalysis:     opts.skipAnalysis,
	})

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.Render())
	return nil
}
