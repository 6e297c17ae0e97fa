// pkg/pipeline/stages.go
package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/analysis"
	"github.com/fiscaldata/taxpayer-ingress/pkg/catalog"
	"github.com/fiscaldata/taxpayer-ingress/pkg/config"
	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
	"github.com/fiscaldata/taxpayer-ingress/pkg/migrate"
	"github.com/fiscaldata/taxpayer-ingress/pkg/report"
	"github.com/fiscaldata/taxpayer-ingress/pkg/schema"
	"github.com/fiscaldata/taxpayer-ingress/pkg/staging"
)

// ExtractLoader opens the source extract and streams it into the staging
// table. The file is opened lazily at Load time so the pipeline can bootstrap
// the schema first; a missing file fails the load stage.
type ExtractLoader struct {
	path      string
	delimiter rune
	loader    *staging.Loader
	logger    *zap.Logger
}

// NewExtractLoader builds the staging stage over a file path.
func NewExtractLoader(path string, delimiter rune, loader *staging.Loader) *ExtractLoader {
	return &ExtractLoader{
		path:      path,
		delimiter: delimiter,
		loader:    loader,
		logger:    zap.L().Named("extract-loader"),
	}
}

// Load opens the extract and runs the staging load over it.
func (e *ExtractLoader) Load(ctx context.Context) (*staging.LoadResult, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source extract %s: %w", e.path, err)
	}
	defer f.Close()

	e.logger.Info("Reading source extract", zap.String("path", e.path))
	reader, err := staging.NewReader(f, e.delimiter, e.logger)
	if err != nil {
		return nil, err
	}
	return e.loader.Run(ctx, reader)
}

// StagingMigration feeds the staging table through the migration engine.
type StagingMigration struct {
	store  *staging.SQLStore
	engine *migrate.Engine
}

// NewStagingMigration builds the migration stage.
func NewStagingMigration(store *staging.SQLStore, engine *migrate.Engine) *StagingMigration {
	return &StagingMigration{store: store, engine: engine}
}

// Run scans the staging table and migrates every row through the engine.
func (m *StagingMigration) Run(ctx context.Context) (*migrate.MigrationResult, error) {
	scanner, err := m.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan staging rows: %w", err)
	}
	defer scanner.Close()

	return m.engine.Run(ctx, scanner)
}

// BuildStages wires the concrete stages from the configuration and an
// established connection. The catalog seed file is read here since both the
// bootstrapper and the resolver need it.
func BuildStages(cfg *config.Config, conn connector.DatabaseConnector) (Stages, error) {
	seeds, err := catalog.LoadSeeds(cfg.CatalogSeedPath)
	if err != nil {
		return Stages{}, fmt.Errorf("failed to load catalog seeds: %w", err)
	}

	timeout := cfg.QueryTimeout()
	stagingStore := staging.NewSQLStore(conn, timeout)
	canonical := migrate.NewSQLStore(conn, timeout)
	engine := migrate.NewEngine(canonical, migrate.Options{
		BatchSize:        cfg.BatchSize,
		MinBusinessID:    cfg.MinBusinessID,
		ProgressInterval: cfg.ProgressInterval,
	})

	return Stages{
		Bootstrap: schema.NewBootstrapper(conn, seeds, timeout),
		Canonical: canonical,
		Staging: NewExtractLoader(cfg.SourcePath, cfg.Delimiter(),
			staging.NewLoader(stagingStore, cfg.BatchSize, cfg.ProgressInterval)),
		Catalogs:  catalog.NewResolver(conn, seeds, timeout),
		Migration: NewStagingMigration(stagingStore, engine),
		Analysis: analysis.NewSuite(
			analysis.NewSQLSource(conn, timeout),
			analysis.NewSQLResultStore(conn, timeout)),
		Report: report.NewCollector(conn, timeout),
	}, nil
}
