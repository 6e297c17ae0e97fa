// pkg/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/catalog"
	"github.com/fiscaldata/taxpayer-ingress/pkg/metrics"
	"github.com/fiscaldata/taxpayer-ingress/pkg/migrate"
	"github.com/fiscaldata/taxpayer-ingress/pkg/report"
	"github.com/fiscaldata/taxpayer-ingress/pkg/staging"
)

// State tracks how far a pipeline run has progressed.
type State string

const (
	StateNotStarted       State = "NOT_STARTED"
	StateStagingLoaded    State = "STAGING_LOADED"
	StateCatalogsResolved State = "CATALOGS_RESOLVED"
	StateMigrated         State = "MIGRATED"
	StateReported         State = "REPORTED"
)

// SchemaBootstrapper prepares tables and seed rows before any load.
type SchemaBootstrapper interface {
	Run(ctx context.Context) error
}

// CanonicalCounter reports how many rows the canonical store already holds.
type CanonicalCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StagingLoader moves the source extract into the staging table.
type StagingLoader interface {
	Load(ctx context.Context) (*staging.LoadResult, error)
}

// CatalogResolver fills the open-ended catalogs from staging and checks that
// migration will find every value it needs.
type CatalogResolver interface {
	Run(ctx context.Context) (*catalog.Result, error)
	Verify(ctx context.Context) error
}

// MigrationRunner moves staging rows into the canonical store.
type MigrationRunner interface {
	Run(ctx context.Context) (*migrate.MigrationResult, error)
}

// AnalysisRunner computes and persists the aggregation suite.
type AnalysisRunner interface {
	Run(ctx context.Context) error
}

// SummaryCollector gathers the read-only figures for the final report.
type SummaryCollector interface {
	Collect(ctx context.Context) (*report.Summary, error)
}

// Stages holds every collaborator a run needs, in execution order.
type Stages struct {
	Bootstrap SchemaBootstrapper
	Canonical CanonicalCounter
	Staging   StagingLoader
	Catalogs  CatalogResolver
	Migration MigrationRunner
	Analysis  AnalysisRunner
	Report    SummaryCollector
}

// Options carries the per-run knobs.
type Options struct {
	// Job labels the run's metrics. Empty falls back to "taxpayer-ingress".
	Job string

	// MinCanonicalRows is the re-entrancy guard: when the canonical store
	// already holds at least this many rows the load stages are skipped and
	// the run proceeds straight to analysis and reporting. Non-positive
	// falls back to 100.
	MinCanonicalRows int

	// SkipAnalysis leaves the stored analysis results untouched.
	SkipAnalysis bool
}

// RunSummary is the outcome of one pipeline run. Stage results stay nil for
// stages that were skipped or never reached.
type RunSummary struct {
	RunID       string
	FinalState  State
	SkippedLoad bool

	Staging   *staging.LoadResult
	Catalogs  *catalog.Result
	Migration *migrate.MigrationResult

	AnalysisSkipped bool
	AnalysisFailed  bool

	Report *report.Summary

	StartTime time.Time
	Duration  time.Duration
}

// Pipeline drives one ingest run through its stages. A Pipeline instance is
// good for a single Run: clear-then-rebuild semantics are not safe under
// concurrent execution, and the row-count guard is the only defense against
// overlapping runs.
type Pipeline struct {
	stages    Stages
	opts      Options
	state     State
	stateLock sync.RWMutex
	logger    *zap.Logger
}

// New creates a pipeline over the given stages.
func New(stages Stages, opts Options) *Pipeline {
	if opts.Job == "" {
		opts.Job = "taxpayer-ingress"
	}
	if opts.MinCanonicalRows <= 0 {
		opts.MinCanonicalRows = 100
	}
	return &Pipeline{
		stages: stages,
		opts:   opts,
		state:  StateNotStarted,
		logger: zap.L().Named("pipeline"),
	}
}

// State returns the current run state.
func (p *Pipeline) State() State {
	p.stateLock.RLock()
	defer p.stateLock.RUnlock()
	return p.state
}

// setState updates the run state
func (p *Pipeline) setState(state State) {
	p.stateLock.Lock()
	defer p.stateLock.Unlock()

	prevState := p.state
	p.state = state

	if prevState != state {
		p.logger.Info("Pipeline state changed",
			zap.String("from", string(prevState)),
			zap.String("to", string(state)))
	}
}

// Run executes the pipeline: bootstrap, the guarded load stages, the
// analysis suite, and the summary report. Bootstrap failures, load-stage
// failures, and an uncollectable report end the run with an error; analysis
// failures and catalog verification gaps are logged and the run continues.
// The returned summary is non-nil either way and reflects how far the run
// got.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}
	p.logger.Info("Starting pipeline run",
		zap.String("run_id", summary.RunID),
		zap.String("job", p.opts.Job))

	started := time.Now()
	err := p.stages.Bootstrap.Run(ctx)
	metrics.RecordStep(p.opts.Job, "schema-bootstrap", err, time.Since(started))
	if err != nil {
		return p.fail(summary, fmt.Errorf("schema bootstrap failed: %w", err))
	}

	// Re-entrancy guard: a populated canonical store means a prior run
	// completed its load, so clearing and rebuilding would only repeat work
	count, err := p.stages.Canonical.Count(ctx)
	if err != nil {
		return p.fail(summary, fmt.Errorf("failed to count canonical rows: %w", err))
	}
	if count >= int64(p.opts.MinCanonicalRows) {
		summary.SkippedLoad = true
		p.logger.Info("Canonical store already populated, skipping load stages",
			zap.Int64("canonical_rows", count),
			zap.Int("threshold", p.opts.MinCanonicalRows))
	} else if err := p.runLoadStages(ctx, summary); err != nil {
		return p.fail(summary, err)
	}

	if p.opts.SkipAnalysis {
		summary.AnalysisSkipped = true
		p.logger.Info("Analysis suite disabled for this run")
	} else {
		started = time.Now()
		err = p.stages.Analysis.Run(ctx)
		metrics.RecordStep(p.opts.Job, "analysis", err, time.Since(started))
		if err != nil {
			summary.AnalysisFailed = true
			p.logger.Error("Analysis suite failed, continuing to report",
				zap.Error(err))
		}
	}

	started = time.Now()
	rep, err := p.stages.Report.Collect(ctx)
	metrics.RecordStep(p.opts.Job, "report", err, time.Since(started))
	if err != nil {
		return p.fail(summary, fmt.Errorf("failed to collect run summary: %w", err))
	}
	summary.Report = rep
	p.setState(StateReported)

	summary.FinalState = p.State()
	summary.Duration = time.Since(summary.StartTime)
	p.logger.Info("Pipeline run complete",
		zap.String("run_id", summary.RunID),
		zap.String("final_state", string(summary.FinalState)),
		zap.Bool("skipped_load", summary.SkippedLoad),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// runLoadStages executes staging load, catalog resolution, and migration,
// advancing the run state after each.
func (p *Pipeline) runLoadStages(ctx context.Context, summary *RunSummary) error {
	started := time.Now()
	loadRes, err := p.stages.Staging.Load(ctx)
	metrics.RecordStep(p.opts.Job, "staging-load", err, time.Since(started))
	if loadRes != nil {
		summary.Staging = loadRes
		metrics.RecordRows(p.opts.Job, "accepted", loadRes.Accepted)
		metrics.RecordRows(p.opts.Job, "dropped", loadRes.Dropped)
	}
	if err != nil {
		return fmt.Errorf("staging load failed: %w", err)
	}
	p.setState(StateStagingLoaded)

	started = time.Now()
	catRes, err := p.stages.Catalogs.Run(ctx)
	metrics.RecordStep(p.opts.Job, "catalog-resolve", err, time.Since(started))
	if err != nil {
		return fmt.Errorf("catalog resolution failed: %w", err)
	}
	summary.Catalogs = catRes
	metrics.RecordRows(p.opts.Job, "catalog_inserted",
		catRes.Activities+catRes.Locations+catRes.CompanyTypes)

	// A verification gap degrades migration to row-level discards rather
	// than stopping the run
	if err := p.stages.Catalogs.Verify(ctx); err != nil {
		p.logger.Warn("Catalog verification reported gaps", zap.Error(err))
	}
	p.setState(StateCatalogsResolved)

	started = time.Now()
	migRes, err := p.stages.Migration.Run(ctx)
	metrics.RecordStep(p.opts.Job, "migration", err, time.Since(started))
	if migRes != nil {
		summary.Migration = migRes
		metrics.RecordRows(p.opts.Job, "inserted", migRes.Inserted)
		metrics.RecordRows(p.opts.Job, "discarded", migRes.Discarded)
		metrics.RecordRows(p.opts.Job, "skipped", migRes.SkippedRows)
		metrics.RecordBatchFallbacks(p.opts.Job, int64(migRes.BatchFallbacks))
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	p.setState(StateMigrated)

	return nil
}

// fail finalizes the summary for an aborted run.
func (p *Pipeline) fail(summary *RunSummary, err error) (*RunSummary, error) {
	summary.FinalState = p.State()
	summary.Duration = time.Since(summary.StartTime)
	p.logger.Error("Pipeline run failed",
		zap.String("run_id", summary.RunID),
		zap.String("state", string(summary.FinalState)),
		zap.Error(err))
	return summary, err
}
