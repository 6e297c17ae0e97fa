package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
	"github.com/fiscaldata/taxpayer-ingress/pkg/normalizer"
)

// Pipeline stage labels carried on error records
const (
	StageBootstrap = "bootstrap"
	StageStaging   = "staging"
	StageCatalogs  = "catalogs"
	StageMigration = "migration"
)

// DemoBusinessID identifies the fixed demonstration taxpayer that every run
// guarantees is present.
const DemoBusinessID int64 = 611077

// DemoRecord returns the demonstration taxpayer. Downstream consumers rely
// on this exact row existing, so the engine inserts it when the source
// extract does not carry it.
func DemoRecord() model.TaxpayerRecord {
	age := 0
	return model.TaxpayerRecord{
		BusinessID:        DemoBusinessID,
		ActivityCode:      "75113",
		CompanyType:       "A",
		SizeCode:          "C",
		LocationCode:      "CHIMBOTE",
		TaxStatus:         "ACTIVO",
		DomicileCondition: "HABIDO",
		Sex:               "ND",
		Age:               &age,
		DebtAmount:        0,
		RawDomicileFlag:   "HABIDO",
	}
}

// Options configure a migration run
type Options struct {
	BatchSize        int
	MinBusinessID    int64 // rows below this business ID are not migrated
	ProgressInterval int
}

// Engine rebuilds the canonical table from staging rows: it clears the
// table, then filters, normalizes, deduplicates and batch-inserts the
// stream, keeping the first occurrence of each business ID.
type Engine struct {
	store   CanonicalStore
	handler *ErrorHandler
	logger  *zap.Logger
	opts    Options
}

// NewEngine creates a migration engine over a canonical store
func NewEngine(store CanonicalStore, opts Options) *Engine {
	logger := zap.L().Named("migration-engine")

	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 10000
	}

	return &Engine{
		store:   store,
		handler: NewErrorHandler(logger),
		logger:  logger,
		opts:    opts,
	}
}

// Handler exposes the run's error tally for reporting
func (e *Engine) Handler() *ErrorHandler {
	return e.handler
}

// Run migrates every candidate staging row into the canonical store and
// returns the (inserted, discarded) tally. Row losses never fail the run;
// an unreadable source, an unclearable store or a lost connection do.
func (e *Engine) Run(ctx context.Context, source RecordSource) (*MigrationResult, error) {
	result := NewMigrationResult()
	e.logger.Info("Starting migration",
		zap.String("run_id", result.RunID),
		zap.Int("batch_size", e.opts.BatchSize),
		zap.Int64("min_business_id", e.opts.MinBusinessID))

	// Full rebuild: the canonical table only ever holds the latest run
	if err := e.store.Clear(ctx); err != nil {
		return result, fmt.Errorf("failed to clear canonical store: %w", err)
	}

	seen := make(map[int64]struct{})
	batch := make([]model.TaxpayerRecord, 0, e.opts.BatchSize)
	var lastLogged int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, discarded, fellBack, err := FlushWithFallback(ctx, e.store, batch, e.handler)
		result.Inserted += inserted
		result.Discarded += discarded
		if fellBack {
			result.BatchFallbacks++
		}
		batch = batch[:0]
		if err != nil {
			return err
		}

		if result.Inserted-lastLogged >= int64(e.opts.ProgressInterval) {
			e.logger.Info("Migration progress",
				zap.Int64("inserted", result.Inserted),
				zap.Int64("discarded", result.Discarded))
			lastLogged = result.Inserted
		}
		return nil
	}

	for source.Next() {
		rec := source.Record()

		if !e.isCandidate(rec) {
			result.SkippedRows++
			continue
		}
		result.CandidateRows++

		// First occurrence wins; later duplicates are discarded
		if _, dup := seen[rec.BusinessID]; dup {
			result.Discarded++
			continue
		}
		seen[rec.BusinessID] = struct{}{}

		batch = append(batch, Normalize(rec))
		if len(batch) >= e.opts.BatchSize {
			if err := flush(); err != nil {
				return result, fmt.Errorf("migration aborted: %w", err)
			}
		}
	}
	if err := source.Err(); err != nil {
		return result, fmt.Errorf("failed reading staging rows: %w", err)
	}
	if err := flush(); err != nil {
		return result, fmt.Errorf("migration aborted: %w", err)
	}

	e.ensureDemoRecord(ctx, result)

	result.Complete()
	e.logger.Info("Migration finished",
		zap.String("run_id", result.RunID),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("discarded", result.Discarded),
		zap.Int64("skipped", result.SkippedRows),
		zap.Int("batch_fallbacks", result.BatchFallbacks),
		zap.Duration("duration", result.Duration),
		zap.Float64("rows_per_second", result.Throughput))

	return result, nil
}

// isCandidate applies the migration filter: a sane business ID and all six
// dimension fields present
func (e *Engine) isCandidate(rec model.StagingRecord) bool {
	if rec.BusinessID < e.opts.MinBusinessID {
		return false
	}
	return rec.ActivityCode != nil &&
		rec.CompanyTypeRaw != nil &&
		rec.SizeCodeRaw != nil &&
		rec.LocationCode != nil &&
		rec.TaxStatusRaw != nil &&
		rec.DomicileFlagRaw != nil
}

// Normalize maps a candidate staging row onto its canonical form: the five
// dirty fields go through their normalizers, negative debt clamps to zero,
// and the raw domicile flag is preserved for audit.
func Normalize(rec model.StagingRecord) model.TaxpayerRecord {
	debt := rec.DebtAmount
	if debt < 0 {
		debt = 0
	}

	return model.TaxpayerRecord{
		BusinessID:        rec.BusinessID,
		ActivityCode:      strValue(rec.ActivityCode),
		CompanyType:       normalizer.CompanyType(strValue(rec.CompanyTypeRaw)),
		SizeCode:          normalizer.SizeClass(strValue(rec.SizeCodeRaw)),
		LocationCode:      strValue(rec.LocationCode),
		TaxStatus:         normalizer.TaxStatus(strValue(rec.TaxStatusRaw)),
		DomicileCondition: normalizer.DomicileCondition(strValue(rec.DomicileFlagRaw)),
		Sex:               normalizer.Sex(strValue(rec.SexRaw)),
		Age:               rec.Age,
		DebtAmount:        debt,
		RawDomicileFlag:   strValue(rec.DomicileFlagRaw),
	}
}

// ensureDemoRecord inserts the demonstration taxpayer when absent. Failure
// is logged and tallied but never fails the run.
func (e *Engine) ensureDemoRecord(ctx context.Context, result *MigrationResult) {
	exists, err := e.store.HasRecord(ctx, DemoBusinessID)
	if err != nil {
		e.logger.Warn("Could not check for demonstration record", zap.Error(err))
		return
	}
	if exists {
		result.DemoEnsured = true
		return
	}

	if err := e.store.InsertRow(ctx, DemoRecord()); err != nil {
		e.logger.Warn("Could not insert demonstration record",
			zap.Int64("business_id", DemoBusinessID),
			zap.Error(err))
		e.handler.RecordError(
			NewErrorRecord(err, ErrorCategoryRowLevel).
				WithStage(StageMigration).
				WithBusinessID(DemoBusinessID))
		return
	}

	result.DemoEnsured = true
	e.logger.Info("Inserted demonstration record",
		zap.Int64("business_id", DemoBusinessID))
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
