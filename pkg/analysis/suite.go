// pkg/analysis/suite.go

package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

// SnapshotSource loads the canonical rows the analyses aggregate over.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]model.TaxpayerRecord, error)
}

// ResultStore persists one analysis worth of rows, replacing whatever a
// previous run stored under the same name.
type ResultStore interface {
	Replace(ctx context.Context, name string, rows []model.AnalysisRow) error
}

// analysis pairs a persisted name with the function that computes it.
type analysis struct {
	name string
	run  func([]model.TaxpayerRecord) []model.AnalysisRow
}

// analyses fixes the execution order. The names are the replace keys in the
// results table; renaming one orphans the rows stored under the old name.
var analyses = []analysis{
	{"Fiscal Health - By Status", byStatus},
	{"Fiscal Health - Debt Statistics", debtStatistics},
	{"Geography - By Location", byLocation},
	{"Structure - By Size", bySize},
	{"Structure - By Company Type", byCompanyType},
	{"Economic Sectors", economicSectors},
	{"Demographics", demographics},
	{"Data Quality", dataQuality},
}

// Suite computes every analysis over a single in-memory snapshot of the
// canonical table, read once and shared across all of them.
type Suite struct {
	source SnapshotSource
	store  ResultStore
	logger *zap.Logger
}

func NewSuite(source SnapshotSource, store ResultStore) *Suite {
	return &Suite{
		source: source,
		store:  store,
		logger: zap.L().Named("analysis-suite"),
	}
}

// Run loads the snapshot, then computes and persists each analysis in order.
// The first failure aborts the rest; the caller decides whether that fails
// the whole run.
func (s *Suite) Run(ctx context.Context) error {
	started := time.Now()

	rows, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load canonical snapshot: %w", err)
	}
	s.logger.Info("Canonical snapshot loaded", zap.Int("rows", len(rows)))

	for _, a := range analyses {
		results := a.run(rows)
		if err := s.store.Replace(ctx, a.name, results); err != nil {
			return fmt.Errorf("failed to persist analysis %q: %w", a.name, err)
		}
		s.logger.Info("Analysis persisted",
			zap.String("analysis", a.name),
			zap.Int("rows", len(results)))
	}

	s.logger.Info("Analysis suite complete",
		zap.Int("analyses", len(analyses)),
		zap.Duration("duration", time.Since(started)))
	return nil
}
