// pkg/staging/loader.go
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

// Store is the slice of the staging table the loader writes through.
type Store interface {
	// Clear removes every staging row
	Clear(ctx context.Context) error

	// InsertBatch writes all records in one transaction or none of them
	InsertBatch(ctx context.Context, records []model.StagingRecord) error
}

// LoadResult tallies one staging load.
type LoadResult struct {
	Accepted int64
	Dropped  int64
}

// Loader moves records from a source extract into the staging table. The
// staging table is cleared first, writes are batched, and batch N is written
// while batch N+1 is parsed. Unlike the migration engine the staging area
// has no row-level recovery: a failed write aborts the whole load.
type Loader struct {
	store            Store
	batchSize        int
	progressInterval int
	logger           *zap.Logger
}

// NewLoader builds a Loader over store. Non-positive batchSize and
// progressInterval fall back to 500 and 10000.
func NewLoader(store Store, batchSize, progressInterval int) *Loader {
	if batchSize <= 0 {
		batchSize = 500
	}
	if progressInterval <= 0 {
		progressInterval = 10000
	}
	return &Loader{
		store:            store,
		batchSize:        batchSize,
		progressInterval: progressInterval,
		logger:           zap.L().Named("staging-loader"),
	}
}

// Run clears the staging table, then streams every coercible record from
// reader into it.
func (l *Loader) Run(ctx context.Context, reader *Reader) (*LoadResult, error) {
	if err := l.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear staging table: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan []model.StagingRecord, 1)

	g.Go(func() error {
		defer close(batches)

		batch := make([]model.StagingRecord, 0, l.batchSize)
		for {
			rec, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			batch = append(batch, rec)
			if len(batch) >= l.batchSize {
				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = make([]model.StagingRecord, 0, l.batchSize)
			}
		}

		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var accepted, lastLogged int64
	g.Go(func() error {
		for batch := range batches {
			if err := l.store.InsertBatch(ctx, batch); err != nil {
				return fmt.Errorf("staging write failed, aborting load: %w", err)
			}
			accepted += int64(len(batch))
			if accepted-lastLogged >= int64(l.progressInterval) {
				l.logger.Info("Staging rows loaded", zap.Int64("rows", accepted))
				lastLogged = accepted
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &LoadResult{
		Accepted: accepted,
		Dropped:  reader.Dropped(),
	}
	l.logger.Info("Staging load complete",
		zap.Int64("accepted", result.Accepted),
		zap.Int64("dropped", result.Dropped))
	return result, nil
}
