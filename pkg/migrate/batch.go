package migrate

import (
	"context"
	"fmt"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

// FlushWithFallback writes a batch through w. When the batch write fails it
// is rolled back by the writer and every row is retried individually, so one
// poisoned row costs itself rather than its whole batch. Returns how many
// rows were inserted and how many were lost, and whether the batch degraded
// to row-by-row writes. Row and batch losses are tallied on the handler;
// only a lost connection is returned as an error, since retrying rows on a
// dead handle cannot succeed.
func FlushWithFallback(
	ctx context.Context,
	w BatchWriter,
	batch []model.TaxpayerRecord,
	handler *ErrorHandler,
) (inserted, discarded int64, fellBack bool, err error) {
	if len(batch) == 0 {
		return 0, 0, false, nil
	}

	batchErr := w.InsertBatch(ctx, batch)
	if batchErr == nil {
		return int64(len(batch)), 0, false, nil
	}

	category := handler.CategorizeError(batchErr)
	if category != ErrorCategoryConnectionLevel {
		category = ErrorCategoryBatchLevel
	}
	action := handler.HandleError(
		NewErrorRecord(batchErr, category).WithStage(StageMigration))
	if action == ActionAbort {
		return 0, 0, false, fmt.Errorf("batch write failed terminally: %w", batchErr)
	}

	for _, rec := range batch {
		rowErr := w.InsertRow(ctx, rec)
		if rowErr == nil {
			inserted++
			continue
		}
		rowCategory := handler.CategorizeError(rowErr)
		rowAction := handler.HandleError(
			NewErrorRecord(rowErr, rowCategory).
				WithStage(StageMigration).
				WithBusinessID(rec.BusinessID))
		if rowAction == ActionAbort {
			return inserted, discarded, true,
				fmt.Errorf("row retry failed terminally: %w", rowErr)
		}
		discarded++
	}

	return inserted, discarded, true, nil
}
