package migrate

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

func mkCanonical(id int64) model.TaxpayerRecord {
	rec := DemoRecord()
	rec.BusinessID = id
	return rec
}

func TestFlushWithFallbackHappyPath(t *testing.T) {
	store := newMemoryStore()
	handler := NewErrorHandler(zap.NewNop())

	batch := []model.TaxpayerRecord{mkCanonical(1), mkCanonical(2), mkCanonical(3)}
	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), store, batch, handler)
	require.NoError(t, err)

	assert.Equal(t, int64(3), inserted)
	assert.Equal(t, int64(0), discarded)
	assert.False(t, fellBack)
	assert.Equal(t, 1, store.batchCalls)
	assert.Equal(t, 0, store.rowCalls)
}

func TestFlushWithFallbackEmptyBatch(t *testing.T) {
	store := newMemoryStore()
	handler := NewErrorHandler(zap.NewNop())

	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), store, nil, handler)
	require.NoError(t, err)

	assert.Zero(t, inserted)
	assert.Zero(t, discarded)
	assert.False(t, fellBack)
	assert.Equal(t, 0, store.batchCalls)
}

// One poisoned row must cost exactly itself: N-1 inserted, 1 discarded.
func TestFlushWithFallbackPoisonedRow(t *testing.T) {
	store := newMemoryStore()
	store.failBatchWith = 42
	store.failRowWith = 42
	handler := NewErrorHandler(zap.NewNop())

	batch := []model.TaxpayerRecord{
		mkCanonical(40), mkCanonical(41), mkCanonical(42), mkCanonical(43),
	}
	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), store, batch, handler)
	require.NoError(t, err)

	assert.Equal(t, int64(3), inserted)
	assert.Equal(t, int64(1), discarded)
	assert.True(t, fellBack)
	assert.Equal(t, 1, store.batchCalls)
	assert.Equal(t, len(batch), store.rowCalls)
	assert.NotContains(t, store.rows, int64(42))
	assert.Contains(t, store.rows, int64(43))
}

// When the store rejects everything, all rows are discarded and the
// combinator still returns rather than erroring.
func TestFlushWithFallbackTotalLoss(t *testing.T) {
	store := newMemoryStore()
	store.failBatchWith = 1
	store.failRowWith = 1

	// a store that fails every individual insert
	total := &totalLossStore{memoryStore: store}
	handler := NewErrorHandler(zap.NewNop())

	batch := []model.TaxpayerRecord{mkCanonical(1), mkCanonical(2)}
	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), total, batch, handler)
	require.NoError(t, err)

	assert.Equal(t, int64(0), inserted)
	assert.Equal(t, int64(2), discarded)
	assert.True(t, fellBack)

	summary := handler.GetErrorSummary()
	assert.Equal(t, 1, summary[ErrorCategoryBatchLevel])
	assert.Equal(t, 2, summary[ErrorCategoryRowLevel])
}

type totalLossStore struct {
	*memoryStore
}

func (s *totalLossStore) InsertRow(ctx context.Context, record model.TaxpayerRecord) error {
	s.rowCalls++
	return assert.AnError
}

// A dead connection cannot be recovered by retrying rows on it, so the
// combinator aborts instead of discarding the batch.
func TestFlushWithFallbackConnectionLossAborts(t *testing.T) {
	store := &connLossStore{memoryStore: newMemoryStore()}
	handler := NewErrorHandler(zap.NewNop())

	batch := []model.TaxpayerRecord{mkCanonical(1), mkCanonical(2)}
	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), store, batch, handler)

	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Zero(t, inserted)
	assert.Zero(t, discarded)
	assert.False(t, fellBack)
	assert.Equal(t, 0, store.rowCalls, "no row retries on a dead connection")

	summary := handler.GetErrorSummary()
	assert.Equal(t, 1, summary[ErrorCategoryConnectionLevel])
}

func TestFlushWithFallbackConnectionLossDuringRetry(t *testing.T) {
	store := &dyingStore{memoryStore: newMemoryStore(), rowsBeforeLoss: 1}
	handler := NewErrorHandler(zap.NewNop())

	batch := []model.TaxpayerRecord{mkCanonical(1), mkCanonical(2), mkCanonical(3)}
	inserted, discarded, fellBack, err := FlushWithFallback(context.Background(), store, batch, handler)

	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	assert.Equal(t, int64(1), inserted, "rows written before the loss are kept")
	assert.Zero(t, discarded)
	assert.True(t, fellBack)
}

// connLossStore loses its connection on the batch write itself
type connLossStore struct {
	*memoryStore
}

func (s *connLossStore) InsertBatch(ctx context.Context, records []model.TaxpayerRecord) error {
	s.batchCalls++
	return driver.ErrBadConn
}

// dyingStore fails the batch write generically, then loses the connection
// after rowsBeforeLoss individual inserts
type dyingStore struct {
	*memoryStore
	rowsBeforeLoss int
}

func (s *dyingStore) InsertBatch(ctx context.Context, records []model.TaxpayerRecord) error {
	s.batchCalls++
	return assert.AnError
}

func (s *dyingStore) InsertRow(ctx context.Context, record model.TaxpayerRecord) error {
	s.rowCalls++
	if s.rowCalls > s.rowsBeforeLoss {
		return driver.ErrBadConn
	}
	s.put(record)
	return nil
}

func TestHandlerSampleCap(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop())

	for i := 0; i < 9; i++ {
		handler.RecordError(NewErrorRecord(assert.AnError, ErrorCategoryRowLevel).
			WithStage(StageMigration).
			WithBusinessID(int64(10000 + i)))
	}

	summary := handler.GetErrorSummary()
	assert.Equal(t, 9, summary[ErrorCategoryRowLevel])

	samples := handler.GetErrorSamples()
	require.Len(t, samples[ErrorCategoryRowLevel], 5, "samples stay capped")
	assert.Equal(t, int64(10000), samples[ErrorCategoryRowLevel][0].BusinessID)
}

func TestHandleErrorActions(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop())

	cases := []struct {
		category ErrorCategory
		want     Action
	}{
		{ErrorCategoryNone, ActionContinue},
		{ErrorCategoryIgnorable, ActionContinue},
		{ErrorCategoryRowLevel, ActionSkipRow},
		{ErrorCategoryBatchLevel, ActionFallbackToRows},
		{ErrorCategoryConnectionLevel, ActionAbort},
		{ErrorCategoryFatal, ActionAbort},
	}
	for _, tc := range cases {
		got := handler.HandleError(NewErrorRecord(assert.AnError, tc.category))
		assert.Equalf(t, tc.want, got, "category %s", tc.category)
	}
}

func TestCategorizeError(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop())

	assert.Equal(t, ErrorCategoryNone, handler.CategorizeError(nil))
	assert.Equal(t, ErrorCategoryIgnorable,
		handler.CategorizeError(errors.New(`relation "taxpayers" already exists`)))
	assert.Equal(t, ErrorCategoryConnectionLevel, handler.CategorizeError(driver.ErrBadConn))
	assert.Equal(t, ErrorCategoryRowLevel, handler.CategorizeError(&pq.Error{Code: "23505"}))
	assert.Equal(t, ErrorCategoryRowLevel, handler.CategorizeError(errors.New("anything else")))
}

func TestErrorRecordString(t *testing.T) {
	rec := NewErrorRecord(assert.AnError, ErrorCategoryRowLevel).
		WithStage(StageMigration).
		WithBusinessID(10001).
		WithField("debt_amount", "-3.50")

	s := rec.String()
	assert.Contains(t, s, "RowLevel")
	assert.Contains(t, s, "migration")
	assert.Contains(t, s, "10001")
	assert.Contains(t, s, "debt_amount")
}
