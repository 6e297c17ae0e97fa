package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

// RecordSource streams staging records into the engine. The contract follows
// sql.Rows: Next advances and reports availability, Record returns the
// current row, Err surfaces the terminal iteration error.
type RecordSource interface {
	Next() bool
	Record() model.StagingRecord
	Err() error
	Close() error
}

// BatchWriter is the slice of the canonical store the batch-fallback
// combinator needs.
type BatchWriter interface {
	// InsertBatch writes all records in one transaction or none of them
	InsertBatch(ctx context.Context, records []model.TaxpayerRecord) error

	// InsertRow writes a single record
	InsertRow(ctx context.Context, record model.TaxpayerRecord) error
}

// CanonicalStore is the engine's view of the canonical taxpayer table.
type CanonicalStore interface {
	BatchWriter

	// Clear removes every canonical row
	Clear(ctx context.Context) error

	// Count returns the number of canonical rows
	Count(ctx context.Context) (int64, error)

	// HasRecord reports whether a business ID is already present
	HasRecord(ctx context.Context, businessID int64) (bool, error)
}

const canonicalTable = "taxpayers"

const insertColumns = "business_id, activity_code, company_type, size_code, " +
	"location_code, tax_status, domicile_condition, sex, age, debt_amount, raw_domicile_flag"

const insertParamCount = 11

// SQLStore implements CanonicalStore on the configured destination database.
// Queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewSQLStore wraps a connector in a CanonicalStore
func NewSQLStore(conn connector.DatabaseConnector, queryTimeout time.Duration) *SQLStore {
	return &SQLStore{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		logger:  zap.L().Named("canonical-store"),
		timeout: queryTimeout,
	}
}

// maxRowsPerStatement bounds multi-row inserts by the driver's parameter
// limit. SQL Server rejects statements with more than 2100 parameters;
// PostgreSQL allows 65535.
func (s *SQLStore) maxRowsPerStatement() int {
	if s.db.DriverName() == "sqlserver" {
		return 2100 / insertParamCount
	}
	return 65535 / insertParamCount
}

// Clear removes every canonical row
func (s *SQLStore) Clear(ctx context.Context) error {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, "DELETE FROM "+canonicalTable)
	if err != nil {
		return fmt.Errorf("failed to clear canonical table: %w", err)
	}

	if removed, err := result.RowsAffected(); err == nil {
		s.logger.Info("Cleared canonical table", zap.Int64("rows_removed", removed))
	}
	return nil
}

// Count returns the number of canonical rows
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	err := s.db.GetContext(queryCtx, &count, "SELECT COUNT(*) FROM "+canonicalTable)
	if err != nil {
		return 0, fmt.Errorf("failed to count canonical rows: %w", err)
	}
	return count, nil
}

// HasRecord reports whether a business ID is already present
func (s *SQLStore) HasRecord(ctx context.Context, businessID int64) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int
	query := s.db.Rebind("SELECT COUNT(*) FROM " + canonicalTable + " WHERE business_id = ?")
	if err := s.db.GetContext(queryCtx, &count, query, businessID); err != nil {
		return false, fmt.Errorf("failed to check business_id %d: %w", businessID, err)
	}
	return count > 0, nil
}

// InsertBatch writes all records in one transaction or none of them
func (s *SQLStore) InsertBatch(ctx context.Context, records []model.TaxpayerRecord) error {
	if len(records) == 0 {
		return nil
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	chunk := s.maxRowsPerStatement()
	for start := 0; start < len(records); start += chunk {
		end := start + chunk
		if end > len(records) {
			end = len(records)
		}

		query, args := buildInsert(records[start:end])
		if _, err := tx.ExecContext(execCtx, s.db.Rebind(query), args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch insert of %d rows failed: %w", len(records), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// InsertRow writes a single record
func (s *SQLStore) InsertRow(ctx context.Context, record model.TaxpayerRecord) error {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query, args := buildInsert([]model.TaxpayerRecord{record})
	if _, err := s.db.ExecContext(execCtx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("insert of business_id %d failed: %w", record.BusinessID, err)
	}
	return nil
}

// buildInsert assembles a multi-row INSERT with ? placeholders, to be
// rebound for the active driver
func buildInsert(records []model.TaxpayerRecord) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(canonicalTable)
	sb.WriteString(" (")
	sb.WriteString(insertColumns)
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(records)*insertParamCount)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.BusinessID,
			rec.ActivityCode,
			rec.CompanyType,
			rec.SizeCode,
			rec.LocationCode,
			rec.TaxStatus,
			rec.DomicileCondition,
			rec.Sex,
			rec.Age,
			rec.DebtAmount,
			rec.RawDomicileFlag,
		)
	}

	return sb.String(), args
}
