// pkg/staging/store.go
package staging

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

const stagingTable = "staging_taxpayers"

const stagingColumns = "business_id, activity_code, company_type_raw, size_code_raw, " +
	"location_code, tax_status_raw, domicile_flag_raw, sex_raw, age, debt_amount, condition_code"

const stagingParamCount = 11

// SQLStore implements Store on the configured destination database. Queries
// are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewSQLStore wraps a connector in a staging Store
func NewSQLStore(conn connector.DatabaseConnector, queryTimeout time.Duration) *SQLStore {
	return &SQLStore{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		logger:  zap.L().Named("staging-store"),
		timeout: queryTimeout,
	}
}

// maxRowsPerStatement bounds multi-row inserts by the driver's parameter
// limit. SQL Server rejects statements with more than 2100 parameters;
// PostgreSQL allows 65535.
func (s *SQLStore) maxRowsPerStatement() int {
	if s.db.DriverName() == "sqlserver" {
		return 2100 / stagingParamCount
	}
	return 65535 / stagingParamCount
}

// Clear removes every staging row
func (s *SQLStore) Clear(ctx context.Context) error {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, "DELETE FROM "+stagingTable)
	if err != nil {
		return fmt.Errorf("failed to clear staging table: %w", err)
	}

	if removed, err := result.RowsAffected(); err == nil && removed > 0 {
		s.logger.Info("Cleared staging table from a previous run", zap.Int64("rows_removed", removed))
	}
	return nil
}

// InsertBatch writes all records in one transaction or none of them
func (s *SQLStore) InsertBatch(ctx context.Context, records []model.StagingRecord) error {
	if len(records) == 0 {
		return nil
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}

	chunk := s.maxRowsPerStatement()
	for start := 0; start < len(records); start += chunk {
		end := start + chunk
		if end > len(records) {
			end = len(records)
		}

		query, args := buildStagingInsert(records[start:end])
		if _, err := tx.ExecContext(execCtx, s.db.Rebind(query), args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("staging insert of %d rows failed: %w", len(records), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staging batch: %w", err)
	}
	return nil
}

// Scan streams every staging row back out, in table order. The query runs on
// the caller's context without the per-query timeout because the cursor
// stays open for the whole migration.
func (s *SQLStore) Scan(ctx context.Context) (*Scanner, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT "+stagingColumns+" FROM "+stagingTable)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging table: %w", err)
	}
	return &Scanner{rows: rows}, nil
}

// Count returns the number of staging rows
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	if err := s.db.GetContext(queryCtx, &count, "SELECT COUNT(*) FROM "+stagingTable); err != nil {
		return 0, fmt.Errorf("failed to count staging rows: %w", err)
	}
	return count, nil
}

// buildStagingInsert assembles a multi-row INSERT with ? placeholders, to be
// rebound for the active driver
func buildStagingInsert(records []model.StagingRecord) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(stagingTable)
	sb.WriteString(" (")
	sb.WriteString(stagingColumns)
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(records)*stagingParamCount)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.BusinessID,
			rec.ActivityCode,
			rec.CompanyTypeRaw,
			rec.SizeCodeRaw,
			rec.LocationCode,
			rec.TaxStatusRaw,
			rec.DomicileFlagRaw,
			rec.SexRaw,
			rec.Age,
			rec.DebtAmount,
			rec.ConditionCode,
		)
	}

	return sb.String(), args
}

// Scanner adapts a staging result set to the migration engine's record
// source contract.
type Scanner struct {
	rows *sqlx.Rows
	rec  model.StagingRecord
	err  error
}

// Next advances to the next staging row
func (sc *Scanner) Next() bool {
	if sc.err != nil || !sc.rows.Next() {
		return false
	}
	sc.rec = model.StagingRecord{}
	if err := sc.rows.StructScan(&sc.rec); err != nil {
		sc.err = fmt.Errorf("failed to scan staging row: %w", err)
		return false
	}
	return true
}

// Record returns the current staging row
func (sc *Scanner) Record() model.StagingRecord {
	return sc.rec
}

// Err surfaces the terminal iteration error, if any
func (sc *Scanner) Err() error {
	if sc.err != nil {
		return sc.err
	}
	return sc.rows.Err()
}

// Close releases the underlying cursor
func (sc *Scanner) Close() error {
	return sc.rows.Close()
}
