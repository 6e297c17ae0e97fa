// pkg/analysis/store.go

package analysis

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

const resultsTable = "analysis_results"

const resultColumns = "analysis_name, category, metric, numeric_value, text_value"

const resultParamCount = 5

// SQLSource implements SnapshotSource on the destination database.
type SQLSource struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewSQLSource(conn connector.DatabaseConnector, queryTimeout time.Duration) *SQLSource {
	return &SQLSource{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		timeout: queryTimeout,
	}
}

// Snapshot reads the whole canonical table into memory.
func (s *SQLSource) Snapshot(ctx context.Context) ([]model.TaxpayerRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []model.TaxpayerRecord
	err := s.db.SelectContext(queryCtx, &rows, `
		SELECT business_id, activity_code, company_type, size_code, location_code,
		       tax_status, domicile_condition, sex, age, debt_amount, raw_domicile_flag
		FROM taxpayers`)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxpayers: %w", err)
	}
	return rows, nil
}

// SQLResultStore implements ResultStore on the destination database.
type SQLResultStore struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

func NewSQLResultStore(conn connector.DatabaseConnector, queryTimeout time.Duration) *SQLResultStore {
	return &SQLResultStore{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		logger:  zap.L().Named("analysis-store"),
		timeout: queryTimeout,
	}
}

// maxRowsPerStatement bounds multi-row inserts by the driver's parameter
// limit, same as the staging and canonical stores.
func (s *SQLResultStore) maxRowsPerStatement() int {
	if s.db.DriverName() == "sqlserver" {
		return 2100 / resultParamCount
	}
	return 65535 / resultParamCount
}

// Replace deletes the rows stored under name and writes the new ones in the
// same transaction, so readers never see a half-replaced analysis.
func (s *SQLResultStore) Replace(ctx context.Context, name string, rows []model.AnalysisRow) error {
	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin results transaction: %w", err)
	}

	deleteQuery := s.db.Rebind("DELETE FROM " + resultsTable + " WHERE analysis_name = ?")
	if _, err := tx.ExecContext(execCtx, deleteQuery, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear previous rows of %q: %w", name, err)
	}

	chunk := s.maxRowsPerStatement()
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		query, args := buildResultInsert(name, rows[start:end])
		if _, err := tx.ExecContext(execCtx, s.db.Rebind(query), args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert %d rows of %q: %w", len(rows), name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results of %q: %w", name, err)
	}
	return nil
}

// buildResultInsert assembles a multi-row INSERT with ? placeholders,
// stamping the analysis name on every row.
func buildResultInsert(name string, rows []model.AnalysisRow) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(resultsTable)
	sb.WriteString(" (")
	sb.WriteString(resultColumns)
	sb.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(rows)*resultParamCount)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, name, r.Category, r.Metric, r.NumericValue, r.TextValue)
	}
	return sb.String(), args
}
