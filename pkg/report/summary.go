// pkg/report/summary.go

package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
)

// maxDistricts caps the location breakdown. Ordering happens in SQL and the
// cut in Go, so the same query runs on both dialects (no TOP/LIMIT).
const maxDistricts = 5

// persistentTables lists every table the pipeline owns, in render order.
var persistentTables = []string{
	"taxpayers",
	"economic_activities",
	"company_types",
	"company_sizes",
	"geographic_locations",
	"tax_statuses",
	"domicile_conditions",
}

// StatusCount is one row of the per-status breakdown.
type StatusCount struct {
	Description string `db:"description"`
	Total       int64  `db:"total"`
}

// DistrictCount is one row of the district breakdown.
type DistrictCount struct {
	District string `db:"district_name"`
	Total    int64  `db:"total"`
}

// DebtStats aggregates the taxpayers that owe anything.
type DebtStats struct {
	Total   float64
	Average float64
	Max     float64
	Debtors int64
}

// Summary holds everything the final report renders.
type Summary struct {
	GeneratedAt     time.Time
	TotalTaxpayers  int64
	ByTaxStatus     []StatusCount
	Debt            *DebtStats // nil when no taxpayer owes anything
	TopDistricts    []DistrictCount
	AnalysisResults int64
	TableCounts     map[string]int64
}

// Collector runs the read-only summary queries against the destination
// database.
type Collector struct {
	db      *sqlx.DB
	logger  *zap.Logger
	timeout time.Duration
}

// NewCollector wraps an established connection for summary queries.
func NewCollector(conn connector.DatabaseConnector, queryTimeout time.Duration) *Collector {
	return &Collector{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		logger:  zap.L().Named("summary-reporter"),
		timeout: queryTimeout,
	}
}

// Collect gathers every section of the summary. Queries run sequentially;
// the first failure aborts, nothing here mutates state.
func (c *Collector) Collect(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		GeneratedAt: time.Now(),
		TableCounts: make(map[string]int64, len(persistentTables)),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.GetContext(ctx, &summary.TotalTaxpayers,
		"SELECT COUNT(*) FROM taxpayers"); err != nil {
		return nil, fmt.Errorf("failed to count taxpayers: %w", err)
	}

	if err := c.db.SelectContext(ctx, &summary.ByTaxStatus, `
		SELECT ts.description AS description, COUNT(*) AS total
		FROM taxpayers t
		JOIN tax_statuses ts ON t.tax_status = ts.code
		GROUP BY ts.description
		ORDER BY total DESC`); err != nil {
		return nil, fmt.Errorf("failed to aggregate tax statuses: %w", err)
	}

	debt, err := c.collectDebt(ctx)
	if err != nil {
		return nil, err
	}
	summary.Debt = debt

	var districts []DistrictCount
	if err := c.db.SelectContext(ctx, &districts, `
		SELECT gl.district_name AS district_name, COUNT(*) AS total
		FROM taxpayers t
		JOIN geographic_locations gl ON t.location_code = gl.code
		GROUP BY gl.district_name
		ORDER BY total DESC`); err != nil {
		return nil, fmt.Errorf("failed to aggregate districts: %w", err)
	}
	summary.TopDistricts = topDistricts(districts, maxDistricts)

	if err := c.db.GetContext(ctx, &summary.AnalysisResults,
		"SELECT COUNT(*) FROM analysis_results"); err != nil {
		return nil, fmt.Errorf("failed to count analysis results: %w", err)
	}

	for _, table := range persistentTables {
		var n int64
		if err := c.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", table, err)
		}
		summary.TableCounts[table] = n
	}

	c.logger.Info("Summary collected",
		zap.Int64("taxpayers", summary.TotalTaxpayers),
		zap.Int("statuses", len(summary.ByTaxStatus)),
		zap.Int64("analysisResults", summary.AnalysisResults))

	return summary, nil
}

// collectDebt aggregates over rows with a positive debt. The aggregates come
// back NULL when nothing matches, so they scan into nullable columns and the
// section collapses to nil.
func (c *Collector) collectDebt(ctx context.Context) (*DebtStats, error) {
	var row struct {
		Total   sql.NullFloat64 `db:"total_debt"`
		Average sql.NullFloat64 `db:"average_debt"`
		Max     sql.NullFloat64 `db:"max_debt"`
		Debtors int64           `db:"debtors"`
	}

	err := c.db.GetContext(ctx, &row, `
		SELECT SUM(debt_amount) AS total_debt,
		       AVG(debt_amount) AS average_debt,
		       MAX(debt_amount) AS max_debt,
		       COUNT(*) AS debtors
		FROM taxpayers
		WHERE debt_amount > 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate debt: %w", err)
	}

	if row.Debtors == 0 {
		return nil, nil
	}

	return &DebtStats{
		Total:   row.Total.Float64,
		Average: row.Average.Float64,
		Max:     row.Max.Float64,
		Debtors: row.Debtors,
	}, nil
}

// topDistricts cuts the ordered district list down to the render limit.
func topDistricts(districts []DistrictCount, limit int) []DistrictCount {
	if len(districts) > limit {
		return districts[:limit]
	}
	return districts
}
