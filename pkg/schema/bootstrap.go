// pkg/schema/bootstrap.go
package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/catalog"
	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
)

// Bootstrapper creates the pipeline's tables and indexes and seeds the
// closed catalogs. Bootstrap is tolerant: duplicate objects are expected on
// reruns and logged at debug, any other statement failure is logged as a
// warning and skipped. Only connection loss aborts.
type Bootstrapper struct {
	conn    connector.DatabaseConnector
	db      *sqlx.DB
	seeds   *catalog.Seeds
	logger  *zap.Logger
	timeout time.Duration
}

// NewBootstrapper wraps a connector in a Bootstrapper
func NewBootstrapper(conn connector.DatabaseConnector, seeds *catalog.Seeds, queryTimeout time.Duration) *Bootstrapper {
	return &Bootstrapper{
		conn:    conn,
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		seeds:   seeds,
		logger:  zap.L().Named("schema-bootstrap"),
		timeout: queryTimeout,
	}
}

// Run executes the DDL for the active dialect, then seeds the closed
// catalogs insert-if-absent.
func (b *Bootstrapper) Run(ctx context.Context) error {
	b.logger.Info("Bootstrapping database schema",
		zap.String("driver", b.conn.DriverName()))

	for _, stmt := range statements(b.conn.DriverName()) {
		_, err := b.conn.ExecWithTimeout(ctx, stmt.sql, b.timeout)
		switch {
		case err == nil:
			b.logger.Info("Created database object", zap.String("object", stmt.object))
		case connector.IsDuplicateObject(err):
			b.logger.Debug("Database object already exists", zap.String("object", stmt.object))
		case connector.IsConnectionError(err):
			return fmt.Errorf("lost connection during schema bootstrap: %w", err)
		default:
			b.logger.Warn("Failed to create database object",
				zap.String("object", stmt.object),
				zap.Error(err))
		}
	}

	return b.seedCatalogs(ctx)
}

// seedCatalogs inserts any seed row whose code is not present yet. Failures
// on individual rows are warnings; migration will surface the damage as
// discarded rows if a catalog stays incomplete.
func (b *Bootstrapper) seedCatalogs(ctx context.Context) error {
	var seeded int

	for _, ts := range b.seeds.TaxStatuses {
		added, err := b.ensureRow(ctx, "tax_statuses", ts.Code,
			"INSERT INTO tax_statuses (code, description) VALUES (?, ?)",
			ts.Code, ts.Description)
		if err := b.noteSeedError(err, "tax_statuses", ts.Code); err != nil {
			return err
		}
		if added {
			seeded++
		}
	}

	for _, dc := range b.seeds.DomicileConditions {
		added, err := b.ensureRow(ctx, "domicile_conditions", dc.Code,
			"INSERT INTO domicile_conditions (code, description) VALUES (?, ?)",
			dc.Code, dc.Description)
		if err := b.noteSeedError(err, "domicile_conditions", dc.Code); err != nil {
			return err
		}
		if added {
			seeded++
		}
	}

	for _, ct := range b.seeds.CompanyTypes {
		added, err := b.ensureRow(ctx, "company_types", ct.Code,
			"INSERT INTO company_types (code, description, abbreviation) VALUES (?, ?, ?)",
			ct.Code, ct.Description, ct.Abbreviation)
		if err := b.noteSeedError(err, "company_types", ct.Code); err != nil {
			return err
		}
		if added {
			seeded++
		}
	}

	for _, cs := range b.seeds.CompanySizes {
		added, err := b.ensureRow(ctx, "company_sizes", cs.Code,
			"INSERT INTO company_sizes (code, description) VALUES (?, ?)",
			cs.Code, cs.Description)
		if err := b.noteSeedError(err, "company_sizes", cs.Code); err != nil {
			return err
		}
		if added {
			seeded++
		}
	}

	if seeded > 0 {
		b.logger.Info("Seeded closed catalogs", zap.Int("rows_added", seeded))
	}
	return nil
}

// ensureRow inserts one catalog row unless its code already exists. Reports
// whether a row was added.
func (b *Bootstrapper) ensureRow(ctx context.Context, table, code, insertQuery string, args ...interface{}) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var count int
	existsQuery := b.db.Rebind("SELECT COUNT(*) FROM " + table + " WHERE code = ?")
	if err := b.db.GetContext(queryCtx, &count, existsQuery, code); err != nil {
		return false, fmt.Errorf("failed to check %s %q: %w", table, code, err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := b.db.ExecContext(queryCtx, b.db.Rebind(insertQuery), args...); err != nil {
		return false, fmt.Errorf("failed to seed %s %q: %w", table, code, err)
	}
	return true, nil
}

// noteSeedError applies the bootstrap error policy to one seed row: nil and
// racing duplicates pass, connection loss aborts, anything else is a warning.
func (b *Bootstrapper) noteSeedError(err error, table, code string) error {
	switch {
	case err == nil:
		return nil
	case connector.IsUniqueViolation(err):
		return nil
	case connector.IsConnectionError(err):
		return fmt.Errorf("lost connection while seeding catalogs: %w", err)
	default:
		b.logger.Warn("Failed to seed catalog row",
			zap.String("table", table),
			zap.String("code", code),
			zap.Error(err))
		return nil
	}
}
