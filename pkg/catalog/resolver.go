// pkg/catalog/resolver.go
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fiscaldata/taxpayer-ingress/pkg/connector"
	"github.com/fiscaldata/taxpayer-ingress/pkg/normalizer"
)

// Result tallies the catalog rows added by one resolution pass.
type Result struct {
	Activities   int64
	Locations    int64
	CompanyTypes int64
}

// Resolver fills the open-ended catalogs with the distinct values found in
// staging so every filtered staging row can satisfy the canonical store's
// referential constraints. It must run after the staging load and before
// migration. SQL sticks to CONCAT and LEFT, which both supported dialects
// accept unchanged.
type Resolver struct {
	db      *sqlx.DB
	seeds   *Seeds
	logger  *zap.Logger
	timeout time.Duration
}

// NewResolver wraps a connector in a Resolver
func NewResolver(conn connector.DatabaseConnector, seeds *Seeds, queryTimeout time.Duration) *Resolver {
	return &Resolver{
		db:      sqlx.NewDb(conn.DB(), conn.DriverName()),
		seeds:   seeds,
		logger:  zap.L().Named("catalog-resolver"),
		timeout: queryTimeout,
	}
}

// Run resolves activities, locations and company types, in that order, and
// returns how many catalog rows each pass added.
func (r *Resolver) Run(ctx context.Context) (*Result, error) {
	r.logger.Info("Resolving catalogs from staging data")

	result := &Result{}
	var err error

	if result.Activities, err = r.resolveActivities(ctx); err != nil {
		return nil, err
	}
	if result.Locations, err = r.resolveLocations(ctx); err != nil {
		return nil, err
	}
	if result.CompanyTypes, err = r.resolveCompanyTypes(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("Catalog resolution complete",
		zap.Int64("activities_added", result.Activities),
		zap.Int64("locations_added", result.Locations),
		zap.Int64("company_types_added", result.CompanyTypes))
	return result, nil
}

// resolveActivities inserts every distinct staging activity code missing
// from the catalog, with a synthesized description and the two-character
// division prefix.
func (r *Resolver) resolveActivities(ctx context.Context) (int64, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(execCtx, `
		INSERT INTO economic_activities (code, description, division)
		SELECT DISTINCT
			activity_code,
			CONCAT('Economic activity code ', activity_code),
			LEFT(activity_code, 2)
		FROM staging_taxpayers
		WHERE activity_code IS NOT NULL
		  AND activity_code NOT IN (SELECT code FROM economic_activities)`)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve economic activities: %w", err)
	}

	added, _ := result.RowsAffected()
	return added, nil
}

// resolveLocations inserts every distinct staging location code missing from
// the catalog. The source carries only the code, so the district name is the
// code itself and province/department come from the seed defaults.
func (r *Resolver) resolveLocations(ctx context.Context) (int64, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := r.db.Rebind(`
		INSERT INTO geographic_locations (code, district_name, province, department)
		SELECT DISTINCT
			location_code,
			location_code,
			?,
			?
		FROM staging_taxpayers
		WHERE location_code IS NOT NULL
		  AND location_code NOT IN (SELECT code FROM geographic_locations)`)

	result, err := r.db.ExecContext(execCtx, query,
		r.seeds.LocationDefaults.Province, r.seeds.LocationDefaults.Department)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve geographic locations: %w", err)
	}

	added, _ := result.RowsAffected()
	return added, nil
}

// resolveCompanyTypes normalizes the distinct raw company-type values and
// inserts any normalized code the catalog does not know yet. With a healthy
// seed file this adds nothing: normalization folds strays onto seeded codes.
func (r *Resolver) resolveCompanyTypes(ctx context.Context) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var raws []string
	err := r.db.SelectContext(queryCtx, &raws,
		"SELECT DISTINCT company_type_raw FROM staging_taxpayers WHERE company_type_raw IS NOT NULL")
	if err != nil {
		return 0, fmt.Errorf("failed to read distinct company types: %w", err)
	}

	var added int64
	for _, code := range normalizeDistinct(raws) {
		var count int
		existsQuery := r.db.Rebind("SELECT COUNT(*) FROM company_types WHERE code = ?")
		if err := r.db.GetContext(queryCtx, &count, existsQuery, code); err != nil {
			return added, fmt.Errorf("failed to check company type %q: %w", code, err)
		}
		if count > 0 {
			continue
		}

		insertQuery := r.db.Rebind(
			"INSERT INTO company_types (code, description, abbreviation) VALUES (?, ?, ?)")
		if _, err := r.db.ExecContext(queryCtx, insertQuery, code, "Type "+code, code); err != nil {
			return added, fmt.Errorf("failed to insert company type %q: %w", code, err)
		}
		added++
		r.logger.Info("Added company type missing from the seed catalog", zap.String("code", code))
	}
	return added, nil
}

// Verify checks that every distinct dimension value in staging now has a
// catalog row, so migration cannot trip referential constraints. It returns
// an error naming the first incomplete catalog.
func (r *Resolver) Verify(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	checks := []struct {
		name  string
		query string
	}{
		{"economic_activities", `
			SELECT COUNT(DISTINCT activity_code) FROM staging_taxpayers
			WHERE activity_code IS NOT NULL
			  AND activity_code NOT IN (SELECT code FROM economic_activities)`},
		{"geographic_locations", `
			SELECT COUNT(DISTINCT location_code) FROM staging_taxpayers
			WHERE location_code IS NOT NULL
			  AND location_code NOT IN (SELECT code FROM geographic_locations)`},
	}

	for _, check := range checks {
		var unresolved int64
		if err := r.db.GetContext(queryCtx, &unresolved, check.query); err != nil {
			return fmt.Errorf("failed to verify catalog %s: %w", check.name, err)
		}
		if unresolved > 0 {
			r.logger.Warn("Catalog is missing staging values",
				zap.String("catalog", check.name),
				zap.Int64("unresolved", unresolved))
			return fmt.Errorf("catalog %s is missing %d staging values", check.name, unresolved)
		}
	}

	// Company types normalize in Go, so the comparison does too.
	var raws []string
	err := r.db.SelectContext(queryCtx, &raws,
		"SELECT DISTINCT company_type_raw FROM staging_taxpayers WHERE company_type_raw IS NOT NULL")
	if err != nil {
		return fmt.Errorf("failed to verify company types: %w", err)
	}

	var known []string
	if err := r.db.SelectContext(queryCtx, &known, "SELECT code FROM company_types"); err != nil {
		return fmt.Errorf("failed to list company types: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, code := range known {
		knownSet[code] = struct{}{}
	}

	for _, code := range normalizeDistinct(raws) {
		if _, ok := knownSet[code]; !ok {
			r.logger.Warn("Catalog is missing staging values",
				zap.String("catalog", "company_types"),
				zap.String("code", code))
			return fmt.Errorf("catalog company_types is missing code %q", code)
		}
	}

	r.logger.Info("Catalog verification successful")
	return nil
}

// normalizeDistinct maps raw company-type values onto the catalog codes they
// normalize to, deduplicated and sorted.
func normalizeDistinct(raws []string) []string {
	set := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		set[normalizer.CompanyType(raw)] = struct{}{}
	}

	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
