// pkg/schema/ddl.go
package schema

// statement is one bootstrap DDL step. Statements run in order: catalogs
// before the canonical table that references them, tables before their
// indexes. None uses guards like IF NOT EXISTS; reruns surface
// duplicate-object errors, which the bootstrapper treats as expected.
type statement struct {
	object string
	sql    string
}

const createStaging = `CREATE TABLE staging_taxpayers (
	business_id       BIGINT,
	activity_code     VARCHAR(50),
	company_type_raw  VARCHAR(50),
	size_code_raw     VARCHAR(50),
	location_code     VARCHAR(50),
	tax_status_raw    VARCHAR(50),
	domicile_flag_raw VARCHAR(50),
	sex_raw           VARCHAR(50),
	age               INT,
	debt_amount       NUMERIC(14,2) DEFAULT 0,
	condition_code    INT DEFAULT 0
)`

const createActivities = `CREATE TABLE economic_activities (
	code        VARCHAR(50) PRIMARY KEY,
	description VARCHAR(200),
	division    VARCHAR(10)
)`

const createLocations = `CREATE TABLE geographic_locations (
	code          VARCHAR(50) PRIMARY KEY,
	district_name VARCHAR(100),
	province      VARCHAR(100),
	department    VARCHAR(100)
)`

const createCompanyTypes = `CREATE TABLE company_types (
	code         VARCHAR(10) PRIMARY KEY,
	description  VARCHAR(200),
	abbreviation VARCHAR(10)
)`

const createCompanySizes = `CREATE TABLE company_sizes (
	code        VARCHAR(10) PRIMARY KEY,
	description VARCHAR(200)
)`

const createTaxStatuses = `CREATE TABLE tax_statuses (
	code        VARCHAR(10) PRIMARY KEY,
	description VARCHAR(200)
)`

const createDomicileConditions = `CREATE TABLE domicile_conditions (
	code        VARCHAR(10) PRIMARY KEY,
	description VARCHAR(200)
)`

const createTaxpayers = `CREATE TABLE taxpayers (
	business_id        BIGINT PRIMARY KEY,
	activity_code      VARCHAR(50) NOT NULL REFERENCES economic_activities (code),
	company_type       VARCHAR(10) NOT NULL REFERENCES company_types (code),
	size_code          VARCHAR(10) NOT NULL REFERENCES company_sizes (code),
	location_code      VARCHAR(50) NOT NULL REFERENCES geographic_locations (code),
	tax_status         VARCHAR(10) NOT NULL REFERENCES tax_statuses (code),
	domicile_condition VARCHAR(10) NOT NULL REFERENCES domicile_conditions (code),
	sex                VARCHAR(10) NOT NULL CHECK (sex IN ('HOMBRE', 'MUJER', 'ND')),
	age                INT,
	debt_amount        NUMERIC(14,2) NOT NULL CHECK (debt_amount >= 0),
	raw_domicile_flag  VARCHAR(50)
)`

const createAnalysisResultsPostgres = `CREATE TABLE analysis_results (
	id            BIGSERIAL PRIMARY KEY,
	analysis_name VARCHAR(100) NOT NULL,
	category      VARCHAR(100),
	metric        VARCHAR(100),
	numeric_value DOUBLE PRECISION,
	text_value    VARCHAR(400),
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

const createAnalysisResultsSQLServer = `CREATE TABLE analysis_results (
	id            BIGINT IDENTITY(1,1) PRIMARY KEY,
	analysis_name VARCHAR(100) NOT NULL,
	category      VARCHAR(100),
	metric        VARCHAR(100),
	numeric_value FLOAT,
	text_value    VARCHAR(400),
	created_at    DATETIME2 NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// statements returns the bootstrap DDL for the given driver. The table
// layouts are identical across dialects except analysis_results, whose
// identity column and float/timestamp types have no shared spelling.
func statements(driverName string) []statement {
	stmts := []statement{
		{"staging_taxpayers", createStaging},
		{"economic_activities", createActivities},
		{"geographic_locations", createLocations},
		{"company_types", createCompanyTypes},
		{"company_sizes", createCompanySizes},
		{"tax_statuses", createTaxStatuses},
		{"domicile_conditions", createDomicileConditions},
		{"taxpayers", createTaxpayers},
	}

	if driverName == "sqlserver" {
		stmts = append(stmts, statement{"analysis_results", createAnalysisResultsSQLServer})
	} else {
		stmts = append(stmts, statement{"analysis_results", createAnalysisResultsPostgres})
	}

	return append(stmts,
		statement{"idx_taxpayers_tax_status",
			"CREATE INDEX idx_taxpayers_tax_status ON taxpayers (tax_status)"},
		statement{"idx_taxpayers_location",
			"CREATE INDEX idx_taxpayers_location ON taxpayers (location_code)"},
		statement{"idx_analysis_results_name",
			"CREATE INDEX idx_analysis_results_name ON analysis_results (analysis_name)"},
	)
}
