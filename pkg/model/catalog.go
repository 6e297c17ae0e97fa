// pkg/model/catalog.go
package model

// EconomicActivity is an entry in the open-ended activity catalog. Division
// holds the two-character classifier prefix.
type EconomicActivity struct {
	Code        string `db:"code"`
	Description string `db:"description"`
	Division    string `db:"division"`
}

// GeographicLocation is an entry in the open-ended location catalog.
type GeographicLocation struct {
	Code         string `db:"code"`
	DistrictName string `db:"district_name"`
	Province     string `db:"province"`
	Department   string `db:"department"`
}

// CompanyType is an entry in the company-type catalog. The catalog is seeded
// with the known legal forms but accepts normalized strays from the source.
type CompanyType struct {
	Code         string `db:"code" yaml:"code"`
	Description  string `db:"description" yaml:"description"`
	Abbreviation string `db:"abbreviation" yaml:"abbreviation"`
}

// CompanySize is an entry in the closed size-class catalog.
type CompanySize struct {
	Code        string `db:"code" yaml:"code"`
	Description string `db:"description" yaml:"description"`
}

// TaxStatus is an entry in the closed registry-status catalog.
type TaxStatus struct {
	Code        string `db:"code" yaml:"code"`
	Description string `db:"description" yaml:"description"`
}

// DomicileCondition is an entry in the closed domicile-condition catalog.
type DomicileCondition struct {
	Code        string `db:"code" yaml:"code"`
	Description string `db:"description" yaml:"description"`
}
