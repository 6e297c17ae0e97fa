// pkg/model/record.go
package model

// StagingRecord mirrors one row of the staging table: values arrive as they
// were read from the source extract, uncorrected. Pointer fields are NULL in
// the staging table when the source field was blank.
type StagingRecord struct {
	BusinessID      int64    `db:"business_id"`       // taxpayer registry number
	ActivityCode    *string  `db:"activity_code"`     // economic activity classifier
	CompanyTypeRaw  *string  `db:"company_type_raw"`  // legal form, dirty
	SizeCodeRaw     *string  `db:"size_code_raw"`     // size class, dirty
	LocationCode    *string  `db:"location_code"`     // geographic location code
	TaxStatusRaw    *string  `db:"tax_status_raw"`    // registry status, dirty
	DomicileFlagRaw *string  `db:"domicile_flag_raw"` // domicile flag, dirty
	SexRaw          *string  `db:"sex_raw"`
	Age             *int     `db:"age"`
	DebtAmount      float64  `db:"debt_amount"`
	ConditionCode   int      `db:"condition_code"`
}

// TaxpayerRecord is the canonical, normalized form of a staging row. Every
// dimension field holds a catalog code; DebtAmount is never negative.
type TaxpayerRecord struct {
	BusinessID        int64   `db:"business_id"`
	ActivityCode      string  `db:"activity_code"`
	CompanyType       string  `db:"company_type"`
	SizeCode          string  `db:"size_code"`
	LocationCode      string  `db:"location_code"`
	TaxStatus         string  `db:"tax_status"`
	DomicileCondition string  `db:"domicile_condition"`
	Sex               string  `db:"sex"`
	Age               *int    `db:"age"`
	DebtAmount        float64 `db:"debt_amount"`
	RawDomicileFlag   string  `db:"raw_domicile_flag"` // pre-normalization value kept for audit
}
