// pkg/normalizer/normalizer.go

// Package normalizer maps raw field values from the source extract onto the
// codes the reference catalogs accept. The extract is dirty: status and
// domicile values arrive with corrupt numeric prefixes ('2ACTIVO', '2HABIDO'),
// company types carry trailing garbage ('A7', 'B9', 'AA'), and any field may
// be blank. Every function is total: any input, including the empty string,
// maps to a valid catalog code.
package normalizer

import "strings"

// Fallback codes for values that cannot be mapped.
const (
	Undetermined  = "ND" // unknown status, condition or sex
	UndefinedType = "-"  // unknown company type
	DefaultSize   = "C"  // unknown size class, treated as micro/small
)

var validTaxStatuses = map[string]bool{
	"ACTIVO": true, "INACTIVO": true,
	"1": true, "2": true, "3": true, "10": true, "11": true, "12": true,
}

var validDomicileConditions = map[string]bool{
	"HABIDO": true,
	"1":      true, "2": true, "3": true, "4": true, "5": true, "6": true,
	"7": true, "8": true, "9": true, "10": true, "11": true, "12": true,
}

var validCompanyTypes = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true, "CE": true, "-": true,
}

var validSizeClasses = map[string]bool{
	"C": true, "M": true, "G": true, "B": true,
}

// canon trims surrounding whitespace and upper-cases the value, the shared
// first step of every rule. Matching is case-insensitive on the result.
func canon(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// TaxStatus normalizes a registry-status value. The corrupt prefix form
// '2ACTIVO' collapses to 'ACTIVO'; known statuses and the numeric codes
// 1, 2, 3, 10, 11 and 12 pass through; everything else is Undetermined.
func TaxStatus(raw string) string {
	v := canon(raw)
	if v == "" {
		return Undetermined
	}
	if v == "2ACTIVO" {
		return "ACTIVO"
	}
	if validTaxStatuses[v] {
		return v
	}
	return Undetermined
}

// DomicileCondition normalizes a domicile flag. '2HABIDO' collapses to
// 'HABIDO'; 'HABIDO' and the numeric codes 1 through 12 pass through;
// everything else is Undetermined.
func DomicileCondition(raw string) string {
	v := canon(raw)
	if v == "" {
		return Undetermined
	}
	if v == "2HABIDO" {
		return "HABIDO"
	}
	if validDomicileConditions[v] {
		return v
	}
	return Undetermined
}

// CompanyType normalizes a legal-form code. Exact catalog codes pass
// through. For corrupted values like 'A7' or 'B9' only the first character
// tends to be meaningful, so a leading A through E truncates to that letter.
// Anything else is UndefinedType.
func CompanyType(raw string) string {
	v := canon(raw)
	if v == "" {
		return UndefinedType
	}
	if validCompanyTypes[v] {
		return v
	}
	if c := v[0]; c >= 'A' && c <= 'E' {
		return string(c)
	}
	return UndefinedType
}

// Sex normalizes a sex value to the two codes the canonical table accepts,
// or Undetermined.
func Sex(raw string) string {
	v := canon(raw)
	if v == "HOMBRE" || v == "MUJER" {
		return v
	}
	return Undetermined
}

// SizeClass normalizes a size-class code. Unknown values default to the
// micro/small class rather than Undetermined, matching how the registry
// treats unclassified businesses.
func SizeClass(raw string) string {
	v := canon(raw)
	if validSizeClasses[v] {
		return v
	}
	return DefaultSize
}
