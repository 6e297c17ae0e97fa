// pkg/catalog/seeds.go
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
	"github.com/fiscaldata/taxpayer-ingress/pkg/normalizer"
)

// LocationDefaults fills the province and department of locations discovered
// in the source, which carries only the raw location code.
type LocationDefaults struct {
	Province   string `yaml:"province"`
	Department string `yaml:"department"`
}

// Seeds holds the closed catalog contents and resolver defaults, loaded from
// the YAML seed file shipped with the binary.
type Seeds struct {
	TaxStatuses        []model.TaxStatus         `yaml:"tax_statuses"`
	DomicileConditions []model.DomicileCondition `yaml:"domicile_conditions"`
	CompanyTypes       []model.CompanyType       `yaml:"company_types"`
	CompanySizes       []model.CompanySize       `yaml:"company_sizes"`
	LocationDefaults   LocationDefaults          `yaml:"location_defaults"`
}

// LoadSeeds reads and validates the catalog seed file. Every fallback code a
// normalizer can emit must be present, otherwise migrated rows would violate
// the store's referential constraints.
func LoadSeeds(path string) (*Seeds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seeds Seeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if err := seeds.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &seeds, nil
}

func (s *Seeds) validate() error {
	if !hasTaxStatus(s.TaxStatuses, normalizer.Undetermined) {
		return fmt.Errorf("tax_statuses must include the %q fallback", normalizer.Undetermined)
	}
	if !hasDomicileCondition(s.DomicileConditions, normalizer.Undetermined) {
		return fmt.Errorf("domicile_conditions must include the %q fallback", normalizer.Undetermined)
	}
	if !hasCompanyType(s.CompanyTypes, normalizer.UndefinedType) {
		return fmt.Errorf("company_types must include the %q fallback", normalizer.UndefinedType)
	}
	if !hasCompanySize(s.CompanySizes, normalizer.DefaultSize) {
		return fmt.Errorf("company_sizes must include the %q default", normalizer.DefaultSize)
	}
	if s.LocationDefaults.Province == "" || s.LocationDefaults.Department == "" {
		return fmt.Errorf("location_defaults must set province and department")
	}
	return nil
}

func hasTaxStatus(entries []model.TaxStatus, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

func hasDomicileCondition(entries []model.DomicileCondition, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

func hasCompanyType(entries []model.CompanyType, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}

func hasCompanySize(entries []model.CompanySize, code string) bool {
	for _, e := range entries {
		if e.Code == code {
			return true
		}
	}
	return false
}
