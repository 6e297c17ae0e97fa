// pkg/analysis/analyses_test.go

package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
)

func taxpayer(status, location, activity string, debt float64) model.TaxpayerRecord {
	return model.TaxpayerRecord{
		BusinessID:        1,
		ActivityCode:      activity,
		CompanyType:       "A",
		SizeCode:          "C",
		LocationCode:      location,
		TaxStatus:         status,
		DomicileCondition: "HABIDO",
		Sex:               "ND",
		DebtAmount:        debt,
		RawDomicileFlag:   "HABIDO",
	}
}

func age(n int) *int {
	return &n
}

func findRow(t *testing.T, rows []model.AnalysisRow, category, metric string) model.AnalysisRow {
	t.Helper()
	for _, r := range rows {
		if r.Category == category && r.Metric == metric {
			return r
		}
	}
	t.Fatalf("no row with category %q and metric %q", category, metric)
	return model.AnalysisRow{}
}

func TestByStatusAggregates(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 100),
		taxpayer("ACTIVO", "L1", "5220", 50),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("INACTIVO", "L1", "5220", 200),
	}

	out := byStatus(rows)

	require.Len(t, out, 6)
	assert.Equal(t, "ACTIVO", out[0].Category, "largest status group comes first")

	count := findRow(t, out, "ACTIVO", "count")
	assert.Equal(t, 3.0, count.NumericValue)
	assert.Equal(t, "3", count.TextValue)

	total := findRow(t, out, "ACTIVO", "total_debt")
	assert.Equal(t, 150.0, total.NumericValue)
	assert.Equal(t, "S/ 150.00", total.TextValue)

	avg := findRow(t, out, "ACTIVO", "average_debt")
	assert.InDelta(t, 50.0, avg.NumericValue, 0.001)

	assert.Equal(t, 200.0, findRow(t, out, "INACTIVO", "average_debt").NumericValue)
}

func TestDebtStatisticsOrderStatistics(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 300),
		taxpayer("ACTIVO", "L1", "5220", 100),
		taxpayer("ACTIVO", "L1", "5220", 1000),
		taxpayer("ACTIVO", "L1", "5220", 400),
		taxpayer("ACTIVO", "L1", "5220", 200),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("INACTIVO", "L1", "5220", 0),
	}

	out := debtStatistics(rows)

	require.Len(t, out, 6)
	assert.Equal(t, 5.0, findRow(t, out, "DEBT", "debtors").NumericValue)
	assert.Equal(t, 2000.0, findRow(t, out, "DEBT", "total_debt").NumericValue)
	assert.Equal(t, 400.0, findRow(t, out, "DEBT", "average_debt").NumericValue)
	assert.Equal(t, 300.0, findRow(t, out, "DEBT", "median_debt").NumericValue)
	assert.Equal(t, 1000.0, findRow(t, out, "DEBT", "p90_debt").NumericValue)
	assert.Equal(t, 1000.0, findRow(t, out, "DEBT", "max_debt").NumericValue)
	assert.Equal(t, "S/ 2,000.00", findRow(t, out, "DEBT", "total_debt").TextValue)
}

func TestDebtStatisticsEmptyBase(t *testing.T) {
	out := debtStatistics(nil)

	require.Len(t, out, 6)
	for _, r := range out {
		assert.Equal(t, 0.0, r.NumericValue, "metric %s must be zero", r.Metric)
	}
}

func TestByLocationAggregates(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "CHIMBOTE", "5220", 10),
		taxpayer("ACTIVO", "CHIMBOTE", "5220", 20),
		taxpayer("INACTIVO", "CHIMBOTE", "1512", 30),
		taxpayer("ACTIVO", "SANTA", "5220", 5),
	}

	out := byLocation(rows)

	require.Len(t, out, 8)
	assert.Equal(t, "CHIMBOTE", out[0].Category)

	assert.Equal(t, 3.0, findRow(t, out, "CHIMBOTE", "businesses").NumericValue)
	assert.Equal(t, 2.0, findRow(t, out, "CHIMBOTE", "active").NumericValue)
	assert.Equal(t, 2.0, findRow(t, out, "CHIMBOTE", "distinct_activities").NumericValue)
	assert.Equal(t, 60.0, findRow(t, out, "CHIMBOTE", "total_debt").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "SANTA", "businesses").NumericValue)
}

func TestByLocationKeepsTopFifteen(t *testing.T) {
	var rows []model.TaxpayerRecord
	for i := 1; i <= 16; i++ {
		rows = append(rows, taxpayer("ACTIVO", fmt.Sprintf("L%02d", i), "5220", 0))
	}

	out := byLocation(rows)

	assert.Len(t, out, topLocations*4)
	for _, r := range out {
		assert.NotEqual(t, "L16", r.Category, "the 16th location must be cut")
	}
}

func TestBySizeLabelsAndShares(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
	}
	rows[2].SizeCode = "M"
	rows[3].SizeCode = "G"
	rows[4].SizeCode = "X"

	out := bySize(rows)

	require.Len(t, out, 4)
	assert.Equal(t, "Micro/Small", out[0].Category)
	assert.Equal(t, "2 (40.0%)", out[0].TextValue)

	assert.Equal(t, 1.0, findRow(t, out, "Medium", "count").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "Large", "count").NumericValue)
	assert.Equal(t, "1 (20.0%)", findRow(t, out, "X", "count").TextValue,
		"unknown codes keep their code as label")
}

func TestByCompanyTypeLabels(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 0),
	}
	rows[2].CompanyType = "B"
	rows[3].CompanyType = "C"
	rows[4].CompanyType = "CE"
	rows[5].CompanyType = "-"

	out := byCompanyType(rows)

	require.Len(t, out, 5)
	categories := make([]string, len(out))
	for i, r := range out {
		categories[i] = r.Category
	}
	assert.Equal(t, []string{
		"Natural person", "Undefined", "Legal entity", "Cooperative", "Cooperative",
	}, categories)
}

func TestEconomicSectorsRollups(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 10),
		taxpayer("INACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "1512", 0),
		taxpayer("ACTIVO", "L1", "7010", 0),
		taxpayer("ACTIVO", "L1", "5510", 0),
		taxpayer("ACTIVO", "L1", "9309", 0),
	}

	out := economicSectors(rows)

	require.Len(t, out, 5*3+4)
	assert.Equal(t, "5220", out[0].Category, "top activity code comes first")

	assert.Equal(t, 2.0, findRow(t, out, "5220", "businesses").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "5220", "active").NumericValue)
	assert.Equal(t, 10.0, findRow(t, out, "5220", "total_debt").NumericValue)

	assert.Equal(t, 2.0, findRow(t, out, "SECTOR_52xx", "total").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "SECTOR_52xx", "active").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "SECTOR_15xx", "total").NumericValue)
	assert.Equal(t, 2.0, findRow(t, out, "SECTOR_70_55xx", "total").NumericValue)
}

func TestEconomicSectorsCapsAtTwenty(t *testing.T) {
	var rows []model.TaxpayerRecord
	for i := 0; i < 25; i++ {
		rows = append(rows, taxpayer("ACTIVO", "L1", fmt.Sprintf("%d", 9000+i), 0))
	}

	out := economicSectors(rows)

	assert.Len(t, out, topActivities*3+4)
}

func TestDemographics(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 100),
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ACTIVO", "L1", "5220", 50),
		taxpayer("ACTIVO", "L1", "5220", 0),
	}
	rows[0].Sex, rows[0].Age = "HOMBRE", age(25)
	rows[1].Sex, rows[1].Age = "HOMBRE", age(35)
	rows[2].Sex, rows[2].Age = "MUJER", nil
	rows[3].Sex, rows[3].Age = "ND", age(72)

	out := demographics(rows)

	require.Len(t, out, 3*3+len(ageRanges))

	assert.Equal(t, "2 (50.0%)", findRow(t, out, "HOMBRE", "count").TextValue)
	assert.Equal(t, 30.0, findRow(t, out, "HOMBRE", "average_age").NumericValue)
	assert.Equal(t, "30.0 years", findRow(t, out, "HOMBRE", "average_age").TextValue)
	assert.Equal(t, 50.0, findRow(t, out, "HOMBRE", "average_debt").NumericValue)

	assert.Equal(t, 0.0, findRow(t, out, "MUJER", "average_age").NumericValue,
		"unknown ages stay out of the average")

	assert.Equal(t, 1.0, findRow(t, out, "< 30 years", "count").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "30-39 years", "count").NumericValue)
	assert.Equal(t, 0.0, findRow(t, out, "40-49 years", "count").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "70+ years", "count").NumericValue)
}

func TestAgeRange(t *testing.T) {
	cases := map[int]string{
		1:  "< 30 years",
		29: "< 30 years",
		30: "30-39 years",
		39: "30-39 years",
		45: "40-49 years",
		59: "50-59 years",
		69: "60-69 years",
		70: "70+ years",
		95: "70+ years",
	}
	for in, want := range cases {
		assert.Equal(t, want, ageRange(in), "age %d", in)
	}
}

func TestDataQuality(t *testing.T) {
	rows := []model.TaxpayerRecord{
		taxpayer("ACTIVO", "L1", "5220", 0),
		taxpayer("ND", "L1", "5220", 0),
		taxpayer("ND", "L1", "5220", 0),
	}
	rows[0].Age = age(40)
	rows[1].DomicileCondition = "ND"
	rows[1].CompanyType = "-"
	rows[1].Age = nil
	rows[2].Age = age(30)

	out := dataQuality(rows)

	require.Len(t, out, 5+4)

	nullAge := findRow(t, out, "age", "nulls")
	assert.Equal(t, 1.0, nullAge.NumericValue)
	assert.Equal(t, "1 (33.3%)", nullAge.TextValue)
	assert.Equal(t, 0.0, findRow(t, out, "tax_status", "nulls").NumericValue)

	assert.Equal(t, 2.0, findRow(t, out, "QUALITY", "nd_status").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "QUALITY", "nd_condition").NumericValue)
	assert.Equal(t, 1.0, findRow(t, out, "QUALITY", "undefined_type").NumericValue)
	assert.Equal(t, 0.0, findRow(t, out, "QUALITY", "clean_records").NumericValue)
}

func TestRankedKeysOrdersByCountThenKey(t *testing.T) {
	keys := rankedKeys(map[string]int64{"a": 1, "b": 3, "c": 1})
	assert.Equal(t, []string{"b", "a", "c"}, keys)
}

func TestPercentileNearestRank(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
	assert.Equal(t, 5.0, percentile([]float64{5}, 0.5))
	assert.Equal(t, 5.0, percentile([]float64{5}, 0.9))

	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.0, percentile(sorted, 0.5))
	assert.Equal(t, 4.0, percentile(sorted, 0.9))
}

func TestBuildResultInsert(t *testing.T) {
	rows := []model.AnalysisRow{
		{Category: "ACTIVO", Metric: "count", NumericValue: 3, TextValue: "3"},
		{Category: "INACTIVO", Metric: "count", NumericValue: 1, TextValue: "1"},
	}

	query, args := buildResultInsert("Fiscal Health - By Status", rows)

	assert.Contains(t, query, "INSERT INTO analysis_results")
	assert.Contains(t, query, "(?, ?, ?, ?, ?), (?, ?, ?, ?, ?)")
	require.Len(t, args, 10)
	assert.Equal(t, "Fiscal Health - By Status", args[0], "name stamped on first row")
	assert.Equal(t, "Fiscal Health - By Status", args[5], "name stamped on second row")
	assert.Equal(t, "INACTIVO", args[6])
}
