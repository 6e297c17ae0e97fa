// pkg/report/report_test.go

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		TotalTaxpayers: 1234567,
		ByTaxStatus: []StatusCount{
			{Description: "Active taxpayer", Total: 1000000},
			{Description: "Inactive taxpayer", Total: 234567},
		},
		Debt: &DebtStats{
			Total:   98765432.10,
			Average: 1234.56,
			Max:     500000,
			Debtors: 80000,
		},
		TopDistricts: []DistrictCount{
			{District: "CHIMBOTE", Total: 900000},
			{District: "NUEVO CHIMBOTE", Total: 300000},
		},
		AnalysisResults: 48,
		TableCounts: map[string]int64{
			"taxpayers":            1234567,
			"economic_activities":  812,
			"company_types":        7,
			"company_sizes":        4,
			"geographic_locations": 35,
			"tax_statuses":         9,
			"domicile_conditions":  14,
		},
	}
}

func TestRenderIncludesEverySection(t *testing.T) {
	out := sampleSummary().Render()

	assert.Contains(t, out, "Taxpayer Ingress Summary")
	assert.Contains(t, out, "Tax Status Breakdown")
	assert.Contains(t, out, "Debt Overview")
	assert.Contains(t, out, "Top Districts")
	assert.Contains(t, out, "Table Row Counts")
}

func TestRenderFormatsCounts(t *testing.T) {
	out := sampleSummary().Render()

	assert.Contains(t, out, "Total Taxpayers:         1,234,567")
	assert.Contains(t, out, "Active taxpayer")
	assert.Contains(t, out, "1,000,000")
	assert.Contains(t, out, "CHIMBOTE")
	assert.Contains(t, out, "S/ 98,765,432.10")
}

func TestRenderSkipsDebtWhenNobodyOwes(t *testing.T) {
	summary := sampleSummary()
	summary.Debt = nil

	out := summary.Render()

	assert.NotContains(t, out, "Debt Overview")
	assert.Contains(t, out, "Top Districts")
}

func TestRenderListsTablesInFixedOrder(t *testing.T) {
	out := sampleSummary().Render()

	prev := -1
	for _, table := range persistentTables {
		idx := strings.Index(out, "- "+table)
		assert.Greater(t, idx, prev, "table %s out of order", table)
		prev = idx
	}
}

func TestRenderEmptySummary(t *testing.T) {
	summary := &Summary{
		GeneratedAt: time.Now(),
		TableCounts: map[string]int64{},
	}

	out := summary.Render()

	assert.Contains(t, out, "Total Taxpayers:         0")
	assert.NotContains(t, out, "Debt Overview")
}

func TestTopDistrictsTruncates(t *testing.T) {
	districts := []DistrictCount{
		{District: "A", Total: 70}, {District: "B", Total: 60},
		{District: "C", Total: 50}, {District: "D", Total: 40},
		{District: "E", Total: 30}, {District: "F", Total: 20},
		{District: "G", Total: 10},
	}

	top := topDistricts(districts, 5)

	assert.Len(t, top, 5)
	assert.Equal(t, "A", top[0].District)
	assert.Equal(t, "E", top[4].District)

	short := topDistricts(districts[:3], 5)
	assert.Len(t, short, 3)
}

func TestMoneyPadsToTwoDecimals(t *testing.T) {
	assert.Equal(t, "12,345.68", money(12345.6789))
}

func TestPercentageHandlesEmptyTotal(t *testing.T) {
	assert.Equal(t, 0.0, percentage(10, 0))
	assert.InDelta(t, 25.0, percentage(1, 4), 0.001)
}
