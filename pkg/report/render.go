// pkg/report/render.go

package report

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Render produces the aligned text report. The caller decides where it goes;
// the run and report commands print it to stdout.
func (s *Summary) Render() string {
	report := fmt.Sprintf(`
Taxpayer Ingress Summary
========================
Generated:               %s
Total Taxpayers:         %s
Stored Analysis Results: %s
`,
		s.GeneratedAt.Format(time.RFC3339),
		humanize.Comma(s.TotalTaxpayers),
		humanize.Comma(s.AnalysisResults),
	)

	report += "\nTax Status Breakdown\n--------------------\n"
	for _, status := range s.ByTaxStatus {
		report += fmt.Sprintf("- %-28s %12s (%.1f%%)\n",
			status.Description,
			humanize.Comma(status.Total),
			percentage(status.Total, s.TotalTaxpayers))
	}

	if s.Debt != nil {
		report += fmt.Sprintf(`
Debt Overview
-------------
Total Debt:              S/ %s
Average Debt:            S/ %s
Largest Debt:            S/ %s
Taxpayers In Debt:       %s (%.1f%%)
`,
			money(s.Debt.Total),
			money(s.Debt.Average),
			money(s.Debt.Max),
			humanize.Comma(s.Debt.Debtors),
			percentage(s.Debt.Debtors, s.TotalTaxpayers),
		)
	}

	report += "\nTop Districts\n-------------\n"
	for _, district := range s.TopDistricts {
		report += fmt.Sprintf("- %-28s %12s\n",
			district.District, humanize.Comma(district.Total))
	}

	report += "\nTable Row Counts\n----------------\n"
	for _, table := range persistentTables {
		report += fmt.Sprintf("- %-28s %12s\n",
			table, humanize.Comma(s.TableCounts[table]))
	}

	return report
}

// money renders an amount with thousands separators and two decimals.
func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// percentage safely calculates a share, avoiding division by zero.
func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
