// pkg/analysis/analyses.go

package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/fiscaldata/taxpayer-ingress/pkg/model"
	"github.com/fiscaldata/taxpayer-ingress/pkg/normalizer"
)

// statusActive is the catalog code counted as an active business.
const statusActive = "ACTIVO"

const (
	topLocations  = 15
	topActivities = 20
)

// sizeLabels and companyTypeLabels rename catalog codes for the persisted
// results. Codes outside the map fall through unchanged.
var sizeLabels = map[string]string{
	"C": "Micro/Small",
	"M": "Medium",
	"G": "Large",
	"B": "Basic",
}

var companyTypeLabels = map[string]string{
	"A":  "Natural person",
	"B":  "Legal entity",
	"C":  "Cooperative",
	"CE": "Cooperative",
	"D":  "Sole proprietorship",
	"E":  "State-owned",
	"-":  "Undefined",
}

// byStatus breaks the taxpayer base down by tax status: headcount, debt
// carried, and the average debt per taxpayer in each status.
func byStatus(rows []model.TaxpayerRecord) []model.AnalysisRow {
	type agg struct {
		count int64
		debt  float64
	}
	groups := make(map[string]*agg)
	for i := range rows {
		g := groups[rows[i].TaxStatus]
		if g == nil {
			g = &agg{}
			groups[rows[i].TaxStatus] = g
		}
		g.count++
		g.debt += rows[i].DebtAmount
	}

	counts := make(map[string]int64, len(groups))
	for status, g := range groups {
		counts[status] = g.count
	}

	out := make([]model.AnalysisRow, 0, len(groups)*3)
	for _, status := range rankedKeys(counts) {
		g := groups[status]
		avg := g.debt / float64(g.count)
		out = append(out,
			row(status, "count", float64(g.count), humanize.Comma(g.count)),
			row(status, "total_debt", g.debt, soles(g.debt)),
			row(status, "average_debt", avg, soles(avg)),
		)
	}
	return out
}

// debtStatistics summarizes the taxpayers that owe anything. Order
// statistics use the nearest-rank method over the sorted debt amounts.
func debtStatistics(rows []model.TaxpayerRecord) []model.AnalysisRow {
	debts := make([]float64, 0, len(rows))
	var total float64
	for i := range rows {
		if rows[i].DebtAmount > 0 {
			debts = append(debts, rows[i].DebtAmount)
			total += rows[i].DebtAmount
		}
	}
	sort.Float64s(debts)

	debtors := int64(len(debts))
	var average, max float64
	if debtors > 0 {
		average = total / float64(debtors)
		max = debts[debtors-1]
	}

	return []model.AnalysisRow{
		row("DEBT", "debtors", float64(debtors), humanize.Comma(debtors)),
		row("DEBT", "total_debt", total, soles(total)),
		row("DEBT", "average_debt", average, soles(average)),
		row("DEBT", "median_debt", percentile(debts, 0.5), soles(percentile(debts, 0.5))),
		row("DEBT", "p90_debt", percentile(debts, 0.9), soles(percentile(debts, 0.9))),
		row("DEBT", "max_debt", max, soles(max)),
	}
}

// byLocation ranks locations by business concentration and keeps the top 15:
// total businesses, how many are active, how many distinct activities
// operate there, and the debt the location carries.
func byLocation(rows []model.TaxpayerRecord) []model.AnalysisRow {
	type agg struct {
		count      int64
		active     int64
		debt       float64
		activities map[string]struct{}
	}
	groups := make(map[string]*agg)
	for i := range rows {
		g := groups[rows[i].LocationCode]
		if g == nil {
			g = &agg{activities: make(map[string]struct{})}
			groups[rows[i].LocationCode] = g
		}
		g.count++
		if rows[i].TaxStatus == statusActive {
			g.active++
		}
		g.debt += rows[i].DebtAmount
		g.activities[rows[i].ActivityCode] = struct{}{}
	}

	counts := make(map[string]int64, len(groups))
	for location, g := range groups {
		counts[location] = g.count
	}

	keys := rankedKeys(counts)
	if len(keys) > topLocations {
		keys = keys[:topLocations]
	}

	out := make([]model.AnalysisRow, 0, len(keys)*4)
	for _, location := range keys {
		g := groups[location]
		out = append(out,
			row(location, "businesses", float64(g.count), humanize.Comma(g.count)),
			row(location, "active", float64(g.active), humanize.Comma(g.active)),
			row(location, "distinct_activities", float64(len(g.activities)),
				humanize.Comma(int64(len(g.activities)))),
			row(location, "total_debt", g.debt, soles(g.debt)),
		)
	}
	return out
}

// bySize counts taxpayers per size class, labeled for humans, with each
// class's share of the whole base in the text rendering.
func bySize(rows []model.TaxpayerRecord) []model.AnalysisRow {
	counts := make(map[string]int64)
	for i := range rows {
		counts[rows[i].SizeCode]++
	}

	total := int64(len(rows))
	out := make([]model.AnalysisRow, 0, len(counts))
	for _, size := range rankedKeys(counts) {
		label := sizeLabels[size]
		if label == "" {
			label = size
		}
		out = append(out, row(label, "count", float64(counts[size]), countShare(counts[size], total)))
	}
	return out
}

// byCompanyType counts taxpayers per legal form. C and CE both label as
// Cooperative, so the category can repeat across rows.
func byCompanyType(rows []model.TaxpayerRecord) []model.AnalysisRow {
	counts := make(map[string]int64)
	for i := range rows {
		counts[rows[i].CompanyType]++
	}

	total := int64(len(rows))
	out := make([]model.AnalysisRow, 0, len(counts))
	for _, code := range rankedKeys(counts) {
		label := companyTypeLabels[code]
		if label == "" {
			label = code
		}
		out = append(out, row(label, "count", float64(counts[code]), countShare(counts[code], total)))
	}
	return out
}

// economicSectors ranks the top 20 activity codes and adds fixed rollups for
// the retail (52), food industry (15), and real-estate/hospitality (70/55)
// code prefixes.
func economicSectors(rows []model.TaxpayerRecord) []model.AnalysisRow {
	type agg struct {
		count  int64
		active int64
		debt   float64
	}
	groups := make(map[string]*agg)
	var retail, retailActive, food, venues int64
	for i := range rows {
		code := rows[i].ActivityCode
		g := groups[code]
		if g == nil {
			g = &agg{}
			groups[code] = g
		}
		g.count++
		active := rows[i].TaxStatus == statusActive
		if active {
			g.active++
		}
		g.debt += rows[i].DebtAmount

		switch {
		case strings.HasPrefix(code, "52"):
			retail++
			if active {
				retailActive++
			}
		case strings.HasPrefix(code, "15"):
			food++
		case strings.HasPrefix(code, "70"), strings.HasPrefix(code, "55"):
			venues++
		}
	}

	counts := make(map[string]int64, len(groups))
	for code, g := range groups {
		counts[code] = g.count
	}

	keys := rankedKeys(counts)
	if len(keys) > topActivities {
		keys = keys[:topActivities]
	}

	out := make([]model.AnalysisRow, 0, len(keys)*3+4)
	for _, code := range keys {
		g := groups[code]
		out = append(out,
			row(code, "businesses", float64(g.count), humanize.Comma(g.count)),
			row(code, "active", float64(g.active), humanize.Comma(g.active)),
			row(code, "total_debt", g.debt, soles(g.debt)),
		)
	}

	out = append(out,
		row("SECTOR_52xx", "total", float64(retail), humanize.Comma(retail)),
		row("SECTOR_52xx", "active", float64(retailActive), humanize.Comma(retailActive)),
		row("SECTOR_15xx", "total", float64(food), humanize.Comma(food)),
		row("SECTOR_70_55xx", "total", float64(venues), humanize.Comma(venues)),
	)
	return out
}

// demographics breaks the base down by sex (count, average age over known
// ages, average debt) and buckets known positive ages into ranges.
func demographics(rows []model.TaxpayerRecord) []model.AnalysisRow {
	type agg struct {
		count    int64
		debt     float64
		ageSum   int64
		ageCount int64
	}
	groups := make(map[string]*agg)
	buckets := make(map[string]int64)
	for i := range rows {
		g := groups[rows[i].Sex]
		if g == nil {
			g = &agg{}
			groups[rows[i].Sex] = g
		}
		g.count++
		g.debt += rows[i].DebtAmount
		if age := rows[i].Age; age != nil && *age > 0 {
			g.ageSum += int64(*age)
			g.ageCount++
			buckets[ageRange(*age)]++
		}
	}

	counts := make(map[string]int64, len(groups))
	for sex, g := range groups {
		counts[sex] = g.count
	}

	total := int64(len(rows))
	out := make([]model.AnalysisRow, 0, len(groups)*3+len(ageRanges))
	for _, sex := range rankedKeys(counts) {
		g := groups[sex]
		var avgAge float64
		if g.ageCount > 0 {
			avgAge = float64(g.ageSum) / float64(g.ageCount)
		}
		avgDebt := g.debt / float64(g.count)
		out = append(out,
			row(sex, "count", float64(g.count), countShare(g.count, total)),
			row(sex, "average_age", avgAge, fmt.Sprintf("%.1f years", avgAge)),
			row(sex, "average_debt", avgDebt, soles(avgDebt)),
		)
	}

	for _, r := range ageRanges {
		n := buckets[r]
		out = append(out, row(r, "count", float64(n), humanize.Comma(n)))
	}
	return out
}

// dataQuality counts what normalization had to paper over: NULLs that made
// it into the canonical table, statuses and conditions that collapsed to
// the undetermined marker, and company types that collapsed to undefined.
func dataQuality(rows []model.TaxpayerRecord) []model.AnalysisRow {
	total := int64(len(rows))

	nulls := map[string]int64{
		"age":                0,
		"activity_code":      0,
		"company_type":       0,
		"tax_status":         0,
		"domicile_condition": 0,
	}
	var ndStatus, ndCondition, undefinedType int64
	for i := range rows {
		r := &rows[i]
		if r.Age == nil {
			nulls["age"]++
		}
		if r.ActivityCode == "" {
			nulls["activity_code"]++
		}
		if r.CompanyType == "" {
			nulls["company_type"]++
		}
		if r.TaxStatus == "" {
			nulls["tax_status"]++
		}
		if r.DomicileCondition == "" {
			nulls["domicile_condition"]++
		}
		if r.TaxStatus == normalizer.Undetermined {
			ndStatus++
		}
		if r.DomicileCondition == normalizer.Undetermined {
			ndCondition++
		}
		if r.CompanyType == normalizer.UndefinedType {
			undefinedType++
		}
	}

	columns := make([]string, 0, len(nulls))
	for column := range nulls {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	out := make([]model.AnalysisRow, 0, len(columns)+4)
	for _, column := range columns {
		out = append(out, row(column, "nulls", float64(nulls[column]), countShare(nulls[column], total)))
	}

	clean := total - ndStatus - ndCondition
	out = append(out,
		row("QUALITY", "nd_status", float64(ndStatus), humanize.Comma(ndStatus)),
		row("QUALITY", "nd_condition", float64(ndCondition), humanize.Comma(ndCondition)),
		row("QUALITY", "undefined_type", float64(undefinedType), humanize.Comma(undefinedType)),
		row("QUALITY", "clean_records", float64(clean), humanize.Comma(clean)),
	)
	return out
}

// ageRanges fixes the bucket order for the demographic breakdown.
var ageRanges = []string{
	"< 30 years", "30-39 years", "40-49 years", "50-59 years", "60-69 years", "70+ years",
}

func ageRange(age int) string {
	switch {
	case age < 30:
		return ageRanges[0]
	case age < 40:
		return ageRanges[1]
	case age < 50:
		return ageRanges[2]
	case age < 60:
		return ageRanges[3]
	case age < 70:
		return ageRanges[4]
	default:
		return ageRanges[5]
	}
}

// row shortens result construction; AnalysisName is stamped by the store.
func row(category, metric string, value float64, text string) model.AnalysisRow {
	return model.AnalysisRow{
		Category:     category,
		Metric:       metric,
		NumericValue: value,
		TextValue:    text,
	}
}

// rankedKeys orders group keys by descending count, ties broken by key, so
// results come out stable run over run.
func rankedKeys(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// percentile picks the nearest-rank order statistic from an ascending
// sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// soles renders a currency amount the way the source registry publishes it.
func soles(v float64) string {
	return "S/ " + humanize.FormatFloat("#,###.##", v)
}

// countShare renders a count with its share of the base.
func countShare(n, total int64) string {
	var pct float64
	if total > 0 {
		pct = float64(n) / float64(total) * 100
	}
	return fmt.Sprintf("%s (%.1f%%)", humanize.Comma(n), pct)
}
