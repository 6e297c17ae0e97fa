// pkg/model/analysis.go
package model

import "time"

// AnalysisRow is one persisted metric produced by the analysis suite. Rows
// are grouped by AnalysisName; re-running an analysis replaces every row
// that carries its name.
type AnalysisRow struct {
	AnalysisName string    `db:"analysis_name"`
	Category     string    `db:"category"` // grouping key within the analysis (status, location, ...)
	Metric       string    `db:"metric"`   // measure name (count, total_debt, ...)
	NumericValue float64   `db:"numeric_value"`
	TextValue    string    `db:"text_value"` // display rendering of the value
	CreatedAt    time.Time `db:"created_at"` // set by the database
}
