// pkg/pipeline/render_test.go

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fiscaldata/taxpayer-ingress/pkg/catalog"
	"github.com/fiscaldata/taxpayer-ingress/pkg/migrate"
	"github.com/fiscaldata/taxpayer-ingress/pkg/report"
	"github.com/fiscaldata/taxpayer-ingress/pkg/staging"
)

func TestRenderSurfacesLoadTallies(t *testing.T) {
	summary := &RunSummary{
		RunID:      "0b5e7c52-0000-4000-8000-93a2f7f10001",
		FinalState: StateReported,
		Staging:    &staging.LoadResult{Accepted: 1048576, Dropped: 42},
		Catalogs:   &catalog.Result{Activities: 800, Locations: 30, CompanyTypes: 1},
		Migration: &migrate.MigrationResult{
			Inserted:       1000000,
			Discarded:      17,
			SkippedRows:    48559,
			BatchFallbacks: 3,
		},
		Report:   &report.Summary{TotalTaxpayers: 1000000},
		Duration: 92 * time.Second,
	}

	out := summary.Render()

	assert.Contains(t, out, "Run ID:                  0b5e7c52")
	assert.Contains(t, out, "Final State:             REPORTED")
	assert.Contains(t, out, "Rows Accepted:")
	assert.Contains(t, out, "1,048,576")
	assert.Contains(t, out, "Rows Dropped:")
	assert.Contains(t, out, "Catalog Rows Added:")
	assert.Contains(t, out, "831")
	assert.Contains(t, out, "Rows Inserted:")
	assert.Contains(t, out, "Rows Discarded:")
	assert.Contains(t, out, "Rows Filtered Out:")
	assert.Contains(t, out, "48,559")
	assert.Contains(t, out, "Batch Fallbacks:")
	assert.Contains(t, out, "Taxpayer Ingress Summary",
		"the stored-data report follows the run banner")
}

func TestRenderSkippedLoadOmitsTallies(t *testing.T) {
	summary := &RunSummary{
		RunID:       "0b5e7c52-0000-4000-8000-93a2f7f10002",
		FinalState:  StateReported,
		SkippedLoad: true,
		Report:      &report.Summary{TotalTaxpayers: 250},
	}

	out := summary.Render()

	assert.Contains(t, out, "Load stages skipped")
	assert.NotContains(t, out, "Load Tallies")
	assert.NotContains(t, out, "Rows Accepted:")
	assert.Contains(t, out, "Taxpayer Ingress Summary")
}

func TestRenderNotesAnalysisOutcome(t *testing.T) {
	failed := &RunSummary{FinalState: StateReported, AnalysisFailed: true}
	assert.Contains(t, failed.Render(), "Analysis suite failed")

	skipped := &RunSummary{FinalState: StateReported, AnalysisSkipped: true}
	assert.Contains(t, skipped.Render(), "Analysis suite skipped by request")
}
