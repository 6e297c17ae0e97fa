// pkg/pipeline/render.go

package pipeline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Render produces the run banner printed above the summary report. The load
// tallies exist only in memory, so this is where dropped and discarded row
// counts become visible without reading logs.
func (s *RunSummary) Render() string {
	out := fmt.Sprintf(`
Pipeline Run
============
Run ID:                  %s
Final State:             %s
Duration:                %s
`,
		s.RunID,
		s.FinalState,
		s.Duration.Round(time.Millisecond),
	)

	if s.SkippedLoad {
		out += "\nLoad stages skipped: the canonical store is already populated.\n"
	} else {
		out += "\nLoad Tallies\n------------\n"
		if s.Staging != nil {
			out += fmt.Sprintf("Rows Accepted:           %12s\n", humanize.Comma(s.Staging.Accepted))
			out += fmt.Sprintf("Rows Dropped:            %12s\n", humanize.Comma(s.Staging.Dropped))
		}
		if s.Catalogs != nil {
			added := s.Catalogs.Activities + s.Catalogs.Locations + s.Catalogs.CompanyTypes
			out += fmt.Sprintf("Catalog Rows Added:      %12s\n", humanize.Comma(added))
		}
		if s.Migration != nil {
			out += fmt.Sprintf("Rows Inserted:           %12s\n", humanize.Comma(s.Migration.Inserted))
			out += fmt.Sprintf("Rows Discarded:          %12s\n", humanize.Comma(s.Migration.Discarded))
			out += fmt.Sprintf("Rows Filtered Out:       %12s\n", humanize.Comma(s.Migration.SkippedRows))
			out += fmt.Sprintf("Batch Fallbacks:         %12s\n", humanize.Comma(int64(s.Migration.BatchFallbacks)))
		}
	}

	if s.AnalysisSkipped {
		out += "\nAnalysis suite skipped by request.\n"
	} else if s.AnalysisFailed {
		out += "\nAnalysis suite failed; stored results may be stale.\n"
	}

	if s.Report != nil {
		out += s.Report.Render()
	}
	return out
}
