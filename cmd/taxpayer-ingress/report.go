// cmd/taxpayer-ingress/report.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiscaldata/taxpayer-ingress/pkg/report"
)

func newReportCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the summary report for the current canonical store",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer app.close()

			collector := report.NewCollector(app.conn, app.cfg.QueryTimeout())
			summary, err := collector.Collect(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.Render())
			return nil
		},
	}
}
