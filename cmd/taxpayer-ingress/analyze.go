// cmd/taxpayer-ingress/analyze.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/fiscaldata/taxpayer-ingress/pkg/analysis"
)

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Recompute and persist the analysis suite",
		Long: `Reads the canonical store once and recomputes every stored analysis,
replacing the previous results name by name. The canonical store is left
untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer app.close()

			timeout := app.cfg.QueryTimeout()
			suite := analysis.NewSuite(
				analysis.NewSQLSource(app.conn, timeout),
				analysis.NewSQLResultStore(app.conn, timeout))

			return suite.Run(cmd.Context())
		},
	}
}
