package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/jobs"
)

func newIntegrityCmd() *cobra.Command {
	var payload jobs.IntegrityPayload
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Rebuild trial balances of open fiscal years and verify they tie out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			rt, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, rt.Close()) }()

			report, err := jobs.RunGLIntegrityCheck(cmd.Context(), rt.services.Ledger, rt.services.FiscalYears, payload, rt.logger, nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checked %d fiscal years, %d out of balance, %d failed\n", report.Checked, len(report.Unbalanced), report.Failed)
			for _, u := range report.Unbalanced {
				fmt.Fprintf(out, "  %v\n", u)
			}
			if err != nil {
				return err
			}
			if len(report.Unbalanced) > 0 {
				return fmt.Errorf("%d fiscal years out of balance", len(report.Unbalanced))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&payload.CompanyID, "company", 0, "company id (all when zero)")
	cmd.Flags().Int64Var(&payload.FiscalYearID, "fiscal-year", 0, "fiscal year id (all open when zero)")
	return cmd
}
