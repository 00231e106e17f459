package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/assets"
)

func newDepreciationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depreciation",
		Short: "Depreciation batch operations",
	}
	cmd.AddCommand(newDepreciationRunCmd())
	return cmd
}

func newDepreciationRunCmd() *cobra.Command {
	var (
		companyID  int64
		date       string
		categoryID int64
		siteID     int64
		userID     int64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Post the monthly depreciation of a company synchronously",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			calcDate, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			in := assets.BatchInput{CompanyID: companyID, Date: calcDate, UserID: userID}
			if categoryID > 0 {
				in.Filter.CategoryID = &categoryID
			}
			if siteID > 0 {
				in.Filter.SiteID = &siteID
			}

			rt, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, rt.Close()) }()

			result, err := rt.services.Assets.GenerateMonthlyDepreciationEntries(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if n := len(result.Errors); n > 0 {
				return fmt.Errorf("%d depreciation items failed: %w", n, result.Err())
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 0, "company id")
	cmd.Flags().StringVar(&date, "date", "", "calculation date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "restrict to one asset category")
	cmd.Flags().Int64Var(&siteID, "site", 0, "restrict to one site")
	cmd.Flags().Int64Var(&userID, "user", 0, "user recorded as author of the entries")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
