package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/app"
	"github.com/odyssey-erp/ohada-ledger/jobs"
)

func newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit background jobs to the worker",
	}
	cmd.AddCommand(newEnqueueDepreciationCmd(), newEnqueueIntegrityCmd())
	return cmd
}

func withClient(fn func(*jobs.Client) (*asynq.TaskInfo, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, client.Close()) }()

		info, err := fn(client)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	}
}

func newEnqueueDepreciationCmd() *cobra.Command {
	var payload jobs.DepreciationPayload
	cmd := &cobra.Command{
		Use:   "depreciation",
		Short: "Enqueue a depreciation:monthly task",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withClient(func(c *jobs.Client) (*asynq.TaskInfo, error) {
		return c.EnqueueDepreciation(cmd.Context(), payload)
	})
	cmd.Flags().Int64Var(&payload.CompanyID, "company", 0, "company id (all open companies when zero)")
	cmd.Flags().StringVar(&payload.Date, "date", "", "calculation date (YYYY-MM-DD, defaults to last month end)")
	cmd.Flags().Int64Var(&payload.UserID, "user", 0, "user recorded as author of the entries")
	return cmd
}

func newEnqueueIntegrityCmd() *cobra.Command {
	var payload jobs.IntegrityPayload
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Enqueue a ledger:integrity task",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withClient(func(c *jobs.Client) (*asynq.TaskInfo, error) {
		return c.EnqueueIntegrity(cmd.Context(), payload)
	})
	cmd.Flags().Int64Var(&payload.CompanyID, "company", 0, "company id")
	cmd.Flags().Int64Var(&payload.FiscalYearID, "fiscal-year", 0, "fiscal year id")
	return cmd
}
