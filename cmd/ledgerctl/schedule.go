package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ohada-ledger/internal/assets"
)

var allMethods = []assets.MethodKind{
	assets.StraightLine,
	assets.DecliningBalance,
	assets.Progressive,
	assets.UnitsOfProduction,
}

type scheduleFlags struct {
	gross    string
	residual string
	units    string
	months   int
	method   string
	start    string
	fyEnd    string
	format   string
	compare  bool
}

func newScheduleCmd() *cobra.Command {
	var f scheduleFlags
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview a depreciation schedule without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asset, start, opts, err := f.parse()
			if err != nil {
				return err
			}
			if f.compare {
				return compareMethods(cmd.OutOrStdout(), asset, start, opts)
			}
			lines, err := assets.CalculateSchedule(asset, start, asset.Method, opts)
			if err != nil {
				return err
			}
			if f.format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lines)
			}
			return printSchedule(cmd.OutOrStdout(), lines)
		},
	}
	cmd.Flags().StringVar(&f.gross, "gross", "", "gross value")
	cmd.Flags().StringVar(&f.residual, "residual", "0", "residual value")
	cmd.Flags().StringVar(&f.units, "units", "", "total units for UNITS_OF_PRODUCTION")
	cmd.Flags().IntVar(&f.months, "months", 0, "duration in months")
	cmd.Flags().StringVar(&f.method, "method", string(assets.StraightLine), "depreciation method")
	cmd.Flags().StringVar(&f.start, "start", "", "first day of depreciation (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.fyEnd, "fy-end", "12-31", "fiscal year end (MM-DD)")
	cmd.Flags().StringVar(&f.format, "format", "table", "output format: table or json")
	cmd.Flags().BoolVar(&f.compare, "compare", false, "summarise every method side by side")
	_ = cmd.MarkFlagRequired("gross")
	_ = cmd.MarkFlagRequired("months")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func (f scheduleFlags) parse() (assets.Asset, time.Time, assets.ScheduleOptions, error) {
	var opts assets.ScheduleOptions
	gross, err := decimal.NewFromString(f.gross)
	if err != nil {
		return assets.Asset{}, time.Time{}, opts, fmt.Errorf("invalid --gross: %w", err)
	}
	residual, err := decimal.NewFromString(f.residual)
	if err != nil {
		return assets.Asset{}, time.Time{}, opts, fmt.Errorf("invalid --residual: %w", err)
	}
	start, err := time.Parse(time.DateOnly, f.start)
	if err != nil {
		return assets.Asset{}, time.Time{}, opts, fmt.Errorf("invalid --start: %w", err)
	}
	fyEnd, err := time.Parse("01-02", f.fyEnd)
	if err != nil {
		return assets.Asset{}, time.Time{}, opts, fmt.Errorf("invalid --fy-end: %w", err)
	}
	opts.Cutoff = assets.FiscalCutoff{Month: fyEnd.Month(), Day: fyEnd.Day()}

	asset := assets.Asset{
		Code:           "PREVIEW",
		GrossValue:     gross,
		ResidualValue:  residual,
		DurationMonths: f.months,
		Method:         assets.MethodKind(strings.ToUpper(f.method)),
		InServiceDate:  &start,
		Status:         assets.AssetInService,
		Depreciable:    true,
	}
	if f.units != "" {
		units, err := decimal.NewFromString(f.units)
		if err != nil {
			return assets.Asset{}, time.Time{}, opts, fmt.Errorf("invalid --units: %w", err)
		}
		asset.TotalUnits = &units
	}
	return asset, start, opts, nil
}

func printSchedule(out io.Writer, lines []assets.ScheduleLine) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tPERIOD\tFY\tRATE %\tAMOUNT\tCUMULATIVE\tNBV\t")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t\n", l.Period, l.Label, l.FiscalYear,
			l.Rate.StringFixed(4), l.Amount.StringFixed(2), l.Cumulative.StringFixed(2), l.NetBookValue.StringFixed(2))
	}
	return tw.Flush()
}

type methodSummary struct {
	method    assets.MethodKind
	first     decimal.Decimal
	firstYear decimal.Decimal
	total     decimal.Decimal
	err       error
}

// compareMethods computes every method concurrently. Units of production is skipped
// when no total units were given.
func compareMethods(out io.Writer, asset assets.Asset, start time.Time, opts assets.ScheduleOptions) error {
	summaries := make([]methodSummary, len(allMethods))
	var g errgroup.Group
	for i, method := range allMethods {
		g.Go(func() error {
			summaries[i].method = method
			lines, err := assets.CalculateSchedule(asset, start, method, opts)
			if err == nil && len(lines) == 0 {
				err = fmt.Errorf("empty schedule")
			}
			if err != nil {
				summaries[i].err = err
				return nil
			}
			s := &summaries[i]
			s.first = lines[0].Amount
			s.firstYear = decimal.Zero
			for _, l := range lines {
				if l.FiscalYear == lines[0].FiscalYear {
					s.firstYear = s.firstYear.Add(l.Amount)
				}
				s.total = s.total.Add(l.Amount)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tFIRST PERIOD\tFIRST FISCAL YEAR\tTOTAL\t")
	for _, s := range summaries {
		if s.err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%v\t\n", s.method, s.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", s.method, s.first.StringFixed(2), s.firstYear.StringFixed(2), s.total.StringFixed(2))
	}
	return tw.Flush()
}
