package assets

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

// PeriodLabel formats the label of the monthly period containing date.
const PeriodLabel = "2006-01"

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// UsageSource reports the units an asset consumed during one period.
type UsageSource interface {
	PeriodUsage(asset Asset, period int, start, end time.Time) (decimal.Decimal, error)
}

// ScheduleOptions tune a calculation. The zero value uses a calendar fiscal year and a
// uniform usage estimate.
type ScheduleOptions struct {
	Cutoff FiscalCutoff
	Usage  UsageSource
}

// CalculateSchedule returns the full period-by-period plan of an asset from start using
// method. It has no side effects. Every period amount is rounded half-up to the cent and
// the last period takes the exact remainder, so the amounts always sum to the base.
func CalculateSchedule(asset Asset, start time.Time, method MethodKind, opts ScheduleOptions) ([]ScheduleLine, error) {
	base := asset.Base()
	if !base.IsPositive() {
		return nil, fmt.Errorf("%w: depreciation base must be positive, got %s", shared.ErrInvalidAsset, base.StringFixed(2))
	}
	n := asset.DurationMonths
	if n <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", shared.ErrInvalidAsset)
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start date required", shared.ErrInvalidAsset)
	}
	if opts.Cutoff.Month == 0 {
		opts.Cutoff = CalendarYear
	}
	calc, err := newCalculator(method, asset, base, opts)
	if err != nil {
		return nil, err
	}

	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	firstMonth := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	lines := make([]ScheduleLine, 0, n)
	cumulative := decimal.Zero
	for i := 0; i < n; i++ {
		monthStart := firstMonth.AddDate(0, i, 0)
		periodStart := monthStart
		if i == 0 {
			periodStart = start
		}
		periodEnd := monthStart.AddDate(0, 1, -1)
		remaining := base.Sub(cumulative)

		amount := remaining
		if i < n-1 {
			raw, err := calc.next(period{index: i, periods: n, remaining: remaining, start: periodStart, end: periodEnd})
			if err != nil {
				return nil, err
			}
			amount = clamp(roundMoney(raw), remaining)
		}
		cumulative = cumulative.Add(amount)

		lines = append(lines, ScheduleLine{
			AssetID:      asset.ID,
			Period:       i + 1,
			FiscalYear:   opts.Cutoff.YearOf(periodEnd),
			Label:        monthStart.Format(PeriodLabel),
			StartDate:    periodStart,
			EndDate:      periodEnd,
			Base:         base,
			Rate:         amount.Mul(hundred).Div(base).Round(4),
			Amount:       amount,
			Cumulative:   cumulative,
			NetBookValue: netBookValue(asset, cumulative),
			Method:       method,
			Status:       LineForecast,
		})
	}
	return lines, nil
}

// ChargeFor returns the schedule line of the month containing date for an asset in
// service, with its amount based on what is left after the depreciation already booked.
// Declining balance recomputes the charge on the current remaining base and the final
// period takes whatever is left. It reports false when the asset has nothing to charge
// for that month.
func ChargeFor(asset Asset, date time.Time, opts ScheduleOptions) (ScheduleLine, bool, error) {
	if asset.InServiceDate == nil {
		return ScheduleLine{}, false, shared.ErrAssetNotInService
	}
	if asset.DepreciationEndDate != nil && date.After(*asset.DepreciationEndDate) {
		return ScheduleLine{}, false, nil
	}
	lines, err := CalculateSchedule(asset, *asset.InServiceDate, asset.Method, opts)
	if err != nil {
		return ScheduleLine{}, false, err
	}
	label := date.Format(PeriodLabel)
	for _, line := range lines {
		if line.Label != label {
			continue
		}
		left := asset.Base().Sub(asset.AccumulatedDepreciation)
		switch {
		case line.Period == len(lines):
			line.Amount = left
		case asset.Method == DecliningBalance:
			// The declining/straight comparison depends only on the periods left, so a
			// fresh calculator keeps the switch one-way.
			raw, err := newDeclining(asset.DurationMonths).next(period{
				index:     line.Period - 1,
				periods:   len(lines),
				remaining: left,
			})
			if err != nil {
				return ScheduleLine{}, false, err
			}
			line.Amount = roundMoney(raw)
		}
		line.Amount = clamp(line.Amount, left)
		if !line.Amount.IsPositive() {
			return ScheduleLine{}, false, nil
		}
		line.Cumulative = asset.AccumulatedDepreciation.Add(line.Amount)
		line.NetBookValue = netBookValue(asset, line.Cumulative)
		line.Rate = line.Amount.Mul(hundred).Div(line.Base).Round(4)
		return line, true, nil
	}
	return ScheduleLine{}, false, nil
}

func netBookValue(asset Asset, cumulative decimal.Decimal) decimal.Decimal {
	nbv := asset.GrossValue.Sub(cumulative)
	if nbv.LessThan(asset.ResidualValue) {
		return asset.ResidualValue
	}
	return nbv
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func clamp(amount, remaining decimal.Decimal) decimal.Decimal {
	if amount.GreaterThan(remaining) {
		amount = remaining
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
