package assets

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

type period struct {
	index     int
	periods   int
	remaining decimal.Decimal
	start     time.Time
	end       time.Time
}

// calculator yields the unrounded charge of each period but the last. Implementations
// may keep state across calls and are built fresh for every schedule.
type calculator interface {
	next(p period) (decimal.Decimal, error)
}

func newCalculator(method MethodKind, asset Asset, base decimal.Decimal, opts ScheduleOptions) (calculator, error) {
	switch method {
	case StraightLine:
		return straightLine{monthly: base.Div(decimal.NewFromInt(int64(asset.DurationMonths)))}, nil
	case DecliningBalance:
		return newDeclining(asset.DurationMonths), nil
	case Progressive:
		return newProgressive(base, asset.DurationMonths), nil
	case UnitsOfProduction:
		return newUnits(asset, base, opts.Usage)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", shared.ErrInvalidAsset, method)
	}
}

type straightLine struct {
	monthly decimal.Decimal
}

func (s straightLine) next(period) (decimal.Decimal, error) {
	return s.monthly, nil
}

// DecliningCoefficient returns the SYSCOHADA coefficient applied to the straight-line
// rate for a useful life in whole years.
func DecliningCoefficient(years int) decimal.Decimal {
	switch {
	case years == 3 || years == 4:
		return decimal.RequireFromString("1.25")
	case years == 5 || years == 6:
		return decimal.RequireFromString("1.75")
	case years >= 7:
		return decimal.RequireFromString("2.25")
	default:
		return decimal.RequireFromString("1.75")
	}
}

type declining struct {
	annualRate decimal.Decimal
	switched   bool
}

func newDeclining(months int) *declining {
	years := decimal.NewFromInt(int64(months)).Div(twelve)
	rate := hundred.Div(years).Mul(DecliningCoefficient(months / 12))
	return &declining{annualRate: rate}
}

// next charges the declining amount on what remains until straight-line over the
// remaining periods catches up, then stays on straight-line.
func (d *declining) next(p period) (decimal.Decimal, error) {
	left := decimal.NewFromInt(int64(p.periods - p.index))
	straight := roundMoney(p.remaining.Div(left))
	if d.switched {
		return straight, nil
	}
	amount := roundMoney(p.remaining.Mul(d.annualRate).Div(hundred).Div(twelve))
	if amount.GreaterThan(straight) {
		return amount, nil
	}
	d.switched = true
	return straight, nil
}

// ProgressiveFactor is the growth of the yearly weight of a progressive plan.
var ProgressiveFactor = decimal.RequireFromString("1.1")

type progressive struct {
	monthly []decimal.Decimal
}

func newProgressive(base decimal.Decimal, months int) progressive {
	years := (months + 11) / 12
	weights := make([]decimal.Decimal, years)
	total := decimal.Zero
	w := decimal.NewFromInt(1)
	for k := range weights {
		weights[k] = w
		total = total.Add(w)
		w = w.Mul(ProgressiveFactor)
	}
	monthly := make([]decimal.Decimal, years)
	for k, weight := range weights {
		inYear := min(12, months-12*k)
		monthly[k] = base.Mul(weight).Div(total).Div(decimal.NewFromInt(int64(inYear)))
	}
	return progressive{monthly: monthly}
}

func (p progressive) next(per period) (decimal.Decimal, error) {
	return p.monthly[per.index/12], nil
}

type units struct {
	asset    Asset
	unitCost decimal.Decimal
	uniform  decimal.Decimal
	usage    UsageSource
}

func newUnits(asset Asset, base decimal.Decimal, usage UsageSource) (*units, error) {
	if asset.TotalUnits == nil || !asset.TotalUnits.IsPositive() {
		return nil, fmt.Errorf("%w: total units required for units of production", shared.ErrInvalidAsset)
	}
	return &units{
		asset:    asset,
		unitCost: base.Div(*asset.TotalUnits),
		uniform:  asset.TotalUnits.Div(decimal.NewFromInt(int64(asset.DurationMonths))),
		usage:    usage,
	}, nil
}

func (u *units) next(p period) (decimal.Decimal, error) {
	used := u.uniform
	if u.usage != nil {
		var err error
		used, err = u.usage.PeriodUsage(u.asset, p.index+1, p.start, p.end)
		if err != nil {
			return decimal.Zero, err
		}
		if used.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: negative usage for period %d", shared.ErrInvalidAsset, p.index+1)
		}
	}
	return u.unitCost.Mul(used), nil
}
