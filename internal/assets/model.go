package assets

import (
	"time"

	"github.com/shopspring/decimal"
)

// MethodKind names a depreciation method.
type MethodKind string

const (
	StraightLine      MethodKind = "STRAIGHT_LINE"
	DecliningBalance  MethodKind = "DECLINING_BALANCE"
	Progressive       MethodKind = "PROGRESSIVE"
	UnitsOfProduction MethodKind = "UNITS_OF_PRODUCTION"
)

// Valid reports whether m is a known method.
func (m MethodKind) Valid() bool {
	switch m {
	case StraightLine, DecliningBalance, Progressive, UnitsOfProduction:
		return true
	}
	return false
}

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	AssetDraft     AssetStatus = "DRAFT"
	AssetInService AssetStatus = "IN_SERVICE"
	AssetDisposed  AssetStatus = "DISPOSED"
)

// LineStatus is the state of a schedule line. FORECAST lines become REALIZED once posted.
type LineStatus string

const (
	LineForecast LineStatus = "FORECAST"
	LineRealized LineStatus = "REALIZED"
)

// Category groups assets sharing their posting accounts.
type Category struct {
	ID                     int64  `json:"id"`
	CompanyID              int64  `json:"company_id"`
	Code                   string `json:"code"`
	Name                   string `json:"name"`
	ExpenseAccountCode     string `json:"expense_account_code"`
	AccumulatedAccountCode string `json:"accumulated_account_code"`
	JournalCode            string `json:"journal_code,omitempty"`
}

// Asset is a depreciable fixed asset (immobilisation).
type Asset struct {
	ID                      int64            `json:"id"`
	CompanyID               int64            `json:"company_id"`
	CategoryID              int64            `json:"category_id"`
	SiteID                  *int64           `json:"site_id,omitempty"`
	Code                    string           `json:"code"`
	Name                    string           `json:"name"`
	GrossValue              decimal.Decimal  `json:"gross_value"`
	ResidualValue           decimal.Decimal  `json:"residual_value"`
	DepreciationBase        *decimal.Decimal `json:"depreciation_base,omitempty"`
	DurationMonths          int              `json:"duration_months"`
	Method                  MethodKind       `json:"method"`
	TotalUnits              *decimal.Decimal `json:"total_units,omitempty"`
	InServiceDate           *time.Time       `json:"in_service_date,omitempty"`
	DepreciationEndDate     *time.Time       `json:"depreciation_end_date,omitempty"`
	AccumulatedDepreciation decimal.Decimal  `json:"accumulated_depreciation"`
	NetBookValue            decimal.Decimal  `json:"net_book_value"`
	Status                  AssetStatus      `json:"status"`
	Depreciable             bool             `json:"depreciable"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// Base is the amount to depreciate: the explicit base when set, otherwise gross minus residual.
func (a Asset) Base() decimal.Decimal {
	if a.DepreciationBase != nil {
		return *a.DepreciationBase
	}
	return a.GrossValue.Sub(a.ResidualValue)
}

// ScheduleLine is one period of a depreciation plan.
type ScheduleLine struct {
	ID           int64           `json:"id,omitempty"`
	AssetID      int64           `json:"asset_id"`
	Period       int             `json:"period"`
	FiscalYear   int             `json:"fiscal_year"`
	Label        string          `json:"label"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Base         decimal.Decimal `json:"base"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	Cumulative   decimal.Decimal `json:"cumulative"`
	NetBookValue decimal.Decimal `json:"net_book_value"`
	Method       MethodKind      `json:"method"`
	Status       LineStatus      `json:"status"`
	EntryID      *int64          `json:"entry_id,omitempty"`
}

// FiscalCutoff is the month and day a fiscal year ends on.
type FiscalCutoff struct {
	Month time.Month
	Day   int
}

// CalendarYear ends on December 31.
var CalendarYear = FiscalCutoff{Month: time.December, Day: 31}

// YearOf returns the fiscal year a date belongs to, labelled by the calendar year it ends in.
func (c FiscalCutoff) YearOf(date time.Time) int {
	if date.Month() < c.Month || (date.Month() == c.Month && date.Day() <= c.Day) {
		return date.Year()
	}
	return date.Year() + 1
}

// Filter narrows a depreciation run.
type Filter struct {
	CategoryID *int64 `json:"category_id,omitempty"`
	SiteID     *int64 `json:"site_id,omitempty"`
}

// CreateCategoryInput registers a category.
type CreateCategoryInput struct {
	CompanyID              int64  `json:"company_id" validate:"required,gt=0"`
	Code                   string `json:"code" validate:"required,max=20"`
	Name                   string `json:"name" validate:"required,max=120"`
	ExpenseAccountCode     string `json:"expense_account_code" validate:"required,numeric,startswith=6"`
	AccumulatedAccountCode string `json:"accumulated_account_code" validate:"required,numeric,startswith=28"`
	JournalCode            string `json:"journal_code" validate:"omitempty,max=10"`
}

// CreateAssetInput registers an asset. An in-service date puts it in service immediately.
type CreateAssetInput struct {
	CompanyID        int64            `json:"company_id" validate:"required,gt=0"`
	CategoryID       int64            `json:"category_id" validate:"required,gt=0"`
	SiteID           *int64           `json:"site_id"`
	Code             string           `json:"code" validate:"required,max=30"`
	Name             string           `json:"name" validate:"required,max=120"`
	GrossValue       decimal.Decimal  `json:"gross_value"`
	ResidualValue    decimal.Decimal  `json:"residual_value"`
	DepreciationBase *decimal.Decimal `json:"depreciation_base"`
	DurationMonths   int              `json:"duration_months" validate:"required,gt=0,lte=1200"`
	Method           MethodKind       `json:"method" validate:"required"`
	TotalUnits       *decimal.Decimal `json:"total_units"`
	InServiceDate    *time.Time       `json:"in_service_date"`
}

// BatchInput triggers generate_monthly_depreciation_entries.
type BatchInput struct {
	CompanyID int64
	Date      time.Time
	Filter    Filter
	UserID    int64
}

// BatchResult aggregates a depreciation run.
type BatchResult struct {
	RunID           string          `json:"run_id"`
	CompanyID       int64           `json:"company_id"`
	Period          string          `json:"period"`
	AssetsProcessed int             `json:"assets_processed"`
	AssetsSkipped   int             `json:"assets_skipped"`
	EntriesCreated  int             `json:"entries_created"`
	EntryIDs        []int64         `json:"entry_ids"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Errors          []ItemFailure   `json:"errors"`
}

// ItemFailure is the serialisable form of a failed batch item.
type ItemFailure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}
