package reports

import "time"

// Header identifies the scope a statement was built for.
type Header struct {
	CompanyID    int64      `json:"company_id"`
	FiscalYearID int64      `json:"fiscal_year_id"`
	AsOf         *time.Time `json:"as_of,omitempty"`
	GeneratedAt  time.Time  `json:"generated_at"`
}

// BalanceSheetView is the balance sheet response.
type BalanceSheetView struct {
	Header
	Report BalanceSheet `json:"report"`
}

// IncomeStatementView is the income statement response.
type IncomeStatementView struct {
	Header
	Report IncomeStatement `json:"report"`
}

// ClassSummaryView is the class summary response.
type ClassSummaryView struct {
	Header
	Report ClassSummary `json:"report"`
}
