package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
)

// AccountQuery selects the general ledger of one account.
type AccountQuery struct {
	AccountID          int64
	FiscalYearID       int64
	DateFrom           *time.Time
	DateTo             *time.Time
	IncludeUnvalidated bool
}

// TrialBalanceQuery selects a company trial balance.
type TrialBalanceQuery struct {
	CompanyID           int64
	FiscalYearID        int64
	AsOf                *time.Time
	IncludeZeroBalances bool
}

// Totals is a debit/credit pair.
type Totals struct {
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Movement is one posted line as seen from its account.
type Movement struct {
	EntryID     int64           `json:"entry_id"`
	LineID      int64           `json:"line_id"`
	LineNumber  int             `json:"line_number"`
	EntryDate   time.Time       `json:"entry_date"`
	PieceNumber string          `json:"piece_number"`
	JournalCode string          `json:"journal_code"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Label       string          `json:"label"`
	Lettering   *string         `json:"lettering_code,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountRef is the account header of a report.
type AccountRef struct {
	ID            int64                  `json:"id"`
	CompanyID     int64                  `json:"company_id"`
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Class         int                    `json:"class"`
	NormalBalance accounts.NormalBalance `json:"normal_balance"`
}

func refOf(a accounts.Account) AccountRef {
	return AccountRef{ID: a.ID, CompanyID: a.CompanyID, Code: a.Code, Name: a.Name, Class: a.Class, NormalBalance: a.NormalBalance}
}

// AccountLedger is the general ledger of one account.
type AccountLedger struct {
	Account            AccountRef      `json:"account"`
	FiscalYearID       int64           `json:"fiscal_year_id"`
	DateFrom           *time.Time      `json:"date_from,omitempty"`
	DateTo             *time.Time      `json:"date_to,omitempty"`
	IncludeUnvalidated bool            `json:"include_unvalidated"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	ClosingBalance     decimal.Decimal `json:"closing_balance"`
	TotalDebit         decimal.Decimal `json:"total_debit"`
	TotalCredit        decimal.Decimal `json:"total_credit"`
	LineCount          int             `json:"line_count"`
	Movements          []Movement      `json:"movements"`
}

// AccountTotal is the aggregate of one account used to build a trial balance.
type AccountTotal struct {
	Account accounts.Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// TrialBalanceRow is one account line of the trial balance.
type TrialBalanceRow struct {
	AccountRef
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalance is the company-wide aggregation over a fiscal year.
type TrialBalance struct {
	CompanyID    int64             `json:"company_id"`
	FiscalYearID int64             `json:"fiscal_year_id"`
	AsOf         *time.Time        `json:"as_of,omitempty"`
	Rows         []TrialBalanceRow `json:"rows"`
	TotalDebit   decimal.Decimal   `json:"total_debit"`
	TotalCredit  decimal.Decimal   `json:"total_credit"`
	IsBalanced   bool              `json:"is_balanced"`
}
