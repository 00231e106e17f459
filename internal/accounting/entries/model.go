package entries

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal entry lifecycle values.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusValidated Status = "VALIDATED"
	StatusClosed    Status = "CLOSED"
)

// BalanceTolerance is the currency-unit tolerance of the balance flag.
var BalanceTolerance = decimal.New(1, -2)

// Entry is an accounting voucher.
type Entry struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	JournalID    int64           `json:"journal_id"`
	JournalCode  string          `json:"journal_code"`
	FiscalYearID int64           `json:"fiscal_year_id"`
	PieceNumber  string          `json:"piece_number"`
	EntryDate    time.Time       `json:"entry_date"`
	ValueDate    *time.Time      `json:"value_date,omitempty"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	SourceModule string          `json:"source_module,omitempty"`
	SourceID     uuid.UUID       `json:"source_id"`
	Status       Status          `json:"status"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	IsBalanced   bool            `json:"is_balanced"`
	ReversalOf   *int64          `json:"reversal_of,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	ValidatedBy  *int64          `json:"validated_by,omitempty"`
	ValidatedAt  *time.Time      `json:"validated_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Lines        []Line          `json:"lines"`
}

// Line stores a debit or a credit against one account.
type Line struct {
	ID             int64            `json:"id"`
	EntryID        int64            `json:"entry_id"`
	LineNumber     int              `json:"line_number"`
	AccountID      int64            `json:"account_id"`
	AccountCode    string           `json:"account_code"`
	ThirdPartyID   *int64           `json:"third_party_id,omitempty"`
	Label          string           `json:"label"`
	Debit          decimal.Decimal  `json:"debit"`
	Credit         decimal.Decimal  `json:"credit"`
	Currency       string           `json:"currency"`
	CurrencyAmount *decimal.Decimal `json:"currency_amount,omitempty"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate,omitempty"`
	LetteringCode  *string          `json:"lettering_code,omitempty"`
	LetteredAt     *time.Time       `json:"lettered_at,omitempty"`
}

// Recompute refreshes the totals and the balance flag from the lines.
func (e *Entry) Recompute() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
	e.IsBalanced = debit.Sub(credit).Abs().LessThan(BalanceTolerance)
}

// AccountIDs returns the distinct accounts touched by the entry.
func (e Entry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	out := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		out = append(out, l.AccountID)
	}
	return out
}

// Header carries the user supplied entry fields.
type Header struct {
	EntryDate    time.Time  `json:"entry_date" validate:"required"`
	ValueDate    *time.Time `json:"value_date,omitempty"`
	Description  string     `json:"description" validate:"required,max=255"`
	Reference    string     `json:"reference,omitempty" validate:"max=100"`
	PieceNumber  string     `json:"piece_number,omitempty" validate:"max=50"`
	SourceModule string     `json:"source_module,omitempty" validate:"max=50"`
	SourceID     uuid.UUID  `json:"source_id,omitempty"`
}

// LineInput is one submitted line.
type LineInput struct {
	AccountCode    string           `json:"account_code"`
	Debit          decimal.Decimal  `json:"debit_amount"`
	Credit         decimal.Decimal  `json:"credit_amount"`
	Label          string           `json:"label"`
	Currency       string           `json:"currency"`
	CurrencyAmount *decimal.Decimal `json:"currency_amount,omitempty"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate,omitempty"`
	ThirdPartyID   *int64           `json:"third_party_id,omitempty"`
}

// CreateInput groups the fields of create_entry.
type CreateInput struct {
	CompanyID    int64       `json:"company_id" validate:"required,gt=0"`
	JournalCode  string      `json:"journal_code" validate:"required"`
	FiscalYearID int64       `json:"fiscal_year_id" validate:"required,gt=0"`
	Header       Header      `json:"header"`
	Lines        []LineInput `json:"lines" validate:"-"`
	AutoValidate bool        `json:"auto_validate"`
	UserID       int64       `json:"-"`
}

// UpdateInput replaces the header and the whole line set of a draft.
type UpdateInput struct {
	EntryID int64       `json:"-" validate:"required,gt=0"`
	Header  Header      `json:"header"`
	Lines   []LineInput `json:"lines" validate:"-"`
	UserID  int64       `json:"-"`
}

// DuplicateInput copies an entry into a new draft.
type DuplicateInput struct {
	EntryID     int64
	Date        time.Time
	Description string
	// FiscalYearID overrides the fiscal year; zero keeps the source year or looks one up by date.
	FiscalYearID int64
	UserID       int64
}

// ReverseInput mirrors a validated entry.
type ReverseInput struct {
	EntryID     int64
	Date        *time.Time
	Description string
	UserID      int64
}

// LetterInput matches offsetting lines of one account.
type LetterInput struct {
	CompanyID int64
	LineIDs   []int64
	Date      time.Time
	UserID    int64
}

// LetterLine is the lettering view of a persisted line.
type LetterLine struct {
	LineID        int64
	EntryID       int64
	EntryStatus   Status
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	LetteringCode *string
}

// ListFilter narrows list_entries.
type ListFilter struct {
	CompanyID    int64
	FiscalYearID int64
	JournalID    *int64
	Status       *Status
	Limit        int
	Offset       int
}
