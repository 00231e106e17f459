package journals

import "time"

// Type classifies a journal.
type Type string

const (
	TypePurchases     Type = "PURCHASES"
	TypeSales         Type = "SALES"
	TypeTreasury      Type = "TREASURY"
	TypeMiscellaneous Type = "MISCELLANEOUS"
	TypeOpening       Type = "OPENING"
	TypePayroll       Type = "PAYROLL"
	TypeTax           Type = "TAX"
)

// Valid reports whether t is a known journal type.
func (t Type) Valid() bool {
	switch t {
	case TypePurchases, TypeSales, TypeTreasury, TypeMiscellaneous, TypeOpening, TypePayroll, TypeTax:
		return true
	}
	return false
}

// DefaultNumberFormat is applied when a journal declares no template.
const DefaultNumberFormat = "{PREFIX}{YYYY}{MM}-{SEQ:5}"

// Journal is a named subledger with its own numbering counter.
type Journal struct {
	ID                 int64
	CompanyID          int64
	Code               string
	Name               string
	Type               Type
	AutoNumbering      bool
	Prefix             string
	LastSequence       int64
	NumberFormat       string
	ValidationRequired bool
	ClosingDate        *time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AcceptsDate reports whether entries dated on date may still be posted.
func (j Journal) AcceptsDate(date time.Time) bool {
	if j.ClosingDate == nil {
		return true
	}
	return date.After(*j.ClosingDate)
}

// CreateInput describes a new journal.
type CreateInput struct {
	CompanyID          int64  `json:"company_id" validate:"required,gt=0"`
	Code               string `json:"code" validate:"required,max=10,alphanum"`
	Name               string `json:"name" validate:"required,max=120"`
	Type               Type   `json:"type" validate:"required"`
	AutoNumbering      *bool  `json:"auto_numbering"`
	Prefix             string `json:"prefix" validate:"max=10"`
	NumberFormat       string `json:"number_format" validate:"max=60"`
	ValidationRequired bool   `json:"validation_required"`
}

// CloseInput moves the closing date of a journal forward.
type CloseInput struct {
	JournalID   int64     `json:"-"`
	ClosingDate time.Time `json:"closing_date" validate:"required"`
}
