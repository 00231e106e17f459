package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

// NormalBalance is the side on which an account's balance is naturally carried.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// Valid reports whether n is a known side.
func (n NormalBalance) Valid() bool {
	return n == NormalBalanceDebit || n == NormalBalanceCredit
}

// Account models a chart of accounts node.
type Account struct {
	ID               int64
	CompanyID        int64
	Code             string
	Name             string
	Class            int
	NormalBalance    NormalBalance
	ParentID         *int64
	IsActive         bool
	AllowDirectEntry bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPostable reports whether journal lines may reference the account directly.
func (a Account) IsPostable() bool {
	return a.IsActive && a.AllowDirectEntry
}

// Signed returns debit-credit for debit-natured accounts and credit-debit otherwise.
func (a Account) Signed(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalBalanceCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// ClassOf derives the SYSCOHADA class digit from an account code.
func ClassOf(code string) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, shared.ErrInvalidAccount
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, shared.ErrInvalidAccount
		}
	}
	class := int(code[0] - '0')
	if class < 1 || class > 9 {
		return 0, shared.ErrInvalidAccount
	}
	return class, nil
}

// DefaultNormalBalance returns the usual SYSCOHADA side for an account code.
func DefaultNormalBalance(code string) NormalBalance {
	class, err := ClassOf(code)
	if err != nil {
		return NormalBalanceDebit
	}
	prefix := func(p string) bool { return strings.HasPrefix(code, p) }
	switch class {
	case 1, 7:
		return NormalBalanceCredit
	case 2:
		if prefix("28") || prefix("29") {
			return NormalBalanceCredit
		}
	case 3:
		if prefix("39") {
			return NormalBalanceCredit
		}
	case 4:
		if prefix("445") {
			return NormalBalanceDebit
		}
		if prefix("40") || prefix("42") || prefix("43") || prefix("44") || prefix("49") {
			return NormalBalanceCredit
		}
	case 5:
		if prefix("59") {
			return NormalBalanceCredit
		}
	case 8:
		if prefix("82") || prefix("84") || prefix("86") || prefix("88") {
			return NormalBalanceCredit
		}
	}
	return NormalBalanceDebit
}

// CreateInput describes a new chart of accounts entry.
type CreateInput struct {
	CompanyID        int64         `json:"company_id" validate:"required,gt=0"`
	Code             string        `json:"code" validate:"required,numeric,max=12"`
	Name             string        `json:"name" validate:"required,max=200"`
	NormalBalance    NormalBalance `json:"normal_balance" validate:"omitempty,oneof=DEBIT CREDIT"`
	ParentID         *int64        `json:"parent_id"`
	AllowDirectEntry *bool         `json:"allow_direct_entry"`
}
