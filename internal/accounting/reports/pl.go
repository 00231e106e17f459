package reports

import (
	"slices"

	"github.com/shopspring/decimal"
)

// StatementLine is one account in a statement section.
type StatementLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Section groups statement lines under a heading.
type Section struct {
	Label string          `json:"label"`
	Lines []StatementLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func newSection(label string) Section {
	return Section{Label: label, Lines: []StatementLine{}, Total: decimal.Zero}
}

func (s *Section) add(acc AccountBalance, amount decimal.Decimal) {
	s.Lines = append(s.Lines, StatementLine{Code: acc.Code, Name: acc.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

func (s *Section) sort() {
	slices.SortFunc(s.Lines, func(a, b StatementLine) int { return byCode(AccountBalance{Code: a.Code}, AccountBalance{Code: b.Code}) })
}

// IncomeStatement is the compte de résultat built from classes 6 and 7, with the class 8
// accounts outside ordinary activities shown as a separate net result.
type IncomeStatement struct {
	Revenue        Section         `json:"revenue"`
	Expense        Section         `json:"expense"`
	OrdinaryResult decimal.Decimal `json:"ordinary_result"`
	NonOrdinary    Section         `json:"non_ordinary"`
	NetIncome      decimal.Decimal `json:"net_income"`
}

// BuildIncomeStatement aggregates class 7 accounts as revenue and class 6 as expense.
// Revenue is shown credit minus debit, expense debit minus credit. Class 8 lines are shown
// credit minus debit.
func BuildIncomeStatement(accounts []AccountBalance) IncomeStatement {
	revenue := newSection("Produits")
	expense := newSection("Charges")
	other := newSection("Hors activités ordinaires")

	for _, acc := range accounts {
		switch acc.Class {
		case 7:
			revenue.add(acc, acc.Net().Neg())
		case 6:
			expense.add(acc, acc.Net())
		case 8:
			other.add(acc, acc.Net().Neg())
		}
	}
	revenue.sort()
	expense.sort()
	other.sort()

	ordinary := revenue.Total.Sub(expense.Total)
	return IncomeStatement{
		Revenue:        revenue,
		Expense:        expense,
		OrdinaryResult: ordinary,
		NonOrdinary:    other,
		NetIncome:      ordinary.Add(other.Total),
	}
}
