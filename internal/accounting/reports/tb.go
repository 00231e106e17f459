package reports

import (
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/ledger"
)

// AccountBalance is a trial balance row reduced to what the statements need.
type AccountBalance struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Class  int             `json:"class"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// Net is debit minus credit.
func (a AccountBalance) Net() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// GroupKey returns the two-digit SYSCOHADA group of the account.
func (a AccountBalance) GroupKey() string {
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// BalancesFrom converts trial balance rows.
func BalancesFrom(tb ledger.TrialBalance) []AccountBalance {
	out := make([]AccountBalance, 0, len(tb.Rows))
	for _, row := range tb.Rows {
		out = append(out, AccountBalance{Code: row.Code, Name: row.Name, Class: row.Class, Debit: row.Debit, Credit: row.Credit})
	}
	return out
}

// ClassGroup aggregates the accounts of one class.
type ClassGroup struct {
	Class    int              `json:"class"`
	Label    string           `json:"label"`
	Accounts []AccountBalance `json:"accounts"`
	Debit    decimal.Decimal  `json:"debit"`
	Credit   decimal.Decimal  `json:"credit"`
}

// ClassSummary is the trial balance grouped by account class.
type ClassSummary struct {
	Groups      []ClassGroup    `json:"groups"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

var classLabels = map[int]string{
	1: "Ressources durables",
	2: "Actif immobilisé",
	3: "Stocks",
	4: "Tiers",
	5: "Trésorerie",
	6: "Charges des activités ordinaires",
	7: "Produits des activités ordinaires",
	8: "Autres charges et autres produits",
	9: "Engagements et analytique",
}

// BuildClassSummary groups account balances by class.
func BuildClassSummary(accounts []AccountBalance) ClassSummary {
	groups := make(map[int]*ClassGroup)
	keys := make([]int, 0)
	for _, acc := range accounts {
		grp, ok := groups[acc.Class]
		if !ok {
			label, known := classLabels[acc.Class]
			if !known {
				label = "Classe " + strconv.Itoa(acc.Class)
			}
			grp = &ClassGroup{Class: acc.Class, Label: label, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[acc.Class] = grp
			keys = append(keys, acc.Class)
		}
		grp.Accounts = append(grp.Accounts, acc)
		grp.Debit = grp.Debit.Add(acc.Debit)
		grp.Credit = grp.Credit.Add(acc.Credit)
	}

	slices.Sort(keys)
	result := ClassSummary{Groups: make([]ClassGroup, 0, len(keys)), TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		slices.SortFunc(grp.Accounts, byCode)
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

func byCode(a, b AccountBalance) int {
	switch {
	case a.Code < b.Code:
		return -1
	case a.Code > b.Code:
		return 1
	}
	return 0
}
