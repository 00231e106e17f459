package reports

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceSheet is the bilan built from classes 1 to 5. The result of the year comes from
// the income statement and is carried in equity.
type BalanceSheet struct {
	FixedAssets               Section         `json:"fixed_assets"`
	CurrentAssets             Section         `json:"current_assets"`
	CashAssets                Section         `json:"cash_assets"`
	Equity                    Section         `json:"equity"`
	Liabilities               Section         `json:"liabilities"`
	CashLiabilities           Section         `json:"cash_liabilities"`
	NetIncome                 decimal.Decimal `json:"net_income"`
	TotalAssets               decimal.Decimal `json:"total_assets"`
	TotalEquityAndLiabilities decimal.Decimal `json:"total_equity_and_liabilities"`
	IsBalanced                bool            `json:"is_balanced"`
}

// BuildBalanceSheet classifies class 1 to 5 balances.
//
// Class 1 groups 10 to 15 are equity, the rest long-term debt. Class 2 nets depreciation
// (28) and impairment (29) into fixed assets. Class 4 and class 5 accounts land on the
// side their balance falls on.
func BuildBalanceSheet(accounts []AccountBalance) BalanceSheet {
	bs := BalanceSheet{
		FixedAssets:     newSection("Actif immobilisé"),
		CurrentAssets:   newSection("Actif circulant"),
		CashAssets:      newSection("Trésorerie actif"),
		Equity:          newSection("Capitaux propres"),
		Liabilities:     newSection("Dettes"),
		CashLiabilities: newSection("Trésorerie passif"),
	}

	for _, acc := range accounts {
		net := acc.Net()
		switch acc.Class {
		case 1:
			if equityGroup(acc.GroupKey()) {
				bs.Equity.add(acc, net.Neg())
			} else {
				bs.Liabilities.add(acc, net.Neg())
			}
		case 2:
			bs.FixedAssets.add(acc, net)
		case 3:
			bs.CurrentAssets.add(acc, net)
		case 4:
			if net.IsNegative() {
				bs.Liabilities.add(acc, net.Neg())
			} else {
				bs.CurrentAssets.add(acc, net)
			}
		case 5:
			if net.IsNegative() {
				bs.CashLiabilities.add(acc, net.Neg())
			} else {
				bs.CashAssets.add(acc, net)
			}
		}
	}

	bs.NetIncome = BuildIncomeStatement(accounts).NetIncome
	bs.Equity.Lines = append(bs.Equity.Lines, StatementLine{Code: "13", Name: "Résultat net de l'exercice", Amount: bs.NetIncome})
	bs.Equity.Total = bs.Equity.Total.Add(bs.NetIncome)

	for _, s := range []*Section{&bs.FixedAssets, &bs.CurrentAssets, &bs.CashAssets, &bs.Equity, &bs.Liabilities, &bs.CashLiabilities} {
		s.sort()
	}

	bs.TotalAssets = bs.FixedAssets.Total.Add(bs.CurrentAssets.Total).Add(bs.CashAssets.Total)
	bs.TotalEquityAndLiabilities = bs.Equity.Total.Add(bs.Liabilities.Total).Add(bs.CashLiabilities.Total)
	bs.IsBalanced = bs.TotalAssets.Equal(bs.TotalEquityAndLiabilities)
	return bs
}

func equityGroup(group string) bool {
	return strings.Compare(group, "10") >= 0 && strings.Compare(group, "15") <= 0
}
