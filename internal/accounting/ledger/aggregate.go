package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
)

// BuildAccountLedger folds the lines of one account into a running balance.
//
// The opening balance carries the account's normal-balance sign; every movement then adds
// debit minus credit, so closing equals opening plus the net of the lines shown.
func BuildAccountLedger(acc accounts.Account, q AccountQuery, before Totals, lines []Movement) AccountLedger {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b Movement) int {
		if c := a.EntryDate.Compare(b.EntryDate); c != 0 {
			return c
		}
		if c := strings.Compare(a.PieceNumber, b.PieceNumber); c != 0 {
			return c
		}
		return a.LineNumber - b.LineNumber
	})

	opening := acc.Signed(before.Debit, before.Credit)
	running := opening
	debit, credit := decimal.Zero, decimal.Zero
	for i := range sorted {
		m := &sorted[i]
		running = running.Add(m.Debit.Sub(m.Credit))
		m.Balance = running
		debit = debit.Add(m.Debit)
		credit = credit.Add(m.Credit)
	}
	if sorted == nil {
		sorted = []Movement{}
	}
	return AccountLedger{
		Account:            refOf(acc),
		FiscalYearID:       q.FiscalYearID,
		DateFrom:           q.DateFrom,
		DateTo:             q.DateTo,
		IncludeUnvalidated: q.IncludeUnvalidated,
		OpeningBalance:     opening,
		ClosingBalance:     running,
		TotalDebit:         debit,
		TotalCredit:        credit,
		LineCount:          len(sorted),
		Movements:          sorted,
	}
}

// BuildTrialBalance turns per-account totals into trial balance rows ordered by code.
// Rows with debit equal to credit are dropped unless requested; company totals always
// cover every account.
func BuildTrialBalance(q TrialBalanceQuery, totals []AccountTotal) TrialBalance {
	tb := TrialBalance{
		CompanyID:    q.CompanyID,
		FiscalYearID: q.FiscalYearID,
		AsOf:         q.AsOf,
		Rows:         make([]TrialBalanceRow, 0, len(totals)),
		TotalDebit:   decimal.Zero,
		TotalCredit:  decimal.Zero,
	}
	for _, t := range totals {
		tb.TotalDebit = tb.TotalDebit.Add(t.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(t.Credit)
		if !q.IncludeZeroBalances && t.Debit.Sub(t.Credit).IsZero() {
			continue
		}
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountRef: refOf(t.Account),
			Debit:      t.Debit,
			Credit:     t.Credit,
			Balance:    t.Account.Signed(t.Debit, t.Credit),
		})
	}
	slices.SortFunc(tb.Rows, func(a, b TrialBalanceRow) int { return strings.Compare(a.Code, b.Code) })
	tb.IsBalanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}
