package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

var (
	clients = accounts.Account{ID: 1, CompanyID: 7, Code: "411", Class: 4, NormalBalance: accounts.NormalBalanceDebit, IsActive: true}
	sales   = accounts.Account{ID: 2, CompanyID: 7, Code: "701", Class: 7, NormalBalance: accounts.NormalBalanceCredit, IsActive: true}
	vat     = accounts.Account{ID: 3, CompanyID: 7, Code: "443", Class: 4, NormalBalance: accounts.NormalBalanceCredit, IsActive: true}
	bank    = accounts.Account{ID: 4, CompanyID: 7, Code: "521", Class: 5, NormalBalance: accounts.NormalBalanceDebit, IsActive: true}
)

func TestBuildAccountLedgerOrdersAndRuns(t *testing.T) {
	from := day(2025, 3, 1)
	q := AccountQuery{AccountID: clients.ID, FiscalYearID: 1, DateFrom: &from}
	before := Totals{Debit: dec("500"), Credit: dec("200")}
	lines := []Movement{
		{LineID: 3, EntryDate: day(2025, 3, 20), PieceNumber: "BQ-0001", LineNumber: 2, Credit: dec("1192.50")},
		{LineID: 2, EntryDate: day(2025, 3, 15), PieceNumber: "VT-0002", LineNumber: 1, Debit: dec("100")},
		{LineID: 1, EntryDate: day(2025, 3, 15), PieceNumber: "VT-0001", LineNumber: 1, Debit: dec("1192.50")},
	}

	report := BuildAccountLedger(clients, q, before, lines)

	assert.True(t, report.OpeningBalance.Equal(dec("300")))
	require.Len(t, report.Movements, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{report.Movements[0].LineID, report.Movements[1].LineID, report.Movements[2].LineID})
	assert.True(t, report.Movements[0].Balance.Equal(dec("1492.50")))
	assert.True(t, report.Movements[1].Balance.Equal(dec("1592.50")))
	assert.True(t, report.Movements[2].Balance.Equal(dec("400")))
	assert.True(t, report.ClosingBalance.Equal(dec("400")))
	assert.True(t, report.TotalDebit.Equal(dec("1292.50")))
	assert.True(t, report.TotalCredit.Equal(dec("1192.50")))
	assert.Equal(t, 3, report.LineCount)

	net := report.TotalDebit.Sub(report.TotalCredit)
	assert.True(t, report.ClosingBalance.Equal(report.OpeningBalance.Add(net)))
}

func TestBuildAccountLedgerCreditAccountSign(t *testing.T) {
	from := day(2025, 3, 1)
	q := AccountQuery{AccountID: sales.ID, FiscalYearID: 1, DateFrom: &from}
	before := Totals{Debit: dec("0"), Credit: dec("400")}
	lines := []Movement{
		{LineID: 1, EntryDate: day(2025, 3, 10), PieceNumber: "VT-1", Credit: dec("1000")},
		{LineID: 2, EntryDate: day(2025, 3, 12), PieceNumber: "VT-2", Debit: dec("250")},
	}
	report := BuildAccountLedger(sales, q, before, lines)

	assert.True(t, report.OpeningBalance.Equal(dec("400")), report.OpeningBalance.String())
	assert.True(t, report.Movements[0].Balance.Equal(dec("-600")), report.Movements[0].Balance.String())
	assert.True(t, report.ClosingBalance.Equal(dec("-350")), report.ClosingBalance.String())

	net := decimal.Zero
	for _, m := range lines {
		net = net.Add(m.Debit.Sub(m.Credit))
	}
	assert.True(t, report.ClosingBalance.Equal(report.OpeningBalance.Add(net)))
}

func TestBuildAccountLedgerEmpty(t *testing.T) {
	report := BuildAccountLedger(bank, AccountQuery{AccountID: bank.ID}, Totals{}, nil)
	assert.NotNil(t, report.Movements)
	assert.Zero(t, report.LineCount)
	assert.True(t, report.ClosingBalance.IsZero())
}

func TestBuildTrialBalance(t *testing.T) {
	totals := []AccountTotal{
		{Account: sales, Debit: dec("0"), Credit: dec("1000")},
		{Account: clients, Debit: dec("1192.50"), Credit: dec("1192.50")},
		{Account: vat, Debit: dec("0"), Credit: dec("192.50")},
		{Account: bank, Debit: dec("1192.50"), Credit: dec("0")},
	}
	tb := BuildTrialBalance(TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1}, totals)

	require.Len(t, tb.Rows, 3)
	assert.Equal(t, []string{"443", "521", "701"}, []string{tb.Rows[0].Code, tb.Rows[1].Code, tb.Rows[2].Code})
	assert.True(t, tb.Rows[0].Balance.Equal(dec("192.50")))
	assert.True(t, tb.Rows[1].Balance.Equal(dec("1192.50")))
	assert.True(t, tb.Rows[2].Balance.Equal(dec("1000")))
	assert.True(t, tb.TotalDebit.Equal(dec("2385")))
	assert.True(t, tb.TotalCredit.Equal(dec("2385")))
	assert.True(t, tb.IsBalanced)

	withZero := BuildTrialBalance(TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1, IncludeZeroBalances: true}, totals)
	assert.Len(t, withZero.Rows, 4)
	assert.True(t, withZero.TotalDebit.Equal(tb.TotalDebit))
}

func TestBuildTrialBalanceDetectsMismatch(t *testing.T) {
	tb := BuildTrialBalance(TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1}, []AccountTotal{
		{Account: clients, Debit: dec("100"), Credit: dec("0")},
		{Account: sales, Debit: dec("0"), Credit: dec("99.99")},
	})
	assert.False(t, tb.IsBalanced)
}
