package accounts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/ohada-ledger/testing"
)

func TestClassOf(t *testing.T) {
	class, err := ClassOf("411100")
	require.NoError(t, err)
	assert.Equal(t, 4, class)

	for _, bad := range []string{"", "0123", "41A", " "} {
		_, err := ClassOf(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultNormalBalance(t *testing.T) {
	cases := map[string]NormalBalance{
		"101":  NormalBalanceCredit,
		"2451": NormalBalanceDebit,
		"2845": NormalBalanceCredit,
		"401":  NormalBalanceCredit,
		"411":  NormalBalanceDebit,
		"443":  NormalBalanceCredit,
		"4452": NormalBalanceDebit,
		"521":  NormalBalanceDebit,
		"601":  NormalBalanceDebit,
		"6813": NormalBalanceDebit,
		"701":  NormalBalanceCredit,
		"82":   NormalBalanceCredit,
	}
	for code, want := range cases {
		assert.Equal(t, want, DefaultNormalBalance(code), code)
	}
}

func TestSignedBalance(t *testing.T) {
	debit := decimal.RequireFromString("150.00")
	credit := decimal.RequireFromString("40.00")

	asset := Account{NormalBalance: NormalBalanceDebit}
	assert.True(t, asset.Signed(debit, credit).Equal(decimal.RequireFromString("110")))

	revenue := Account{NormalBalance: NormalBalanceCredit}
	assert.True(t, revenue.Signed(debit, credit).Equal(decimal.RequireFromString("-110")))
}
