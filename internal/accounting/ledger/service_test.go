package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/ohada-ledger/testing"
)

type memoryLedger struct {
	accounts map[int64]accounts.Account
	years    map[int64]periods.FiscalYear
	lines    map[int64][]Movement
	builds   atomic.Int32
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		accounts: map[int64]accounts.Account{clients.ID: clients, sales.ID: sales, vat.ID: vat, bank.ID: bank},
		years: map[int64]periods.FiscalYear{
			1: {ID: 1, CompanyID: 7, Code: "FY2025", StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31), Status: periods.StatusOpen},
			9: {ID: 9, CompanyID: 8, Code: "OTHER", StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31), Status: periods.StatusOpen},
		},
		lines: map[int64][]Movement{
			clients.ID: {
				{EntryID: 1, LineID: 1, LineNumber: 1, EntryDate: day(2025, 2, 10), PieceNumber: "VT-1", Status: "VALIDATED", Debit: dec("1192.50")},
				{EntryID: 2, LineID: 5, LineNumber: 2, EntryDate: day(2025, 3, 5), PieceNumber: "BQ-1", Status: "VALIDATED", Credit: dec("1192.50")},
				{EntryID: 3, LineID: 7, LineNumber: 1, EntryDate: day(2025, 3, 9), PieceNumber: "VT-2", Status: "DRAFT", Debit: dec("50")},
			},
			sales.ID: {
				{EntryID: 1, LineID: 2, LineNumber: 2, EntryDate: day(2025, 2, 10), PieceNumber: "VT-1", Status: "VALIDATED", Credit: dec("1000")},
				{EntryID: 3, LineID: 8, LineNumber: 2, EntryDate: day(2025, 3, 9), PieceNumber: "VT-2", Status: "DRAFT", Credit: dec("50")},
			},
			vat.ID: {
				{EntryID: 1, LineID: 3, LineNumber: 3, EntryDate: day(2025, 2, 10), PieceNumber: "VT-1", Status: "VALIDATED", Credit: dec("192.50")},
			},
			bank.ID: {
				{EntryID: 2, LineID: 4, LineNumber: 1, EntryDate: day(2025, 3, 5), PieceNumber: "BQ-1", Status: "VALIDATED", Debit: dec("1192.50")},
			},
		},
	}
}

func (m *memoryLedger) Account(_ context.Context, id int64) (accounts.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (m *memoryLedger) FiscalYear(_ context.Context, id int64) (periods.FiscalYear, error) {
	fy, ok := m.years[id]
	if !ok {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return fy, nil
}

func posted(mv Movement, includeUnvalidated bool) bool {
	return includeUnvalidated || mv.Status != "DRAFT"
}

func (m *memoryLedger) SumBefore(_ context.Context, accountID int64, _ periods.FiscalYear, before time.Time, inc bool) (Totals, error) {
	t := Totals{}
	for _, mv := range m.lines[accountID] {
		if posted(mv, inc) && mv.EntryDate.Before(before) {
			t.Debit = t.Debit.Add(mv.Debit)
			t.Credit = t.Credit.Add(mv.Credit)
		}
	}
	return t, nil
}

func (m *memoryLedger) Movements(_ context.Context, accountID int64, _ periods.FiscalYear, from, to *time.Time, inc bool) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.lines[accountID] {
		if !posted(mv, inc) || (from != nil && mv.EntryDate.Before(*from)) || (to != nil && mv.EntryDate.After(*to)) {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (m *memoryLedger) AccountTotals(_ context.Context, companyID int64, _ periods.FiscalYear, asOf *time.Time) ([]AccountTotal, error) {
	m.builds.Add(1)
	var out []AccountTotal
	for id, acc := range m.accounts {
		if acc.CompanyID != companyID {
			continue
		}
		t := AccountTotal{Account: acc}
		for _, mv := range m.lines[id] {
			if posted(mv, false) && (asOf == nil || !mv.EntryDate.After(*asOf)) {
				t.Debit = t.Debit.Add(mv.Debit)
				t.Credit = t.Credit.Add(mv.Credit)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func newTestService(t *testing.T, repo Repository) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache, nil, slog.New(slog.NewTextHandler(io.Discard, nil))), cache
}

func TestGetAccountLedgerWindowAndFilter(t *testing.T) {
	svc, _ := newTestService(t, newMemoryLedger())
	from := day(2025, 3, 1)
	report, err := svc.GetAccountLedger(context.Background(), AccountQuery{AccountID: clients.ID, FiscalYearID: 1, DateFrom: &from})
	require.NoError(t, err)
	assert.True(t, report.OpeningBalance.Equal(dec("1192.50")))
	assert.Equal(t, 1, report.LineCount)
	assert.True(t, report.ClosingBalance.IsZero())

	withDrafts, err := svc.GetAccountLedger(context.Background(), AccountQuery{AccountID: clients.ID, FiscalYearID: 1, DateFrom: &from, IncludeUnvalidated: true})
	require.NoError(t, err)
	assert.Equal(t, 2, withDrafts.LineCount)
	assert.True(t, withDrafts.ClosingBalance.Equal(dec("50")))
}

func TestGetAccountLedgerRejectsBadQueries(t *testing.T) {
	svc, _ := newTestService(t, newMemoryLedger())
	from, to := day(2025, 4, 1), day(2025, 3, 1)
	_, err := svc.GetAccountLedger(context.Background(), AccountQuery{AccountID: clients.ID, FiscalYearID: 1, DateFrom: &from, DateTo: &to})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.GetAccountLedger(context.Background(), AccountQuery{AccountID: clients.ID, FiscalYearID: 9})
	require.ErrorIs(t, err, shared.ErrFiscalYearNotFound)

	_, err = svc.GetAccountLedger(context.Background(), AccountQuery{FiscalYearID: 1})
	require.ErrorIs(t, err, shared.ErrMissingField)
}

func TestGetTrialBalanceCachesUntilInvalidated(t *testing.T) {
	repo := newMemoryLedger()
	svc, cache := newTestService(t, repo)
	ctx := context.Background()
	q := TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1}

	tb, err := svc.GetTrialBalance(ctx, q)
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.TotalDebit.Equal(dec("2385")))
	assert.Len(t, tb.Rows, 3)

	cached, err := svc.GetTrialBalance(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 1, repo.builds.Load())
	assert.True(t, cached.TotalCredit.Equal(tb.TotalCredit))

	require.NoError(t, cache.Invalidate(ctx, 7, []int64{clients.ID}))
	_, err = svc.GetTrialBalance(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.builds.Load())
}

func TestGetTrialBalanceReportsIntegrityError(t *testing.T) {
	repo := newMemoryLedger()
	repo.lines[vat.ID][0].Credit = dec("192.49")
	svc, _ := newTestService(t, repo)

	tb, err := svc.GetTrialBalance(context.Background(), TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrIntegrity)
	var integrity *shared.IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.True(t, integrity.Debit.Equal(dec("2385")))
	assert.True(t, integrity.Credit.Equal(dec("2384.99")))
	assert.False(t, tb.IsBalanced)
	assert.NotEmpty(t, tb.Rows)

	_, err = svc.CheckIntegrity(context.Background(), 7, 1)
	assert.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestServiceWithoutCache(t *testing.T) {
	svc := NewService(newMemoryLedger(), nil, nil, nil)
	tb, err := svc.GetTrialBalance(context.Background(), TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1, IncludeZeroBalances: true})
	require.NoError(t, err)
	assert.Len(t, tb.Rows, 4)
}

type blockingLedger struct {
	*memoryLedger
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingLedger) AccountTotals(ctx context.Context, companyID int64, fy periods.FiscalYear, asOf *time.Time) ([]AccountTotal, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.memoryLedger.AccountTotals(ctx, companyID, fy, asOf)
}

func TestGetTrialBalanceSurvivesFirstCallerCancel(t *testing.T) {
	repo := &blockingLedger{memoryLedger: newMemoryLedger(), started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(repo, nil, nil, nil)
	q := TrialBalanceQuery{CompanyID: 7, FiscalYearID: 1}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetTrialBalance(first, q)
		firstErr <- err
	}()
	<-repo.started

	type outcome struct {
		tb  TrialBalance
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		tb, err := svc.GetTrialBalance(context.Background(), q)
		second <- outcome{tb, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)
	close(repo.release)

	got := <-second
	require.NoError(t, got.err)
	assert.True(t, got.tb.IsBalanced)
	assert.True(t, got.tb.TotalDebit.Equal(dec("2385")))
}
