package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
)

// Service answers ledger and trial balance queries. Reads never take row locks and may be
// served from the cache for up to its TTL.
type Service struct {
	repo    Repository
	cache   *Cache
	metrics *observability.LedgerMetrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService wires the aggregator. cache, metrics and logger may be nil.
func NewService(repo Repository, cache *Cache, metrics *observability.LedgerMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// GetAccountLedger returns the opening balance, the ordered movements with their running
// balance and the closing balance of one account.
func (s *Service) GetAccountLedger(ctx context.Context, q AccountQuery) (AccountLedger, error) {
	if q.AccountID <= 0 {
		return AccountLedger{}, &shared.FieldError{Field: "account_id"}
	}
	if q.FiscalYearID <= 0 {
		return AccountLedger{}, &shared.FieldError{Field: "fiscal_year_id"}
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateFrom.After(*q.DateTo) {
		return AccountLedger{}, fmt.Errorf("%w: date_from after date_to", shared.ErrValidation)
	}
	key, err := s.cache.AccountLedgerKey(ctx, q)
	if err != nil {
		return AccountLedger{}, err
	}
	var out AccountLedger
	hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.singleflight(ctx, key, func(ctx context.Context) (any, error) {
			return s.buildAccountLedger(ctx, q)
		})
	})
	if err != nil {
		return AccountLedger{}, err
	}
	s.recordCache("account_ledger", hit)
	return out, nil
}

func (s *Service) buildAccountLedger(ctx context.Context, q AccountQuery) (AccountLedger, error) {
	acc, err := s.repo.Account(ctx, q.AccountID)
	if err != nil {
		return AccountLedger{}, err
	}
	fy, err := s.repo.FiscalYear(ctx, q.FiscalYearID)
	if err != nil {
		return AccountLedger{}, err
	}
	if fy.CompanyID != acc.CompanyID {
		return AccountLedger{}, shared.ErrFiscalYearNotFound
	}
	before := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	if q.DateFrom != nil {
		before, err = s.repo.SumBefore(ctx, acc.ID, fy, *q.DateFrom, q.IncludeUnvalidated)
		if err != nil {
			return AccountLedger{}, err
		}
	}
	lines, err := s.repo.Movements(ctx, acc.ID, fy, q.DateFrom, q.DateTo, q.IncludeUnvalidated)
	if err != nil {
		return AccountLedger{}, err
	}
	return BuildAccountLedger(acc, q, before, lines), nil
}

// GetTrialBalance aggregates posted lines per account. When the totals do not tie out the
// report is still returned, together with an *shared.IntegrityError.
func (s *Service) GetTrialBalance(ctx context.Context, q TrialBalanceQuery) (TrialBalance, error) {
	if q.CompanyID <= 0 {
		return TrialBalance{}, &shared.FieldError{Field: "company_id"}
	}
	if q.FiscalYearID <= 0 {
		return TrialBalance{}, &shared.FieldError{Field: "fiscal_year_id"}
	}
	key, err := s.cache.TrialBalanceKey(ctx, q)
	if err != nil {
		return TrialBalance{}, err
	}
	var tb TrialBalance
	hit, err := s.cache.FetchJSON(ctx, key, &tb, func(ctx context.Context) (any, error) {
		return s.singleflight(ctx, key, func(ctx context.Context) (any, error) {
			return s.buildTrialBalance(ctx, q)
		})
	})
	if err != nil {
		return TrialBalance{}, err
	}
	s.recordCache("trial_balance", hit)
	return tb, s.checkBalanced(tb)
}

// CheckIntegrity rebuilds the trial balance from storage, bypassing the cache.
func (s *Service) CheckIntegrity(ctx context.Context, companyID, fiscalYearID int64) (TrialBalance, error) {
	tb, err := s.buildTrialBalance(ctx, TrialBalanceQuery{CompanyID: companyID, FiscalYearID: fiscalYearID})
	if err != nil {
		return TrialBalance{}, err
	}
	return tb, s.checkBalanced(tb)
}

func (s *Service) buildTrialBalance(ctx context.Context, q TrialBalanceQuery) (TrialBalance, error) {
	fy, err := s.repo.FiscalYear(ctx, q.FiscalYearID)
	if err != nil {
		return TrialBalance{}, err
	}
	if fy.CompanyID != q.CompanyID {
		return TrialBalance{}, shared.ErrFiscalYearNotFound
	}
	totals, err := s.repo.AccountTotals(ctx, q.CompanyID, fy, q.AsOf)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(q, totals), nil
}

func (s *Service) checkBalanced(tb TrialBalance) error {
	if tb.IsBalanced {
		return nil
	}
	err := &shared.IntegrityError{
		CompanyID:    tb.CompanyID,
		FiscalYearID: tb.FiscalYearID,
		Debit:        tb.TotalDebit,
		Credit:       tb.TotalCredit,
	}
	s.metrics.IntegrityFailure()
	s.logger.Error("trial balance out of balance",
		slog.Int64("company_id", tb.CompanyID),
		slog.Int64("fiscal_year_id", tb.FiscalYearID),
		slog.String("total_debit", tb.TotalDebit.StringFixed(2)),
		slog.String("total_credit", tb.TotalCredit.StringFixed(2)),
		slog.String("difference", tb.TotalDebit.Sub(tb.TotalCredit).StringFixed(2)),
		slog.Int("accounts", len(tb.Rows)),
	)
	return err
}

// singleflight shares one build per key. The build ignores the cancellation of whichever
// caller started it; each caller still stops waiting when its own ctx ends.
func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}

func (s *Service) recordCache(report string, hit bool) {
	if hit {
		s.metrics.CacheHit(report)
		return
	}
	s.metrics.CacheMiss(report)
}
