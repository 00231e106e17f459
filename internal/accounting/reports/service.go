package reports

import (
	"context"
	"time"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/ledger"
)

// TrialBalanceSource supplies the trial balance statements are derived from.
type TrialBalanceSource interface {
	GetTrialBalance(ctx context.Context, q ledger.TrialBalanceQuery) (ledger.TrialBalance, error)
}

// Query selects the scope of a statement.
type Query struct {
	CompanyID    int64
	FiscalYearID int64
	AsOf         *time.Time
}

// Service builds financial statements. A trial balance that fails its integrity check is
// never turned into a statement.
type Service struct {
	source TrialBalanceSource
	now    func() time.Time
}

func NewService(source TrialBalanceSource) *Service {
	return &Service{source: source, now: time.Now}
}

func (s *Service) balances(ctx context.Context, q Query) ([]AccountBalance, Header, error) {
	tb, err := s.source.GetTrialBalance(ctx, ledger.TrialBalanceQuery{
		CompanyID:    q.CompanyID,
		FiscalYearID: q.FiscalYearID,
		AsOf:         q.AsOf,
	})
	if err != nil {
		return nil, Header{}, err
	}
	header := Header{CompanyID: q.CompanyID, FiscalYearID: q.FiscalYearID, AsOf: q.AsOf, GeneratedAt: s.now().UTC()}
	return BalancesFrom(tb), header, nil
}

// BalanceSheet returns the bilan.
func (s *Service) BalanceSheet(ctx context.Context, q Query) (BalanceSheetView, error) {
	accounts, header, err := s.balances(ctx, q)
	if err != nil {
		return BalanceSheetView{}, err
	}
	return BalanceSheetView{Header: header, Report: BuildBalanceSheet(accounts)}, nil
}

// IncomeStatement returns the compte de résultat.
func (s *Service) IncomeStatement(ctx context.Context, q Query) (IncomeStatementView, error) {
	accounts, header, err := s.balances(ctx, q)
	if err != nil {
		return IncomeStatementView{}, err
	}
	return IncomeStatementView{Header: header, Report: BuildIncomeStatement(accounts)}, nil
}

// ClassSummary returns the trial balance grouped by class.
func (s *Service) ClassSummary(ctx context.Context, q Query) (ClassSummaryView, error) {
	accounts, header, err := s.balances(ctx, q)
	if err != nil {
		return ClassSummaryView{}, err
	}
	return ClassSummaryView{Header: header, Report: BuildClassSummary(accounts)}, nil
}
