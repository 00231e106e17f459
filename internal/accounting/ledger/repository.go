package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

// Repository is the read model behind the aggregator. Only entries past DRAFT count as
// posted unless includeUnvalidated is set.
type Repository interface {
	Account(ctx context.Context, id int64) (accounts.Account, error)
	FiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
	// SumBefore totals the account lines of the fiscal year dated strictly before before.
	SumBefore(ctx context.Context, accountID int64, fy periods.FiscalYear, before time.Time, includeUnvalidated bool) (Totals, error)
	// Movements lists the account lines of the fiscal year within the optional window.
	Movements(ctx context.Context, accountID int64, fy periods.FiscalYear, from, to *time.Time, includeUnvalidated bool) ([]Movement, error)
	// AccountTotals aggregates posted lines per account for active accounts and any account with postings.
	AccountTotals(ctx context.Context, companyID int64, fy periods.FiscalYear, asOf *time.Time) ([]AccountTotal, error)
}

type repository struct {
	pool     *pgxpool.Pool
	accounts accounts.Repository
	years    periods.Repository
}

// NewRepository returns the PostgreSQL read model.
func NewRepository(pool *pgxpool.Pool, accountRepo accounts.Repository, yearRepo periods.Repository) Repository {
	return &repository{pool: pool, accounts: accountRepo, years: yearRepo}
}

func (r *repository) Account(ctx context.Context, id int64) (accounts.Account, error) {
	return r.accounts.Get(ctx, id)
}

func (r *repository) FiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return r.years.Get(ctx, id)
}

func (r *repository) SumBefore(ctx context.Context, accountID int64, fy periods.FiscalYear, before time.Time, includeUnvalidated bool) (Totals, error) {
	var t Totals
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND e.fiscal_year_id=$2 AND e.entry_date < $3 AND ($4 OR e.status <> 'DRAFT')`,
		accountID, fy.ID, before, includeUnvalidated).Scan(&t.Debit, &t.Credit)
	return t, err
}

func (r *repository) Movements(ctx context.Context, accountID int64, fy periods.FiscalYear, from, to *time.Time, includeUnvalidated bool) ([]Movement, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT e.id, l.id, l.line_number, e.entry_date, e.piece_number, j.code, e.status,
e.description, l.label, l.lettering_code, l.debit, l.credit
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN journals j ON j.id = e.journal_id
WHERE l.account_id=$1 AND e.fiscal_year_id=$2
  AND ($3::date IS NULL OR e.entry_date >= $3)
  AND ($4::date IS NULL OR e.entry_date <= $4)
  AND ($5 OR e.status <> 'DRAFT')
ORDER BY e.entry_date, e.piece_number, l.line_number`, accountID, fy.ID, from, to, includeUnvalidated)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.EntryID, &m.LineID, &m.LineNumber, &m.EntryDate, &m.PieceNumber, &m.JournalCode, &m.Status,
			&m.Description, &m.Label, &m.Lettering, &m.Debit, &m.Credit); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) AccountTotals(ctx context.Context, companyID int64, fy periods.FiscalYear, asOf *time.Time) ([]AccountTotal, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT a.id, a.company_id, a.code, a.name, a.class, a.normal_balance, a.parent_id,
a.is_active, a.allow_direct_entry, a.created_at, a.updated_at, COALESCE(t.debit,0), COALESCE(t.credit,0)
FROM accounts a
LEFT JOIN (
  SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
  FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
  WHERE e.company_id=$1 AND e.fiscal_year_id=$2 AND e.status <> 'DRAFT'
    AND ($3::date IS NULL OR e.entry_date <= $3)
  GROUP BY l.account_id
) t ON t.account_id = a.id
WHERE a.company_id=$1 AND (a.is_active OR t.account_id IS NOT NULL)
ORDER BY a.code`, companyID, fy.ID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotal
	for rows.Next() {
		var (
			a             accounts.Account
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Class, &a.NormalBalance, &a.ParentID,
			&a.IsActive, &a.AllowDirectEntry, &a.CreatedAt, &a.UpdatedAt, &debit, &credit); err != nil {
			return nil, err
		}
		out = append(out, AccountTotal{Account: a, Debit: debit, Credit: credit})
	}
	return out, rows.Err()
}
