package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

// Repository persists fiscal years.
type Repository interface {
	Get(ctx context.Context, id int64) (FiscalYear, error)
	// GetForPosting takes a share lock so Close waits for in-flight postings.
	GetForPosting(ctx context.Context, id int64) (FiscalYear, error)
	FindByDate(ctx context.Context, companyID int64, date time.Time) (FiscalYear, error)
	ListOpen(ctx context.Context) ([]FiscalYear, error)
	Insert(ctx context.Context, in CreateInput) (FiscalYear, error)
	Close(ctx context.Context, id, actorID int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const columns = `id, company_id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

// Scan reads a fiscal year row.
func Scan(row pgx.Row) (FiscalYear, error) {
	var f FiscalYear
	err := row.Scan(&f.ID, &f.CompanyID, &f.Code, &f.StartDate, &f.EndDate, &f.Status, &f.ClosedAt, &f.ClosedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrFiscalYearNotFound
		}
		return FiscalYear{}, err
	}
	return f, nil
}

// Columns exposes the select list used by Scan.
func Columns() string { return columns }

func (r *repository) Get(ctx context.Context, id int64) (FiscalYear, error) {
	return Scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+columns+` FROM fiscal_years WHERE id=$1`, id))
}

func (r *repository) GetForPosting(ctx context.Context, id int64) (FiscalYear, error) {
	return Scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+columns+` FROM fiscal_years WHERE id=$1 FOR SHARE`, id))
}

// FindByDate returns the fiscal year of the company covering date.
func (r *repository) FindByDate(ctx context.Context, companyID int64, date time.Time) (FiscalYear, error) {
	return Scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+columns+`
FROM fiscal_years WHERE company_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, companyID, date))
}

func (r *repository) ListOpen(ctx context.Context) ([]FiscalYear, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+columns+` FROM fiscal_years WHERE status='OPEN' ORDER BY company_id, start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FiscalYear
	for rows.Next() {
		f, err := Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, in CreateInput) (FiscalYear, error) {
	return Scan(db.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO fiscal_years (company_id, code, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'OPEN') RETURNING `+columns, in.CompanyID, in.Code, in.StartDate, in.EndDate))
}

func (r *repository) Close(ctx context.Context, id, actorID int64, at time.Time) error {
	cmd, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE fiscal_years SET status='CLOSED', closed_at=$2, closed_by=$3, updated_at=NOW() WHERE id=$1 AND status='OPEN'`, id, at, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrFiscalYearClosed
	}
	return nil
}
