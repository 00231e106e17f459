package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

// Repository persists journals and their numbering counters.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Journal, error)
	Get(ctx context.Context, id int64) (Journal, error)
	GetByCode(ctx context.Context, companyID int64, code string) (Journal, error)
	Insert(ctx context.Context, j Journal) (Journal, error)
	SetClosingDate(ctx context.Context, id int64, date time.Time) error
	// NextSequence increments the counter under a row lock and returns the new value.
	NextSequence(ctx context.Context, id int64) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const columns = `id, company_id, code, name, type, auto_numbering, prefix, last_sequence, number_format,
validation_required, closing_date, is_active, created_at, updated_at`

func scan(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.CompanyID, &j.Code, &j.Name, &j.Type, &j.AutoNumbering, &j.Prefix, &j.LastSequence,
		&j.NumberFormat, &j.ValidationRequired, &j.ClosingDate, &j.IsActive, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Journal, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+columns+` FROM journals WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		j, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Journal, error) {
	return scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+columns+` FROM journals WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, companyID int64, code string) (Journal, error) {
	return scan(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+columns+` FROM journals WHERE company_id=$1 AND code=$2`, companyID, code))
}

func (r *repository) Insert(ctx context.Context, j Journal) (Journal, error) {
	out, err := scan(db.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO journals
(company_id, code, name, type, auto_numbering, prefix, last_sequence, number_format, validation_required, is_active)
VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,TRUE) RETURNING `+columns,
		j.CompanyID, j.Code, j.Name, j.Type, j.AutoNumbering, j.Prefix, j.NumberFormat, j.ValidationRequired))
	if db.IsUniqueViolation(err, "uq_journals_company_code") {
		return Journal{}, shared.ErrInvalidJournal
	}
	return out, err
}

func (r *repository) SetClosingDate(ctx context.Context, id int64, date time.Time) error {
	cmd, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE journals SET closing_date=$2, updated_at=NOW() WHERE id=$1`, id, date)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

// NextSequence joins the caller's transaction when one is open, so the counter row stays
// locked until the entry that consumes the number commits.
func (r *repository) NextSequence(ctx context.Context, id int64) (int64, error) {
	var next int64
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var last int64
		if err := tx.QueryRow(ctx, `SELECT last_sequence FROM journals WHERE id=$1 FOR UPDATE`, id).Scan(&last); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrJournalNotFound
			}
			return err
		}
		next = last + 1
		_, err := tx.Exec(ctx, `UPDATE journals SET last_sequence=$2, updated_at=NOW() WHERE id=$1`, id, next)
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
