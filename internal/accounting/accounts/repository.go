package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

// Repository persists chart of accounts entries.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, companyID int64, code string) (Account, error)
	Insert(ctx context.Context, account Account) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const accountColumns = `id, company_id, code, name, class, normal_balance, parent_id, is_active, allow_direct_entry, created_at, updated_at`

// ScanAccount reads a row selected with the account column list.
func ScanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Class, &a.NormalBalance, &a.ParentID, &a.IsActive, &a.AllowDirectEntry, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// Columns exposes the select list used by ScanAccount.
func Columns() string { return accountColumns }

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := ScanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return ScanAccount(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return ScanAccount(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
}

func (r *repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := db.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, class, normal_balance, parent_id, is_active, allow_direct_entry)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+accountColumns,
		a.CompanyID, a.Code, a.Name, a.Class, a.NormalBalance, a.ParentID, a.IsActive, a.AllowDirectEntry)
	inserted, err := ScanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, shared.ErrInvalidAccount
		}
		return Account{}, err
	}
	return inserted, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	cmd, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
