package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation of Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assetColumns = `id, company_id, category_id, site_id, code, name, gross_value, residual_value, depreciation_base,
duration_months, method, total_units, in_service_date, depreciation_end_date, accumulated_depreciation, net_book_value,
status, depreciable, created_at, updated_at`

const categoryColumns = `id, company_id, code, name, expense_account_code, accumulated_account_code, COALESCE(journal_code, '')`

const lineColumns = `id, asset_id, period, fiscal_year, label, start_date, end_date, base, rate, amount, cumulative,
net_book_value, method, status, entry_id`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.CompanyID, &a.CategoryID, &a.SiteID, &a.Code, &a.Name, &a.GrossValue, &a.ResidualValue, &a.DepreciationBase,
		&a.DurationMonths, &a.Method, &a.TotalUnits, &a.InServiceDate, &a.DepreciationEndDate, &a.AccumulatedDepreciation, &a.NetBookValue,
		&a.Status, &a.Depreciable, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, shared.ErrAssetNotFound
	}
	return a, err
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.CompanyID, &c.Code, &c.Name, &c.ExpenseAccountCode, &c.AccumulatedAccountCode, &c.JournalCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrCategoryNotFound
	}
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (Asset, error) {
	return scanAsset(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=$1`, id))
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	return scanCategory(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+categoryColumns+` FROM asset_categories WHERE id=$1`, id))
}

func (r *repository) ListCategories(ctx context.Context, companyID int64) ([]Category, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+categoryColumns+` FROM asset_categories WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) InsertCategory(ctx context.Context, c Category) (Category, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO asset_categories
(company_id, code, name, expense_account_code, accumulated_account_code, journal_code)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,'')) RETURNING id`,
		c.CompanyID, c.Code, c.Name, c.ExpenseAccountCode, c.AccumulatedAccountCode, c.JournalCode).Scan(&c.ID)
	if db.IsUniqueViolation(err, "uq_asset_categories_company_code") {
		return Category{}, fmt.Errorf("%w: category %s exists", shared.ErrValidation, c.Code)
	}
	return c, err
}

func (r *repository) ListDepreciable(ctx context.Context, companyID int64, asOf time.Time, filter Filter) ([]Asset, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+assetColumns+` FROM assets
WHERE company_id=$1 AND status='IN_SERVICE' AND depreciable AND in_service_date <= $2
  AND ($3::bigint IS NULL OR category_id = $3)
  AND ($4::bigint IS NULL OR site_id = $4)
ORDER BY category_id, code`, companyID, asOf, filter.CategoryID, filter.SiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Schedule(ctx context.Context, assetID int64) ([]ScheduleLine, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+lineColumns+` FROM depreciation_schedule_lines
WHERE asset_id=$1 ORDER BY period`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleLine
	for rows.Next() {
		var l ScheduleLine
		if err := rows.Scan(&l.ID, &l.AssetID, &l.Period, &l.FiscalYear, &l.Label, &l.StartDate, &l.EndDate, &l.Base, &l.Rate, &l.Amount,
			&l.Cumulative, &l.NetBookValue, &l.Method, &l.Status, &l.EntryID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) RealizedAssets(ctx context.Context, companyID int64, label string) (map[int64]bool, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT l.asset_id FROM depreciation_schedule_lines l
JOIN assets a ON a.id = l.asset_id
WHERE a.company_id=$1 AND l.label=$2 AND l.status='REALIZED'`, companyID, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *repository) LatestRealized(ctx context.Context, companyID int64) (map[int64]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT l.asset_id, MAX(l.label) FROM depreciation_schedule_lines l
JOIN assets a ON a.id = l.asset_id
WHERE a.company_id=$1 AND l.status='REALIZED'
GROUP BY l.asset_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			label string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		out[id] = label
	}
	return out, rows.Err()
}

// WithTx stores the transaction in the context, so entries posted by fn share it.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Asset, error) {
	return scanAsset(r.tx.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertAsset(ctx context.Context, a Asset) (Asset, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO assets
(company_id, category_id, site_id, code, name, gross_value, residual_value, depreciation_base, duration_months, method,
 total_units, in_service_date, depreciation_end_date, accumulated_depreciation, net_book_value, status, depreciable)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
RETURNING id, created_at, updated_at`,
		a.CompanyID, a.CategoryID, a.SiteID, a.Code, a.Name, a.GrossValue, a.ResidualValue, a.DepreciationBase, a.DurationMonths, a.Method,
		a.TotalUnits, a.InServiceDate, a.DepreciationEndDate, a.AccumulatedDepreciation, a.NetBookValue, a.Status, a.Depreciable).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_assets_company_code") {
		return Asset{}, fmt.Errorf("%w: asset %s exists", shared.ErrInvalidAsset, a.Code)
	}
	return a, err
}

func (r *txRepository) RealizedLabels(ctx context.Context, assetID int64) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT label FROM depreciation_schedule_lines WHERE asset_id=$1 AND status='REALIZED'`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out[label] = true
	}
	return out, rows.Err()
}

func (r *txRepository) DeleteForecast(ctx context.Context, assetID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM depreciation_schedule_lines WHERE asset_id=$1 AND status='FORECAST'`, assetID)
	return err
}

const insertLine = `INSERT INTO depreciation_schedule_lines
(asset_id, period, fiscal_year, label, start_date, end_date, base, rate, amount, cumulative, net_book_value, method, status, entry_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

func (r *txRepository) InsertScheduleLines(ctx context.Context, lines []ScheduleLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(insertLine, l.AssetID, l.Period, l.FiscalYear, l.Label, l.StartDate, l.EndDate, l.Base, l.Rate, l.Amount,
			l.Cumulative, l.NetBookValue, l.Method, l.Status, l.EntryID)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) RealizeLine(ctx context.Context, l ScheduleLine) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM depreciation_schedule_lines WHERE asset_id=$1 AND label=$2 AND status='FORECAST'`,
		l.AssetID, l.Label); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, insertLine, l.AssetID, l.Period, l.FiscalYear, l.Label, l.StartDate, l.EndDate, l.Base, l.Rate, l.Amount,
		l.Cumulative, l.NetBookValue, l.Method, LineRealized, l.EntryID)
	if db.IsUniqueViolation(err, "uq_depreciation_lines_realized") {
		return fmt.Errorf("%w: period %s already realized", shared.ErrState, l.Label)
	}
	return err
}

func (r *txRepository) UpdateDepreciation(ctx context.Context, a Asset) error {
	_, err := r.tx.Exec(ctx, `UPDATE assets SET method=$2, depreciation_end_date=$3, accumulated_depreciation=$4,
net_book_value=$5, updated_at=NOW() WHERE id=$1`, a.ID, a.Method, a.DepreciationEndDate, a.AccumulatedDepreciation, a.NetBookValue)
	return err
}
