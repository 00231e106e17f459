package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const entryColumns = `e.id, e.company_id, e.journal_id, j.code, e.fiscal_year_id, e.piece_number, e.entry_date, e.value_date,
e.description, e.reference, e.source_module, e.source_id, e.status, e.total_debit, e.total_credit, e.is_balanced,
e.reversal_of, e.created_by, e.validated_by, e.validated_at, e.created_at, e.updated_at`

const entryFrom = ` FROM journal_entries e JOIN journals j ON j.id = e.journal_id`

const lineColumns = `l.id, l.entry_id, l.line_number, l.account_id, a.code, l.third_party_id, l.label, l.debit, l.credit,
l.currency, l.currency_amount, l.exchange_rate, l.lettering_code, l.lettered_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CompanyID, &e.JournalID, &e.JournalCode, &e.FiscalYearID, &e.PieceNumber, &e.EntryDate, &e.ValueDate,
		&e.Description, &e.Reference, &e.SourceModule, &e.SourceID, &e.Status, &e.TotalDebit, &e.TotalCredit, &e.IsBalanced,
		&e.ReversalOf, &e.CreatedBy, &e.ValidatedBy, &e.ValidatedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func loadLines(ctx context.Context, q db.Querier, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+`
FROM journal_entry_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.entry_id=$1 ORDER BY l.line_number`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.LineNumber, &l.AccountID, &l.AccountCode, &l.ThirdPartyID, &l.Label, &l.Debit, &l.Credit,
			&l.Currency, &l.CurrencyAmount, &l.ExchangeRate, &l.LetteringCode, &l.LetteredAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Entry, error) {
	q := db.Conn(ctx, r.pool)
	e, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.id=$1`, id))
	if err != nil {
		return Entry{}, err
	}
	e.Lines, err = loadLines(ctx, q, e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns entry headers; lines are loaded by Get.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	where := []string{"e.company_id=$1", "e.fiscal_year_id=$2"}
	args := []any{filter.CompanyID, filter.FiscalYearID}
	if filter.JournalID != nil {
		args = append(args, *filter.JournalID)
		where = append(where, fmt.Sprintf("e.journal_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("e.status=$%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)
	sql := `SELECT ` + entryColumns + entryFrom + ` WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY e.entry_date DESC, e.piece_number DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WithTx stores the transaction in the context handed to fn, so account, journal and
// fiscal year lookups made through their own repositories run inside it.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.id=$1 FOR UPDATE OF e`, id))
	if err != nil {
		return Entry{}, err
	}
	e.Lines, err = loadLines(ctx, r.tx, e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) PieceExists(ctx context.Context, companyID int64, piece string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE company_id=$1 AND piece_number=$2 AND id<>$3)`,
		companyID, piece, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(company_id, journal_id, fiscal_year_id, piece_number, entry_date, value_date, description, reference, source_module, source_id,
 status, total_debit, total_credit, is_balanced, reversal_of, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id, created_at, updated_at`,
		e.CompanyID, e.JournalID, e.FiscalYearID, e.PieceNumber, e.EntryDate, e.ValueDate, e.Description, e.Reference, e.SourceModule, e.SourceID,
		e.Status, e.TotalDebit, e.TotalCredit, e.IsBalanced, e.ReversalOf, nullInt(e.CreatedBy)).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, "uq_journal_entries_company_piece"):
		return Entry{}, fmt.Errorf("%w: %s", shared.ErrDuplicatePiece, e.PieceNumber)
	case db.IsUniqueViolation(err, "uq_journal_entries_reversal_of"):
		return Entry{}, shared.ErrAlreadyReversed
	case err != nil:
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error) {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO journal_entry_lines
(entry_id, line_number, account_id, third_party_id, label, debit, credit, currency, currency_amount, exchange_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			entryID, l.LineNumber, l.AccountID, l.ThirdPartyID, l.Label, l.Debit, l.Credit, l.Currency, l.CurrencyAmount, l.ExchangeRate)
	}
	br := r.tx.SendBatch(ctx, batch)
	out := make([]Line, len(lines))
	for i, l := range lines {
		if err := br.QueryRow().Scan(&l.ID); err != nil {
			_ = br.Close()
			return nil, err
		}
		l.EntryID = entryID
		out[i] = l
	}
	return out, br.Close()
}

func (r *txRepository) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE entry_id=$1`, entryID)
	return err
}

func (r *txRepository) UpdateHeader(ctx context.Context, e Entry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET piece_number=$2, entry_date=$3, value_date=$4, description=$5, reference=$6,
total_debit=$7, total_credit=$8, is_balanced=$9, updated_at=NOW() WHERE id=$1 AND status='DRAFT'`,
		e.ID, e.PieceNumber, e.EntryDate, e.ValueDate, e.Description, e.Reference, e.TotalDebit, e.TotalCredit, e.IsBalanced)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_journal_entries_company_piece") {
			return fmt.Errorf("%w: %s", shared.ErrDuplicatePiece, e.PieceNumber)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotDraft
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, e Entry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, validated_by=$3, validated_at=$4, updated_at=NOW() WHERE id=$1`,
		e.ID, e.Status, e.ValidatedBy, e.ValidatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1 AND status='DRAFT'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotDraft
	}
	return nil
}

func (r *txRepository) LinesForUpdate(ctx context.Context, companyID int64, lineIDs []int64) ([]LetterLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.id, l.entry_id, e.status, l.account_id, l.debit, l.credit, l.lettering_code
FROM journal_entry_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id=$1 AND l.id = ANY($2) ORDER BY l.id FOR UPDATE OF l`, companyID, lineIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LetterLine
	for rows.Next() {
		var l LetterLine
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.EntryStatus, &l.AccountID, &l.Debit, &l.Credit, &l.LetteringCode); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LastLetteringCode locks the account row so concurrent letterings on one account get distinct codes.
func (r *txRepository) LastLetteringCode(ctx context.Context, companyID, accountID int64) (string, error) {
	var id int64
	if err := r.tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id=$1 AND company_id=$2 FOR UPDATE`, accountID, companyID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrAccountNotFound
		}
		return "", err
	}
	var code string
	err := r.tx.QueryRow(ctx, `SELECT l.lettering_code FROM journal_entry_lines l
WHERE l.account_id=$1 AND l.lettering_code IS NOT NULL
ORDER BY length(l.lettering_code) DESC, l.lettering_code DESC LIMIT 1`, accountID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *txRepository) SetLettering(ctx context.Context, lineIDs []int64, code string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE journal_entry_lines SET lettering_code=$2, lettered_at=$3 WHERE id = ANY($1)`, lineIDs, code, at)
	return err
}

func (r *txRepository) ClearLettering(ctx context.Context, companyID, accountID int64, code string) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `UPDATE journal_entry_lines l SET lettering_code=NULL, lettered_at=NULL
FROM journal_entries e
WHERE e.id = l.entry_id AND e.company_id=$1 AND l.account_id=$2 AND l.lettering_code=$3
RETURNING l.id`, companyID, accountID, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
