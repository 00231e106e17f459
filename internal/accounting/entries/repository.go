package entries

import (
	"context"
	"time"
)

// Repository is the storage port of the engine.
type Repository interface {
	Get(ctx context.Context, id int64) (Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Entry, error)
	PieceExists(ctx context.Context, companyID int64, piece string, excludeID int64) (bool, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []Line) ([]Line, error)
	DeleteLines(ctx context.Context, entryID int64) error
	UpdateHeader(ctx context.Context, e Entry) error
	UpdateStatus(ctx context.Context, e Entry) error
	DeleteEntry(ctx context.Context, id int64) error

	LinesForUpdate(ctx context.Context, companyID int64, lineIDs []int64) ([]LetterLine, error)
	LastLetteringCode(ctx context.Context, companyID, accountID int64) (string, error)
	SetLettering(ctx context.Context, lineIDs []int64, code string, at time.Time) error
	ClearLettering(ctx context.Context, companyID, accountID int64, code string) ([]int64, error)
}
