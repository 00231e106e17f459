package assets

import (
	"context"
	"time"
)

// Repository persists assets, categories and schedules.
type Repository interface {
	Get(ctx context.Context, id int64) (Asset, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context, companyID int64) ([]Category, error)
	InsertCategory(ctx context.Context, c Category) (Category, error)
	// ListDepreciable returns depreciable assets in service on or before asOf.
	ListDepreciable(ctx context.Context, companyID int64, asOf time.Time, filter Filter) ([]Asset, error)
	Schedule(ctx context.Context, assetID int64) ([]ScheduleLine, error)
	// RealizedAssets returns the assets of the company holding a REALIZED line for label.
	RealizedAssets(ctx context.Context, companyID int64, label string) (map[int64]bool, error)
	// LatestRealized returns, per asset of the company, the label of its last REALIZED line.
	LatestRealized(ctx context.Context, companyID int64) (map[int64]string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Asset, error)
	InsertAsset(ctx context.Context, a Asset) (Asset, error)
	RealizedLabels(ctx context.Context, assetID int64) (map[string]bool, error)
	DeleteForecast(ctx context.Context, assetID int64) error
	InsertScheduleLines(ctx context.Context, lines []ScheduleLine) error
	// RealizeLine replaces the FORECAST line of the same period with the given REALIZED line.
	RealizeLine(ctx context.Context, line ScheduleLine) error
	// UpdateDepreciation stores method, end date, accumulated depreciation and net book value.
	UpdateDepreciation(ctx context.Context, a Asset) error
}
