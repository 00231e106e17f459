package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/entries"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	internalShared "github.com/odyssey-erp/ohada-ledger/internal/shared"
)

// EntryPoster posts journal entries.
type EntryPoster interface {
	CreateEntry(ctx context.Context, in entries.CreateInput) (entries.Entry, error)
}

// FiscalYearFinder resolves the fiscal year covering a date.
type FiscalYearFinder interface {
	FindByDate(ctx context.Context, companyID int64, date time.Time) (periods.FiscalYear, error)
}

// CacheInvalidator drops cached ledger reports touching the given accounts.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64, accountIDs []int64) error
}

// Config holds the depreciation settings.
type Config struct {
	Cutoff      FiscalCutoff
	JournalCode string
	LockTTL     time.Duration
}

// Deps lists the collaborators of the service. Cache, Locker, Usage, Metrics and Logger
// are optional.
type Deps struct {
	Entries     EntryPoster
	FiscalYears FiscalYearFinder
	Cache       CacheInvalidator
	Locker      *redislock.Client
	Usage       UsageSource
	Metrics     *observability.LedgerMetrics
	Logger      *slog.Logger
}

// Service computes depreciation plans and posts monthly depreciation.
type Service struct {
	repo     Repository
	entries  EntryPoster
	years    FiscalYearFinder
	cache    CacheInvalidator
	locker   *redislock.Client
	usage    UsageSource
	cfg      Config
	metrics  *observability.LedgerMetrics
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, cfg Config, deps Deps) *Service {
	if cfg.Cutoff.Month == 0 {
		cfg.Cutoff = CalendarYear
	}
	if cfg.JournalCode == "" {
		cfg.JournalCode = "OD"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:     repo,
		entries:  deps.Entries,
		years:    deps.FiscalYears,
		cache:    deps.Cache,
		locker:   deps.Locker,
		usage:    deps.Usage,
		cfg:      cfg,
		metrics:  deps.Metrics,
		logger:   logger,
		validate: validator.New(),
	}
}

func (s *Service) options() ScheduleOptions {
	return ScheduleOptions{Cutoff: s.cfg.Cutoff, Usage: s.usage}
}

func (s *Service) Get(ctx context.Context, id int64) (Asset, error) {
	return s.repo.Get(ctx, id)
}

// Schedule returns the stored plan of an asset.
func (s *Service) Schedule(ctx context.Context, assetID int64) ([]ScheduleLine, error) {
	return s.repo.Schedule(ctx, assetID)
}

func (s *Service) ListCategories(ctx context.Context, companyID int64) ([]Category, error) {
	return s.repo.ListCategories(ctx, companyID)
}

func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (Category, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.JournalCode = strings.ToUpper(strings.TrimSpace(in.JournalCode))
	if err := s.validate.Struct(in); err != nil {
		return Category{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return s.repo.InsertCategory(ctx, Category{
		CompanyID:              in.CompanyID,
		Code:                   in.Code,
		Name:                   strings.TrimSpace(in.Name),
		ExpenseAccountCode:     in.ExpenseAccountCode,
		AccumulatedAccountCode: in.AccumulatedAccountCode,
		JournalCode:            in.JournalCode,
	})
}

// CreateAsset registers an asset. With an in-service date the asset is put in service
// and its forecast plan is stored in the same transaction.
func (s *Service) CreateAsset(ctx context.Context, in CreateAssetInput) (Asset, error) {
	if err := s.validate.Struct(in); err != nil {
		return Asset{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !in.Method.Valid() {
		return Asset{}, fmt.Errorf("%w: unknown method %q", shared.ErrInvalidAsset, in.Method)
	}
	if !in.GrossValue.IsPositive() || in.ResidualValue.IsNegative() || !in.ResidualValue.LessThan(in.GrossValue) {
		return Asset{}, fmt.Errorf("%w: gross value must be positive and above the residual value", shared.ErrInvalidAsset)
	}
	category, err := s.repo.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return Asset{}, err
	}
	if category.CompanyID != in.CompanyID {
		return Asset{}, shared.ErrCategoryNotFound
	}
	asset := Asset{
		CompanyID:               in.CompanyID,
		CategoryID:              in.CategoryID,
		SiteID:                  in.SiteID,
		Code:                    strings.TrimSpace(in.Code),
		Name:                    strings.TrimSpace(in.Name),
		GrossValue:              in.GrossValue,
		ResidualValue:           in.ResidualValue,
		DepreciationBase:        in.DepreciationBase,
		DurationMonths:          in.DurationMonths,
		Method:                  in.Method,
		TotalUnits:              in.TotalUnits,
		InServiceDate:           in.InServiceDate,
		AccumulatedDepreciation: decimal.Zero,
		NetBookValue:            in.GrossValue,
		Status:                  AssetDraft,
		Depreciable:             true,
	}
	var plan []ScheduleLine
	if in.InServiceDate != nil {
		asset.Status = AssetInService
		if plan, err = CalculateSchedule(asset, *in.InServiceDate, asset.Method, s.options()); err != nil {
			return Asset{}, err
		}
		end := plan[len(plan)-1].EndDate
		asset.DepreciationEndDate = &end
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertAsset(ctx, asset)
		if err != nil {
			return err
		}
		for i := range plan {
			plan[i].AssetID = inserted.ID
		}
		if len(plan) > 0 {
			if err := tx.InsertScheduleLines(ctx, plan); err != nil {
				return err
			}
		}
		asset = inserted
		return nil
	})
	if err != nil {
		return Asset{}, err
	}
	return asset, nil
}

// CalculateDepreciationSchedule previews the plan of a stored asset. A nil start uses the
// in-service date and an empty method the asset's own. Nothing is written.
func (s *Service) CalculateDepreciationSchedule(ctx context.Context, assetID int64, start *time.Time, method MethodKind) ([]ScheduleLine, error) {
	asset, err := s.repo.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	from, kind, err := planParams(asset, start, method)
	if err != nil {
		return nil, err
	}
	return CalculateSchedule(asset, from, kind, s.options())
}

// RegenerateForecast recomputes the plan of an asset and replaces its FORECAST lines.
// REALIZED periods are kept as booked.
func (s *Service) RegenerateForecast(ctx context.Context, assetID int64, start *time.Time, method MethodKind) ([]ScheduleLine, error) {
	var plan []ScheduleLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asset, err := tx.GetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		from, kind, err := planParams(asset, start, method)
		if err != nil {
			return err
		}
		lines, err := CalculateSchedule(asset, from, kind, s.options())
		if err != nil {
			return err
		}
		realized, err := tx.RealizedLabels(ctx, asset.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteForecast(ctx, asset.ID); err != nil {
			return err
		}
		forecast := make([]ScheduleLine, 0, len(lines))
		for _, line := range lines {
			if !realized[line.Label] {
				forecast = append(forecast, line)
			}
		}
		if len(forecast) > 0 {
			if err := tx.InsertScheduleLines(ctx, forecast); err != nil {
				return err
			}
		}
		end := lines[len(lines)-1].EndDate
		asset.Method = kind
		asset.DepreciationEndDate = &end
		if err := tx.UpdateDepreciation(ctx, asset); err != nil {
			return err
		}
		plan = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func planParams(asset Asset, start *time.Time, method MethodKind) (time.Time, MethodKind, error) {
	if method == "" {
		method = asset.Method
	}
	if !method.Valid() {
		return time.Time{}, "", fmt.Errorf("%w: unknown method %q", shared.ErrInvalidAsset, method)
	}
	switch {
	case start != nil:
		return *start, method, nil
	case asset.InServiceDate != nil:
		return *asset.InServiceDate, method, nil
	default:
		return time.Time{}, "", &shared.FieldError{Field: "start_date"}
	}
}

// GenerateMonthlyDepreciationEntries posts the depreciation of the month containing
// in.Date. Assets are grouped by category and each category is posted as one validated
// entry in its own transaction together with the REALIZED lines and asset balances.
// A failing asset or category is reported in the result and does not stop the others.
// Assets already realized for the month are skipped, so reruns are harmless; an asset
// realized for a later month fails, since its cumulative depreciation only grows.
func (s *Service) GenerateMonthlyDepreciationEntries(ctx context.Context, in BatchInput) (BatchResult, error) {
	if in.CompanyID <= 0 {
		return BatchResult{}, &shared.FieldError{Field: "company_id"}
	}
	if in.Date.IsZero() {
		return BatchResult{}, &shared.FieldError{Field: "calculation_date"}
	}
	runID := uuid.New()
	label := in.Date.Format(PeriodLabel)
	logger := s.logger.With(
		slog.String("run_id", runID.String()),
		slog.Int64("company_id", in.CompanyID),
		slog.String("period", label),
	)

	release, err := s.lock(ctx, in.CompanyID)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	candidates, err := s.repo.ListDepreciable(ctx, in.CompanyID, in.Date, in.Filter)
	if err != nil {
		return BatchResult{}, err
	}
	realized, err := s.repo.RealizedAssets(ctx, in.CompanyID, label)
	if err != nil {
		return BatchResult{}, err
	}
	latest, err := s.repo.LatestRealized(ctx, in.CompanyID)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{
		RunID:       runID.String(),
		CompanyID:   in.CompanyID,
		Period:      label,
		EntryIDs:    []int64{},
		TotalAmount: decimal.Zero,
		Errors:      []ItemFailure{},
	}
	var failures []error
	failed := 0
	byCategory := make(map[int64][]ScheduleLine)
	for _, asset := range candidates {
		if realized[asset.ID] {
			result.AssetsSkipped++
			continue
		}
		if last := latest[asset.ID]; last > label {
			err := fmt.Errorf("%w: %s already realized", shared.ErrPeriodOutOfOrder, last)
			failures = append(failures, shared.BatchItemError{Item: "asset " + asset.Code, Err: err})
			failed++
			continue
		}
		line, ok, err := ChargeFor(asset, in.Date, s.options())
		if err != nil {
			failures = append(failures, shared.BatchItemError{Item: "asset " + asset.Code, Err: err})
			failed++
			continue
		}
		if !ok {
			result.AssetsSkipped++
			continue
		}
		byCategory[asset.CategoryID] = append(byCategory[asset.CategoryID], line)
	}

	categoryIDs := make([]int64, 0, len(byCategory))
	for id := range byCategory {
		categoryIDs = append(categoryIDs, id)
	}
	slices.Sort(categoryIDs)
	for _, id := range categoryIDs {
		lines := byCategory[id]
		entry, total, err := s.postCategory(ctx, in, runID, id, lines)
		if err != nil {
			failures = append(failures, err)
			failed += len(lines)
			continue
		}
		result.AssetsProcessed += len(lines)
		if entry.ID != 0 {
			result.EntriesCreated++
			result.EntryIDs = append(result.EntryIDs, entry.ID)
			result.TotalAmount = result.TotalAmount.Add(total)
		}
	}

	for _, f := range failures {
		var item shared.BatchItemError
		if errors.As(f, &item) {
			result.Errors = append(result.Errors, ItemFailure{Item: item.Item, Error: item.Err.Error()})
			logger.Warn("depreciation item failed", slog.String("item", item.Item), slog.Any("error", item.Err))
		}
	}
	s.metrics.DepreciationAssets("processed", result.AssetsProcessed)
	s.metrics.DepreciationAssets("skipped", result.AssetsSkipped)
	s.metrics.DepreciationAssets("failed", failed)

	if err := multierr.Combine(failures...); err != nil {
		logger.Warn("depreciation run finished with failures",
			slog.Int("failures", len(multierr.Errors(err))),
			slog.String("summary", err.Error()))
	}
	logger.Info("depreciation run finished",
		slog.Int("processed", result.AssetsProcessed),
		slog.Int("skipped", result.AssetsSkipped),
		slog.Int("entries", result.EntriesCreated),
		slog.String("total", result.TotalAmount.StringFixed(2)))
	return result, nil
}

func (s *Service) postCategory(ctx context.Context, in BatchInput, runID uuid.UUID, categoryID int64, lines []ScheduleLine) (entries.Entry, decimal.Decimal, error) {
	item := "category " + strconv.FormatInt(categoryID, 10)
	fail := func(err error) (entries.Entry, decimal.Decimal, error) {
		return entries.Entry{}, decimal.Zero, shared.BatchItemError{Item: item, Err: err}
	}
	category, err := s.repo.GetCategory(ctx, categoryID)
	if err != nil {
		return fail(err)
	}
	item = "category " + category.Code

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	if !total.IsPositive() {
		return entries.Entry{}, decimal.Zero, nil
	}
	fy, err := s.years.FindByDate(ctx, in.CompanyID, in.Date)
	if err != nil {
		return fail(err)
	}
	journal := category.JournalCode
	if journal == "" {
		journal = s.cfg.JournalCode
	}
	label := in.Date.Format(PeriodLabel)

	var posted entries.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := s.entries.CreateEntry(ctx, entries.CreateInput{
			CompanyID:    in.CompanyID,
			JournalCode:  journal,
			FiscalYearID: fy.ID,
			Header: entries.Header{
				EntryDate:    in.Date,
				Description:  fmt.Sprintf("Dotations aux amortissements %s %s", label, category.Name),
				Reference:    "DEP-" + label + "-" + category.Code,
				SourceModule: "assets",
				SourceID:     runID,
			},
			Lines: []entries.LineInput{
				{AccountCode: category.ExpenseAccountCode, Debit: total, Credit: decimal.Zero, Label: "Dotation " + category.Code},
				{AccountCode: category.AccumulatedAccountCode, Debit: decimal.Zero, Credit: total, Label: "Amortissements " + category.Code},
			},
			AutoValidate: true,
			UserID:       in.UserID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			asset, err := tx.GetForUpdate(ctx, line.AssetID)
			if err != nil {
				return err
			}
			line.Status = LineRealized
			line.EntryID = &entry.ID
			if err := tx.RealizeLine(ctx, line); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Code, err)
			}
			asset.AccumulatedDepreciation = line.Cumulative
			asset.NetBookValue = line.NetBookValue
			if err := tx.UpdateDepreciation(ctx, asset); err != nil {
				return fmt.Errorf("asset %s: %w", asset.Code, err)
			}
		}
		posted = entry
		return nil
	})
	if err != nil {
		return fail(err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, in.CompanyID, posted.AccountIDs()); err != nil {
			s.logger.Warn("ledger cache invalidation failed", slog.Int64("company_id", in.CompanyID), slog.Any("error", err))
		}
	}
	return posted, total, nil
}

func (s *Service) lock(ctx context.Context, companyID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	lock, err := s.locker.Obtain(ctx, internalShared.DepreciationLockKey(companyID), s.cfg.LockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.ErrBatchRunning
	}
	if err != nil {
		return nil, fmt.Errorf("assets: obtain lock: %w", err)
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

// Err combines the failures of a run, or returns nil.
func (r BatchResult) Err() error {
	var errs []error
	for _, f := range r.Errors {
		errs = append(errs, errors.New(f.Item+": "+f.Error))
	}
	return multierr.Combine(errs...)
}
