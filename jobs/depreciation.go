package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/assets"
	jobmetrics "github.com/odyssey-erp/ohada-ledger/internal/jobs"
)

// DepreciationRunner posts one company's monthly depreciation.
type DepreciationRunner interface {
	GenerateMonthlyDepreciationEntries(ctx context.Context, in assets.BatchInput) (assets.BatchResult, error)
}

// OpenYearLister lists the fiscal years still accepting postings.
type OpenYearLister interface {
	ListOpen(ctx context.Context) ([]periods.FiscalYear, error)
}

// DepreciationJob runs depreciation batches from the queue.
type DepreciationJob struct {
	Runner  DepreciationRunner
	Years   OpenYearLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDepreciationJob constructs the job handler.
func NewDepreciationJob(runner DepreciationRunner, years OpenYearLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationJob {
	return &DepreciationJob{Runner: runner, Years: years, Logger: logger, Metrics: metrics}
}

// Handle executes a depreciation:monthly task. Malformed payloads are not retried.
func (j *DepreciationJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Runner == nil || j.Years == nil {
		return errors.New("depreciation: dependencies not configured")
	}
	var payload DepreciationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	if shared.IsValidation(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run executes the batch for every company in scope. A company whose batch is already
// running is skipped; other failures are combined.
func (j *DepreciationJob) Run(ctx context.Context, payload DepreciationPayload) (results []assets.BatchResult, err error) {
	tracker := j.metrics().Track(TaskDepreciationMonthly)
	defer func() {
		err = tracker.End(err)
	}()

	date := previousMonthEnd(j.now())
	if payload.Date != "" {
		date, err = time.Parse(time.DateOnly, payload.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", shared.ErrValidation)
		}
	}
	companies, err := j.companies(ctx, payload.CompanyID)
	if err != nil {
		j.log().Error("resolve companies", slog.Any("error", err))
		return nil, err
	}

	for _, companyID := range companies {
		res, runErr := j.Runner.GenerateMonthlyDepreciationEntries(ctx, assets.BatchInput{
			CompanyID: companyID,
			Date:      date,
			Filter:    assets.Filter{CategoryID: payload.CategoryID, SiteID: payload.SiteID},
			UserID:    payload.UserID,
		})
		switch {
		case errors.Is(runErr, shared.ErrBatchRunning):
			j.log().Info("depreciation already running", slog.Int64("company_id", companyID))
			continue
		case runErr != nil:
			j.log().Error("depreciation run", slog.Int64("company_id", companyID), slog.Any("error", runErr))
			err = multierr.Append(err, fmt.Errorf("company %d: %w", companyID, runErr))
			continue
		}
		results = append(results, res)
		j.log().Info("depreciation posted",
			slog.Int64("company_id", companyID),
			slog.String("run_id", res.RunID),
			slog.String("period", res.Period),
			slog.Int("assets", res.AssetsProcessed),
			slog.Int("entries", res.EntriesCreated),
			slog.String("total", res.TotalAmount.StringFixed(2)),
			slog.Int("failures", len(res.Errors)),
		)
	}
	return results, err
}

func (j *DepreciationJob) companies(ctx context.Context, companyID int64) ([]int64, error) {
	if companyID > 0 {
		return []int64{companyID}, nil
	}
	years, err := j.Years.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	return companiesOf(years, 0), nil
}

func companiesOf(years []periods.FiscalYear, only int64) []int64 {
	var ids []int64
	for _, fy := range years {
		if only > 0 && fy.CompanyID != only {
			continue
		}
		if !slices.Contains(ids, fy.CompanyID) {
			ids = append(ids, fy.CompanyID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (j *DepreciationJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DepreciationJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDepreciationMonthly))
	}
	return slog.Default().With(slog.String("job", TaskDepreciationMonthly))
}

func (j *DepreciationJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *DepreciationJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
