package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/ohada-ledger/internal/jobs"
)

// IntegrityChecker rebuilds a trial balance from storage and verifies it.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, companyID, fiscalYearID int64) (ledger.TrialBalance, error)
}

// IntegrityReport summarises a GL integrity run.
type IntegrityReport struct {
	Checked    int
	Unbalanced []*shared.IntegrityError
	Failed     int
}

// RunGLIntegrityCheck verifies the trial balance of every open fiscal year in scope.
// Unbalanced years are reported, not returned as errors; the error combines lookup failures.
func RunGLIntegrityCheck(ctx context.Context, checker IntegrityChecker, years OpenYearLister, payload IntegrityPayload, logger *slog.Logger, metrics *jobmetrics.Metrics) (IntegrityReport, error) {
	var report IntegrityReport
	if checker == nil || years == nil {
		return report, errors.New("gl integrity: dependencies not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskLedgerIntegrity))

	open, err := years.ListOpen(ctx)
	if err != nil {
		return report, err
	}
	var errs error
	for _, fy := range open {
		if payload.CompanyID > 0 && fy.CompanyID != payload.CompanyID {
			continue
		}
		if payload.FiscalYearID > 0 && fy.ID != payload.FiscalYearID {
			continue
		}
		report.Checked++
		_, err := checker.CheckIntegrity(ctx, fy.CompanyID, fy.ID)
		var integrity *shared.IntegrityError
		switch {
		case err == nil:
			metrics.AddChecked("balanced", 1)
		case errors.As(err, &integrity):
			report.Unbalanced = append(report.Unbalanced, integrity)
			metrics.AddChecked("unbalanced", 1)
		default:
			report.Failed++
			metrics.AddChecked("error", 1)
			logger.Error("check fiscal year", slog.Int64("company_id", fy.CompanyID), slog.Int64("fiscal_year_id", fy.ID), slog.Any("error", err))
			errs = multierr.Append(errs, fmt.Errorf("fiscal year %d: %w", fy.ID, err))
		}
	}
	logger.Info("GL integrity check executed",
		slog.Int("checked", report.Checked),
		slog.Int("unbalanced", len(report.Unbalanced)),
		slog.Int("failed", report.Failed))
	return report, errs
}

// IntegrityJob runs RunGLIntegrityCheck from the queue.
type IntegrityJob struct {
	Checker IntegrityChecker
	Years   OpenYearLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIntegrityJob constructs the job handler.
func NewIntegrityJob(checker IntegrityChecker, years OpenYearLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Checker: checker, Years: years, Logger: logger, Metrics: metrics}
}

// Handle executes a ledger:integrity task. Unbalanced years fail the task without retry.
func (j *IntegrityJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	var payload IntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	report, err := RunGLIntegrityCheck(ctx, j.Checker, j.Years, payload, j.Logger, metrics)
	if err != nil {
		return err
	}
	if n := len(report.Unbalanced); n > 0 {
		return fmt.Errorf("%d fiscal years out of balance: %w", n, asynq.SkipRetry)
	}
	return nil
}
