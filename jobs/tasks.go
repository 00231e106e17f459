package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ohada-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationMonthly posts the monthly depreciation of one or all companies.
	TaskDepreciationMonthly = "depreciation:monthly"
	// TaskLedgerIntegrity verifies that trial balances of open fiscal years tie out.
	TaskLedgerIntegrity = "ledger:integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DepreciationPayload scopes a depreciation run. A zero CompanyID covers every company
// with an open fiscal year; an empty Date means the last day of the previous month.
type DepreciationPayload struct {
	CompanyID  int64  `json:"company_id,omitempty"`
	Date       string `json:"date,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	SiteID     *int64 `json:"site_id,omitempty"`
	UserID     int64  `json:"user_id,omitempty"`
}

// IntegrityPayload scopes an integrity check. Zero values mean every open fiscal year.
type IntegrityPayload struct {
	CompanyID    int64 `json:"company_id,omitempty"`
	FiscalYearID int64 `json:"fiscal_year_id,omitempty"`
}

// NewDepreciationTask builds a depreciation:monthly task.
func NewDepreciationTask(payload DepreciationPayload) (*asynq.Task, error) {
	if payload.Date != "" {
		if _, err := time.Parse(time.DateOnly, payload.Date); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationMonthly, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewIntegrityTask builds a ledger:integrity task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// previousMonthEnd returns the last day of the month before now.
func previousMonthEnd(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 0, 0, 0, 0, 0, time.UTC)
}
