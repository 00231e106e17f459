package periods

import "time"

// Status enumerates fiscal year states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// FiscalYear represents the accounting year entries are scoped to.
type FiscalYear struct {
	ID        int64
	CompanyID int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether new postings are permitted.
func (f FiscalYear) IsOpen() bool {
	return f.Status == StatusOpen
}

// Contains reports whether date falls inside the year, bounds included.
func (f FiscalYear) Contains(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(dateOnly(f.StartDate)) && !d.After(dateOnly(f.EndDate))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CreateInput describes a new fiscal year.
type CreateInput struct {
	CompanyID int64     `json:"company_id" validate:"required,gt=0"`
	Code      string    `json:"code" validate:"required,max=20"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}
