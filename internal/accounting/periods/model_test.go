package periods

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiscalYearContains(t *testing.T) {
	fy := FiscalYear{
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    StatusOpen,
	}
	assert.True(t, fy.IsOpen())
	assert.True(t, fy.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, fy.Contains(time.Date(2025, 12, 31, 18, 30, 0, 0, time.UTC)))
	assert.False(t, fy.Contains(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, fy.Contains(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	fy.Status = StatusClosed
	assert.False(t, fy.IsOpen())
}
