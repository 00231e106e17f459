package journals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		tpl  string
		want string
	}{
		{"default", "", "VT202503-00042"},
		{"code and short year", "{CODE}/{YY}/{SEQ:3}", "VTE/25/042"},
		{"plain seq", "{PREFIX}-{SEQ}", "VT-42"},
		{"missing seq appended", "{PREFIX}{YYYY}", "VT202542"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := Journal{Code: "VTE", Prefix: "VT", NumberFormat: tc.tpl}
			assert.Equal(t, tc.want, FormatNumber(j, 42, date))
		})
	}
}

func TestJournalAcceptsDate(t *testing.T) {
	closing := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	j := Journal{ClosingDate: &closing}
	assert.False(t, j.AcceptsDate(closing))
	assert.True(t, j.AcceptsDate(closing.AddDate(0, 0, 1)))
	assert.True(t, Journal{}.AcceptsDate(closing))
}
