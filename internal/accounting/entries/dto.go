package entries

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

type headerRequest struct {
	EntryDate    string  `json:"entry_date"`
	ValueDate    *string `json:"value_date"`
	Description  string  `json:"description"`
	Reference    string  `json:"reference"`
	PieceNumber  string  `json:"piece_number"`
	SourceModule string  `json:"source_module"`
}

type createRequest struct {
	CompanyID    int64       `json:"company_id"`
	JournalCode  string      `json:"journal_code"`
	FiscalYearID int64       `json:"fiscal_year_id"`
	AutoValidate bool        `json:"auto_validate"`
	Lines        []LineInput `json:"lines"`
	headerRequest
}

type updateRequest struct {
	Lines []LineInput `json:"lines"`
	headerRequest
}

type duplicateRequest struct {
	Date         string `json:"date"`
	Description  string `json:"description"`
	FiscalYearID int64  `json:"fiscal_year_id"`
}

type reverseRequest struct {
	Date        *string `json:"date"`
	Description string  `json:"description"`
}

type letterRequest struct {
	CompanyID int64   `json:"company_id"`
	LineIDs   []int64 `json:"line_ids"`
	Date      *string `json:"date"`
}

type unletterRequest struct {
	CompanyID int64  `json:"company_id"`
	AccountID int64  `json:"account_id"`
	Code      string `json:"code"`
}

func (h headerRequest) toHeader() (Header, error) {
	out := Header{
		Description:  h.Description,
		Reference:    h.Reference,
		PieceNumber:  h.PieceNumber,
		SourceModule: h.SourceModule,
	}
	if strings.TrimSpace(h.EntryDate) != "" {
		d, err := parseDate("entry_date", h.EntryDate)
		if err != nil {
			return Header{}, err
		}
		out.EntryDate = d
	}
	if h.ValueDate != nil && *h.ValueDate != "" {
		d, err := parseDate("value_date", *h.ValueDate)
		if err != nil {
			return Header{}, err
		}
		out.ValueDate = &d
	}
	return out, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrValidation, field)
	}
	return d, nil
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
