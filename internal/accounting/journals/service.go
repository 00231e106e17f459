package journals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

// Service manages the journal registry and hands out piece numbers.
type Service struct {
	repo     Repository
	validate *validator.Validate
	upper    cases.Caser
}

// NewService constructs the registry service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), upper: cases.Upper(language.Und)}
}

// NormalizeCode trims and upper-cases a journal code.
func (s *Service) NormalizeCode(code string) string {
	return s.upper.String(strings.TrimSpace(code))
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Journal, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, id int64) (Journal, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode resolves a journal by its company-scoped code.
func (s *Service) GetByCode(ctx context.Context, companyID int64, code string) (Journal, error) {
	return s.repo.GetByCode(ctx, companyID, s.NormalizeCode(code))
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Journal, error) {
	in.Code = s.NormalizeCode(in.Code)
	in.Prefix = s.upper.String(strings.TrimSpace(in.Prefix))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Journal{}, fmt.Errorf("%w: %v", shared.ErrInvalidJournal, err)
	}
	if !in.Type.Valid() {
		return Journal{}, fmt.Errorf("%w: unknown type %q", shared.ErrInvalidJournal, in.Type)
	}
	auto := true
	if in.AutoNumbering != nil {
		auto = *in.AutoNumbering
	}
	prefix := in.Prefix
	if prefix == "" {
		prefix = in.Code
	}
	format := in.NumberFormat
	if format == "" {
		format = DefaultNumberFormat
	}
	return s.repo.Insert(ctx, Journal{
		CompanyID:          in.CompanyID,
		Code:               in.Code,
		Name:               in.Name,
		Type:               in.Type,
		AutoNumbering:      auto,
		Prefix:             prefix,
		NumberFormat:       format,
		ValidationRequired: in.ValidationRequired,
		IsActive:           true,
	})
}

// Close forbids postings dated on or before the closing date. The date only moves forward.
func (s *Service) Close(ctx context.Context, in CloseInput) (Journal, error) {
	if err := s.validate.Struct(in); err != nil {
		return Journal{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	j, err := s.repo.Get(ctx, in.JournalID)
	if err != nil {
		return Journal{}, err
	}
	if j.ClosingDate != nil && !in.ClosingDate.After(*j.ClosingDate) {
		return Journal{}, fmt.Errorf("%w: closing date must move forward", shared.ErrJournalClosed)
	}
	if err := s.repo.SetClosingDate(ctx, j.ID, in.ClosingDate); err != nil {
		return Journal{}, err
	}
	j.ClosingDate = &in.ClosingDate
	return j, nil
}

// NextNumber atomically consumes the next counter value and formats it for date.
// Each call consumes exactly one value.
func (s *Service) NextNumber(ctx context.Context, j Journal, date time.Time) (string, error) {
	seq, err := s.repo.NextSequence(ctx, j.ID)
	if err != nil {
		return "", err
	}
	return FormatNumber(j, seq, date), nil
}
