package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), now: time.Now}
}

func (s *Service) Get(ctx context.Context, id int64) (FiscalYear, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) FindByDate(ctx context.Context, companyID int64, date time.Time) (FiscalYear, error) {
	return s.repo.FindByDate(ctx, companyID, date)
}

func (s *Service) ListOpen(ctx context.Context) ([]FiscalYear, error) {
	return s.repo.ListOpen(ctx)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (FiscalYear, error) {
	if err := s.validate.Struct(in); err != nil {
		return FiscalYear{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return s.repo.Insert(ctx, in)
}

// Close gates further postings. Closing is one-way.
func (s *Service) Close(ctx context.Context, id, actorID int64) error {
	return s.repo.Close(ctx, id, actorID, s.now())
}
