package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

// Service manages the chart of accounts.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// List returns every account of the company ordered by code.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

// Get loads a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode resolves an account by its company-scoped code.
func (s *Service) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, companyID, strings.TrimSpace(code))
}

// Create registers a new account; the class is always derived from the first digit.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return Account{}, fmt.Errorf("%w: %v", shared.ErrInvalidAccount, err)
	}
	class, err := ClassOf(in.Code)
	if err != nil {
		return Account{}, fmt.Errorf("%w: code %q", err, in.Code)
	}
	side := in.NormalBalance
	if side == "" {
		side = DefaultNormalBalance(in.Code)
	}
	direct := true
	if in.AllowDirectEntry != nil {
		direct = *in.AllowDirectEntry
	}
	return s.repo.Insert(ctx, Account{
		CompanyID:        in.CompanyID,
		Code:             in.Code,
		Name:             in.Name,
		Class:            class,
		NormalBalance:    side,
		ParentID:         in.ParentID,
		IsActive:         true,
		AllowDirectEntry: direct,
	})
}

// SetActive toggles the active flag. Accounts are never hard-deleted.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}
