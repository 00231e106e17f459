package entries

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct runs tag validation and converts the first failure into a typed error.
func checkStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" || fe.Tag() == "gt" {
		return &shared.FieldError{Field: fe.Field()}
	}
	return fmt.Errorf("%w: %s failed %s", shared.ErrValidation, fe.Field(), fe.Tag())
}

// AccountResolver resolves account codes of one company.
type AccountResolver interface {
	GetByCode(ctx context.Context, companyID int64, code string) (accounts.Account, error)
}

var maxScale = int32(2)

// buildLines checks every line in order and returns the numbered line set.
// Totals are checked once after all lines pass.
func buildLines(ctx context.Context, resolver AccountResolver, companyID int64, inputs []LineInput) ([]Line, error) {
	if len(inputs) < 2 {
		return nil, shared.ErrTooFewLines
	}
	resolved := make(map[string]accounts.Account, len(inputs))
	lines := make([]Line, 0, len(inputs))
	debit, credit := decimal.Zero, decimal.Zero
	for i, in := range inputs {
		pos := i + 1
		code := strings.TrimSpace(in.AccountCode)
		acc, ok := resolved[code]
		if !ok {
			if code == "" {
				return nil, &shared.LineError{Line: pos, Err: shared.ErrUnknownAccount}
			}
			found, err := resolver.GetByCode(ctx, companyID, code)
			switch {
			case errors.Is(err, shared.ErrAccountNotFound):
				return nil, &shared.LineError{Line: pos, Err: fmt.Errorf("%w: %s", shared.ErrUnknownAccount, code)}
			case err != nil:
				return nil, err
			}
			acc = found
			resolved[code] = acc
		}
		if !acc.IsPostable() {
			return nil, &shared.LineError{Line: pos, Err: fmt.Errorf("%w: %s", shared.ErrUnknownAccount, code)}
		}
		if err := checkAmounts(in.Debit, in.Credit); err != nil {
			return nil, &shared.LineError{Line: pos, Err: err}
		}
		currency := strings.ToUpper(strings.TrimSpace(in.Currency))
		if currency == "" {
			currency = DefaultCurrency
		}
		lines = append(lines, Line{
			LineNumber:     pos,
			AccountID:      acc.ID,
			AccountCode:    acc.Code,
			ThirdPartyID:   in.ThirdPartyID,
			Label:          strings.TrimSpace(in.Label),
			Debit:          in.Debit,
			Credit:         in.Credit,
			Currency:       currency,
			CurrencyAmount: in.CurrencyAmount,
			ExchangeRate:   in.ExchangeRate,
		})
		debit = debit.Add(in.Debit)
		credit = credit.Add(in.Credit)
	}
	if !debit.Equal(credit) {
		return nil, &shared.UnbalancedError{Debit: debit, Credit: credit}
	}
	return lines, nil
}

// DefaultCurrency applies to lines that do not name one.
const DefaultCurrency = "XOF"

// checkAmounts enforces the polarity rule: both non-negative, exactly one non-zero, cents precision.
func checkAmounts(debit, credit decimal.Decimal) error {
	switch {
	case debit.IsNegative() || credit.IsNegative():
		return fmt.Errorf("%w: negative amount", shared.ErrInvalidLineAmounts)
	case debit.IsPositive() && credit.IsPositive():
		return fmt.Errorf("%w: both debit and credit set", shared.ErrInvalidLineAmounts)
	case debit.IsZero() && credit.IsZero():
		return fmt.Errorf("%w: zero line", shared.ErrInvalidLineAmounts)
	case !debit.Round(maxScale).Equal(debit) || !credit.Round(maxScale).Equal(credit):
		return fmt.Errorf("%w: more than two decimals", shared.ErrInvalidLineAmounts)
	}
	return nil
}
