package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Every accounting error wraps exactly one of them.
var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrState marks an illegal lifecycle transition.
	ErrState = errors.New("accounting: invalid state transition")
	// ErrIntegrity marks a data-level invariant violation found downstream.
	ErrIntegrity = errors.New("accounting: data integrity violation")
	// ErrNotFound marks a missing aggregate.
	ErrNotFound = errors.New("accounting: not found")
)

var (
	// ErrMissingField indicates a required header field is empty.
	ErrMissingField = kindError(ErrValidation, "missing required field")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = kindError(ErrValidation, "insufficient lines")
	// ErrUnknownAccount indicates an account code that does not resolve to a postable account.
	ErrUnknownAccount = kindError(ErrValidation, "unknown or non-postable account")
	// ErrInvalidLineAmounts indicates a line breaking the debit/credit polarity rule.
	ErrInvalidLineAmounts = kindError(ErrValidation, "invalid line amounts")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = kindError(ErrValidation, "unbalanced entry")
	// ErrDateOutOfRange indicates an entry date outside its fiscal year.
	ErrDateOutOfRange = kindError(ErrValidation, "date outside fiscal year")
	// ErrDuplicatePiece indicates an explicit piece number already used by the company.
	ErrDuplicatePiece = kindError(ErrValidation, "piece number already used")
	// ErrInvalidAccount indicates a chart of accounts definition that cannot be stored.
	ErrInvalidAccount = kindError(ErrValidation, "invalid account definition")
	// ErrInvalidJournal indicates a journal definition that cannot be stored.
	ErrInvalidJournal = kindError(ErrValidation, "invalid journal definition")
	// ErrLetteringMismatch indicates lines that cannot be matched together.
	ErrLetteringMismatch = kindError(ErrValidation, "lines cannot be lettered together")
	// ErrInvalidAsset indicates an asset that cannot be depreciated as described.
	ErrInvalidAsset = kindError(ErrValidation, "invalid depreciation parameters")

	// ErrAlreadyValidated indicates the entry left DRAFT already.
	ErrAlreadyValidated = kindError(ErrState, "already validated")
	// ErrNotDraft indicates a mutation attempted on a non-draft entry.
	ErrNotDraft = kindError(ErrState, "entry is not a draft")
	// ErrNotBalanced indicates validation of an unbalanced entry.
	ErrNotBalanced = kindError(ErrState, "not balanced")
	// ErrTooFewLinesToValidate indicates validation of an entry with less than two lines.
	ErrTooFewLinesToValidate = kindError(ErrState, "too few lines")
	// ErrFiscalYearClosed indicates posting into a closed fiscal year.
	ErrFiscalYearClosed = kindError(ErrState, "fiscal year closed")
	// ErrJournalClosed indicates posting on or before the journal closing date.
	ErrJournalClosed = kindError(ErrState, "journal closed for this date")
	// ErrNotValidated indicates an operation that needs a validated entry.
	ErrNotValidated = kindError(ErrState, "entry is not validated")
	// ErrAlreadyReversed indicates a second reversal of the same entry.
	ErrAlreadyReversed = kindError(ErrState, "entry already reversed")
	// ErrInactiveJournal indicates posting into a deactivated journal.
	ErrInactiveJournal = kindError(ErrState, "journal inactive")
	// ErrBatchRunning indicates a depreciation run already holds the company lock.
	ErrBatchRunning = kindError(ErrState, "depreciation run already in progress")
	// ErrAssetNotInService indicates an operation that needs an asset in service.
	ErrAssetNotInService = kindError(ErrState, "asset not in service")
	// ErrPeriodOutOfOrder indicates depreciation of a period earlier than one already realized.
	ErrPeriodOutOfOrder = kindError(ErrState, "period precedes a realized period")

	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = kindError(ErrNotFound, "journal entry not found")
	// ErrJournalNotFound indicates missing journal.
	ErrJournalNotFound = kindError(ErrNotFound, "journal not found")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = kindError(ErrNotFound, "account not found")
	// ErrFiscalYearNotFound indicates missing fiscal year.
	ErrFiscalYearNotFound = kindError(ErrNotFound, "fiscal year not found")
	// ErrAssetNotFound indicates missing asset.
	ErrAssetNotFound = kindError(ErrNotFound, "asset not found")
	// ErrCategoryNotFound indicates missing asset category.
	ErrCategoryNotFound = kindError(ErrNotFound, "asset category not found")
)

type kinded struct {
	kind error
	msg  string
}

func kindError(kind error, msg string) error {
	return &kinded{kind: kind, msg: msg}
}

func (e *kinded) Error() string { return e.msg }

func (e *kinded) Unwrap() error { return e.kind }

// UnbalancedError reports both totals of an entry that does not balance.
type UnbalancedError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("unbalanced entry: debit %s ≠ credit %s", e.Debit.String(), e.Credit.String())
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

// LineError ties a validation failure to a 1-based line position.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// FieldError names the missing header field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *FieldError) Unwrap() error { return ErrMissingField }

// IntegrityError is raised when a trial balance does not tie out.
type IntegrityError struct {
	CompanyID    int64
	FiscalYearID int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("trial balance out of balance for company %d fiscal year %d: debit %s, credit %s",
		e.CompanyID, e.FiscalYearID, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// BatchItemError captures a single failure inside a multi-item batch.
type BatchItemError struct {
	Item string
	Err  error
}

func (e BatchItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

func (e BatchItemError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsState reports whether err is an illegal transition.
func IsState(err error) bool { return errors.Is(err, ErrState) }
