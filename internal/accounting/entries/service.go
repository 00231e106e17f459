package entries

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
	internalShared "github.com/odyssey-erp/ohada-ledger/internal/shared"
)

// JournalPort resolves journals and hands out piece numbers.
type JournalPort interface {
	Get(ctx context.Context, id int64) (journals.Journal, error)
	GetByCode(ctx context.Context, companyID int64, code string) (journals.Journal, error)
	NextNumber(ctx context.Context, j journals.Journal, date time.Time) (string, error)
}

// FiscalYearPort loads the fiscal year gating a posting.
type FiscalYearPort interface {
	GetForPosting(ctx context.Context, id int64) (periods.FiscalYear, error)
	FindByDate(ctx context.Context, companyID int64, date time.Time) (periods.FiscalYear, error)
}

// CacheInvalidator drops cached ledger reports touching the given accounts.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64, accountIDs []int64) error
}

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Deps lists the collaborators of the engine. Cache, Audit, Metrics and Logger are optional.
type Deps struct {
	Accounts    AccountResolver
	Journals    JournalPort
	FiscalYears FiscalYearPort
	Cache       CacheInvalidator
	Audit       AuditPort
	Metrics     *observability.LedgerMetrics
	Logger      *slog.Logger
}

// Service is the journal entry engine.
type Service struct {
	repo     Repository
	accounts AccountResolver
	journals JournalPort
	years    FiscalYearPort
	cache    CacheInvalidator
	audit    AuditPort
	metrics  *observability.LedgerMetrics
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo Repository, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:     repo,
		accounts: deps.Accounts,
		journals: deps.Journals,
		years:    deps.FiscalYears,
		cache:    deps.Cache,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// List returns the entries of a fiscal year, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.CompanyID == 0 {
		return nil, &shared.FieldError{Field: "company_id"}
	}
	if filter.FiscalYearID == 0 {
		return nil, &shared.FieldError{Field: "fiscal_year_id"}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

type createOpts struct {
	forceDraft    bool
	forceValidate bool
	reversalOf    *int64
}

// CreateEntry validates and persists a new entry. The whole call is one transaction:
// on any failure neither the header nor its lines remain.
func (s *Service) CreateEntry(ctx context.Context, in CreateInput) (Entry, error) {
	entry, err := s.create(ctx, in, createOpts{})
	s.metrics.EntryOperation("create", err)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry.CompanyID, entry.AccountIDs(), internalShared.AuditLog{
		ActorID:  in.UserID,
		Action:   "journal_entry.create",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"piece_number": entry.PieceNumber,
			"journal":      entry.JournalCode,
			"status":       string(entry.Status),
			"total":        entry.TotalDebit.StringFixed(2),
		},
	})
	return entry, nil
}

func (s *Service) create(ctx context.Context, in CreateInput, opts createOpts) (Entry, error) {
	in.JournalCode = strings.TrimSpace(in.JournalCode)
	in.Header = normalizeHeader(in.Header)
	if err := checkStruct(s.validate, in); err != nil {
		return Entry{}, err
	}
	if len(in.Lines) < 2 {
		return Entry{}, shared.ErrTooFewLines
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := buildLines(ctx, s.accounts, in.CompanyID, in.Lines)
		if err != nil {
			return err
		}
		journal, err := s.journals.GetByCode(ctx, in.CompanyID, in.JournalCode)
		if err != nil {
			return err
		}
		if err := s.ensurePostable(ctx, in.CompanyID, in.FiscalYearID, journal, in.Header.EntryDate); err != nil {
			return err
		}
		piece, err := s.allocatePiece(ctx, tx, in.CompanyID, journal, in.Header, 0)
		if err != nil {
			return err
		}
		sourceID := in.Header.SourceID
		if sourceID == uuid.Nil {
			sourceID = uuid.New()
		}
		draft := Entry{
			CompanyID:    in.CompanyID,
			JournalID:    journal.ID,
			JournalCode:  journal.Code,
			FiscalYearID: in.FiscalYearID,
			PieceNumber:  piece,
			EntryDate:    in.Header.EntryDate,
			ValueDate:    in.Header.ValueDate,
			Description:  in.Header.Description,
			Reference:    in.Header.Reference,
			SourceModule: in.Header.SourceModule,
			SourceID:     sourceID,
			Status:       StatusDraft,
			ReversalOf:   opts.reversalOf,
			CreatedBy:    in.UserID,
			Lines:        lines,
		}
		draft.Recompute()
		inserted, err := tx.InsertEntry(ctx, draft)
		if err != nil {
			return err
		}
		stored, err := tx.InsertLines(ctx, inserted.ID, lines)
		if err != nil {
			return err
		}
		inserted.Lines = stored

		autoValidate := in.AutoValidate || opts.forceValidate || !journal.ValidationRequired
		if autoValidate && !opts.forceDraft && inserted.IsBalanced {
			s.markValidated(&inserted, in.UserID)
			if err := tx.UpdateStatus(ctx, inserted); err != nil {
				return err
			}
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ValidateEntry moves a draft to VALIDATED. Nothing changes when a precondition fails.
func (s *Service) ValidateEntry(ctx context.Context, entryID, userID int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrAlreadyValidated
		}
		current.Recompute()
		if !current.IsBalanced {
			return fmt.Errorf("%w: %w", shared.ErrNotBalanced, &shared.UnbalancedError{Debit: current.TotalDebit, Credit: current.TotalCredit})
		}
		if len(current.Lines) < 2 {
			return shared.ErrTooFewLinesToValidate
		}
		fy, err := s.years.GetForPosting(ctx, current.FiscalYearID)
		if err != nil {
			return err
		}
		if !fy.IsOpen() {
			return shared.ErrFiscalYearClosed
		}
		journal, err := s.journals.Get(ctx, current.JournalID)
		if err != nil {
			return err
		}
		if !journal.AcceptsDate(current.EntryDate) {
			return shared.ErrJournalClosed
		}
		s.markValidated(&current, userID)
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	s.metrics.EntryOperation("validate", err)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry.CompanyID, entry.AccountIDs(), internalShared.AuditLog{
		ActorID:  userID,
		Action:   "journal_entry.validate",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     map[string]any{"piece_number": entry.PieceNumber},
	})
	return entry, nil
}

// UpdateEntry replaces the header and the full line set of a draft.
func (s *Service) UpdateEntry(ctx context.Context, in UpdateInput) (Entry, error) {
	in.Header = normalizeHeader(in.Header)
	var (
		entry   Entry
		touched []int64
	)
	err := func() error {
		if err := checkStruct(s.validate, in); err != nil {
			return err
		}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, err := tx.GetForUpdate(ctx, in.EntryID)
			if err != nil {
				return err
			}
			if current.Status != StatusDraft {
				return shared.ErrNotDraft
			}
			lines, err := buildLines(ctx, s.accounts, current.CompanyID, in.Lines)
			if err != nil {
				return err
			}
			journal, err := s.journals.Get(ctx, current.JournalID)
			if err != nil {
				return err
			}
			if err := s.ensurePostable(ctx, current.CompanyID, current.FiscalYearID, journal, in.Header.EntryDate); err != nil {
				return err
			}
			if in.Header.PieceNumber != "" && in.Header.PieceNumber != current.PieceNumber {
				if _, err := s.allocatePiece(ctx, tx, current.CompanyID, journal, in.Header, current.ID); err != nil {
					return err
				}
				current.PieceNumber = in.Header.PieceNumber
			}
			touched = current.AccountIDs()

			if err := tx.DeleteLines(ctx, current.ID); err != nil {
				return err
			}
			stored, err := tx.InsertLines(ctx, current.ID, lines)
			if err != nil {
				return err
			}
			current.EntryDate = in.Header.EntryDate
			current.ValueDate = in.Header.ValueDate
			current.Description = in.Header.Description
			current.Reference = in.Header.Reference
			current.Lines = stored
			current.Recompute()
			if err := tx.UpdateHeader(ctx, current); err != nil {
				return err
			}
			entry = current
			return nil
		})
	}()
	s.metrics.EntryOperation("update", err)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry.CompanyID, mergeIDs(touched, entry.AccountIDs()), internalShared.AuditLog{
		ActorID:  in.UserID,
		Action:   "journal_entry.update",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     map[string]any{"lines": len(entry.Lines), "total": entry.TotalDebit.StringFixed(2)},
	})
	return entry, nil
}

// DeleteEntry removes a draft and its lines.
func (s *Service) DeleteEntry(ctx context.Context, entryID, userID int64) error {
	var removed Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		if err := tx.DeleteLines(ctx, current.ID); err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, current.ID); err != nil {
			return err
		}
		removed = current
		return nil
	})
	s.metrics.EntryOperation("delete", err)
	if err != nil {
		return err
	}
	s.afterWrite(ctx, removed.CompanyID, removed.AccountIDs(), internalShared.AuditLog{
		ActorID:  userID,
		Action:   "journal_entry.delete",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", removed.ID),
		Meta:     map[string]any{"piece_number": removed.PieceNumber},
	})
	return nil
}

// DuplicateEntry copies the line economics of an entry into a new draft dated in.Date.
func (s *Service) DuplicateEntry(ctx context.Context, in DuplicateInput) (Entry, error) {
	if in.Date.IsZero() {
		return Entry{}, &shared.FieldError{Field: "entry_date"}
	}
	src, err := s.repo.Get(ctx, in.EntryID)
	if err != nil {
		return Entry{}, err
	}
	journal, err := s.journals.Get(ctx, src.JournalID)
	if err != nil {
		return Entry{}, err
	}
	fyID := in.FiscalYearID
	if fyID == 0 {
		fyID = src.FiscalYearID
		if fy, err := s.years.FindByDate(ctx, src.CompanyID, in.Date); err == nil {
			fyID = fy.ID
		}
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = src.Description
	}
	inputs := make([]LineInput, 0, len(src.Lines))
	for _, l := range src.Lines {
		inputs = append(inputs, LineInput{
			AccountCode:    l.AccountCode,
			Debit:          l.Debit,
			Credit:         l.Credit,
			Label:          l.Label,
			Currency:       l.Currency,
			CurrencyAmount: l.CurrencyAmount,
			ExchangeRate:   l.ExchangeRate,
			ThirdPartyID:   l.ThirdPartyID,
		})
	}
	entry, err := s.create(ctx, CreateInput{
		CompanyID:    src.CompanyID,
		JournalCode:  journal.Code,
		FiscalYearID: fyID,
		Header: Header{
			EntryDate:    in.Date,
			Description:  description,
			Reference:    src.Reference,
			SourceModule: src.SourceModule,
		},
		Lines:  inputs,
		UserID: in.UserID,
	}, createOpts{forceDraft: true})
	s.metrics.EntryOperation("duplicate", err)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry.CompanyID, entry.AccountIDs(), internalShared.AuditLog{
		ActorID:  in.UserID,
		Action:   "journal_entry.duplicate",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     map[string]any{"source_entry_id": src.ID},
	})
	return entry, nil
}

// ReverseEntry posts a validated mirror of a validated entry in the same journal.
func (s *Service) ReverseEntry(ctx context.Context, in ReverseInput) (Entry, error) {
	src, err := s.repo.Get(ctx, in.EntryID)
	if err != nil {
		return Entry{}, err
	}
	if src.Status != StatusValidated {
		return Entry{}, shared.ErrNotValidated
	}
	journal, err := s.journals.Get(ctx, src.JournalID)
	if err != nil {
		return Entry{}, err
	}
	date := src.EntryDate
	fyID := src.FiscalYearID
	if in.Date != nil {
		date = *in.Date
		if fy, err := s.years.FindByDate(ctx, src.CompanyID, date); err == nil {
			fyID = fy.ID
		}
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("Reversal of %s", src.PieceNumber)
	}
	inputs := make([]LineInput, 0, len(src.Lines))
	for _, l := range src.Lines {
		inputs = append(inputs, LineInput{
			AccountCode:  l.AccountCode,
			Debit:        l.Credit,
			Credit:       l.Debit,
			Label:        l.Label,
			Currency:     l.Currency,
			ThirdPartyID: l.ThirdPartyID,
		})
	}
	srcID := src.ID
	entry, err := s.create(ctx, CreateInput{
		CompanyID:    src.CompanyID,
		JournalCode:  journal.Code,
		FiscalYearID: fyID,
		Header: Header{
			EntryDate:    date,
			Description:  description,
			Reference:    src.PieceNumber,
			SourceModule: "REVERSAL",
		},
		Lines:  inputs,
		UserID: in.UserID,
	}, createOpts{forceValidate: true, reversalOf: &srcID})
	s.metrics.EntryOperation("reverse", err)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, entry.CompanyID, entry.AccountIDs(), internalShared.AuditLog{
		ActorID:  in.UserID,
		Action:   "journal_entry.reverse",
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     map[string]any{"reversal_of": src.ID},
	})
	return entry, nil
}

// LetterLines tags balanced lines of one account on validated entries with the next lettering code.
func (s *Service) LetterLines(ctx context.Context, in LetterInput) (string, error) {
	ids := slices.Clone(in.LineIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) < 2 {
		return "", fmt.Errorf("%w: at least two lines required", shared.ErrLetteringMismatch)
	}
	at := in.Date
	if at.IsZero() {
		at = s.now()
	}
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := tx.LinesForUpdate(ctx, in.CompanyID, ids)
		if err != nil {
			return err
		}
		if len(lines) != len(ids) {
			return fmt.Errorf("%w: unknown line", shared.ErrLetteringMismatch)
		}
		accountID := lines[0].AccountID
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range lines {
			switch {
			case l.AccountID != accountID:
				return fmt.Errorf("%w: lines span several accounts", shared.ErrLetteringMismatch)
			case l.EntryStatus == StatusDraft:
				return fmt.Errorf("%w: line %d belongs to a draft", shared.ErrLetteringMismatch, l.LineID)
			case l.LetteringCode != nil:
				return fmt.Errorf("%w: line %d already lettered %s", shared.ErrLetteringMismatch, l.LineID, *l.LetteringCode)
			}
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
		if !debit.Equal(credit) {
			return fmt.Errorf("%w: %w", shared.ErrLetteringMismatch, &shared.UnbalancedError{Debit: debit, Credit: credit})
		}
		last, err := tx.LastLetteringCode(ctx, in.CompanyID, accountID)
		if err != nil {
			return err
		}
		code = NextLetteringCode(last)
		return tx.SetLettering(ctx, ids, code, at)
	})
	s.metrics.EntryOperation("letter", err)
	if err != nil {
		return "", err
	}
	s.record(ctx, internalShared.AuditLog{
		ActorID:  in.UserID,
		Action:   "journal_line.letter",
		Entity:   "lettering",
		EntityID: code,
		Meta:     map[string]any{"company_id": in.CompanyID, "lines": ids},
	})
	return code, nil
}

// Unletter clears a lettering code on an account.
func (s *Service) Unletter(ctx context.Context, companyID, accountID int64, code string, userID int64) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return &shared.FieldError{Field: "code"}
	}
	var cleared []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.ClearLettering(ctx, companyID, accountID, code)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("%w: code %s not used on account %d", shared.ErrLetteringMismatch, code, accountID)
		}
		cleared = ids
		return nil
	})
	s.metrics.EntryOperation("unletter", err)
	if err != nil {
		return err
	}
	s.record(ctx, internalShared.AuditLog{
		ActorID:  userID,
		Action:   "journal_line.unletter",
		Entity:   "lettering",
		EntityID: code,
		Meta:     map[string]any{"company_id": companyID, "account_id": accountID, "lines": cleared},
	})
	return nil
}

func (s *Service) ensurePostable(ctx context.Context, companyID, fiscalYearID int64, journal journals.Journal, date time.Time) error {
	if !journal.IsActive {
		return shared.ErrInactiveJournal
	}
	fy, err := s.years.GetForPosting(ctx, fiscalYearID)
	if err != nil {
		return err
	}
	if fy.CompanyID != companyID {
		return shared.ErrFiscalYearNotFound
	}
	if !fy.IsOpen() {
		return shared.ErrFiscalYearClosed
	}
	if !fy.Contains(date) {
		return fmt.Errorf("%w: %s not in %s", shared.ErrDateOutOfRange, date.Format(time.DateOnly), fy.Code)
	}
	if !journal.AcceptsDate(date) {
		return shared.ErrJournalClosed
	}
	return nil
}

func (s *Service) allocatePiece(ctx context.Context, tx TxRepository, companyID int64, journal journals.Journal, h Header, excludeID int64) (string, error) {
	if h.PieceNumber != "" {
		exists, err := tx.PieceExists(ctx, companyID, h.PieceNumber, excludeID)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("%w: %s", shared.ErrDuplicatePiece, h.PieceNumber)
		}
		return h.PieceNumber, nil
	}
	if !journal.AutoNumbering {
		return "", &shared.FieldError{Field: "piece_number"}
	}
	return s.journals.NextNumber(ctx, journal, h.EntryDate)
}

func (s *Service) markValidated(e *Entry, userID int64) {
	now := s.now()
	e.Status = StatusValidated
	e.ValidatedAt = &now
	if userID != 0 {
		uid := userID
		e.ValidatedBy = &uid
	}
}

// afterWrite runs once the write committed. When ctx carries a caller's transaction the
// entry is not visible yet, so cache invalidation is left to that caller.
func (s *Service) afterWrite(ctx context.Context, companyID int64, accountIDs []int64, log internalShared.AuditLog) {
	if _, outer := db.TxFromContext(ctx); s.cache != nil && !outer {
		if err := s.cache.Invalidate(ctx, companyID, accountIDs); err != nil {
			s.logger.Warn("ledger cache invalidation failed", slog.Int64("company_id", companyID), slog.Any("error", err))
		}
	}
	s.record(ctx, log)
}

func (s *Service) record(ctx context.Context, log internalShared.AuditLog) {
	if s.audit == nil {
		return
	}
	log.At = s.now()
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func normalizeHeader(h Header) Header {
	h.Description = strings.TrimSpace(h.Description)
	h.Reference = strings.TrimSpace(h.Reference)
	h.PieceNumber = strings.TrimSpace(h.PieceNumber)
	h.SourceModule = strings.TrimSpace(h.SourceModule)
	return h
}

func mergeIDs(a, b []int64) []int64 {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// IsClientError reports whether err should be shown to the caller as a correctable failure.
func IsClientError(err error) bool {
	return shared.IsValidation(err) || shared.IsState(err) || errors.Is(err, shared.ErrNotFound)
}
