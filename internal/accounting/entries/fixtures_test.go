package entries

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ohada-ledger/internal/shared"
)

const companyID int64 = 7

type memoryRepo struct {
	mu        sync.Mutex
	nextEntry int64
	nextLine  int64
	entries   map[int64]Entry
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]Entry)}
}

func cloneEntry(e Entry) Entry {
	e.Lines = slices.Clone(e.Lines)
	return e
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, shared.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.CompanyID != filter.CompanyID || e.FiscalYearID != filter.FiscalYearID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// WithTx works on a copy and swaps it in on success. The store lock is held for the
// whole transaction, which stands in for row locks.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := &memoryTx{nextEntry: m.nextEntry, nextLine: m.nextLine, entries: make(map[int64]Entry, len(m.entries))}
	for id, e := range m.entries {
		work.entries[id] = cloneEntry(e)
	}
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.entries = work.entries
	m.nextEntry = work.nextEntry
	m.nextLine = work.nextLine
	return nil
}

type memoryTx struct {
	nextEntry int64
	nextLine  int64
	entries   map[int64]Entry
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Entry, error) {
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, shared.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

func (t *memoryTx) PieceExists(_ context.Context, company int64, piece string, excludeID int64) (bool, error) {
	for _, e := range t.entries {
		if e.CompanyID == company && e.PieceNumber == piece && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertEntry(_ context.Context, e Entry) (Entry, error) {
	for _, existing := range t.entries {
		if e.ReversalOf != nil && existing.ReversalOf != nil && *existing.ReversalOf == *e.ReversalOf {
			return Entry{}, shared.ErrAlreadyReversed
		}
		if existing.CompanyID == e.CompanyID && existing.PieceNumber == e.PieceNumber {
			return Entry{}, shared.ErrDuplicatePiece
		}
	}
	t.nextEntry++
	e.ID = t.nextEntry
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	e.Lines = nil
	t.entries[e.ID] = e
	return e, nil
}

func (t *memoryTx) InsertLines(_ context.Context, entryID int64, lines []Line) ([]Line, error) {
	e := t.entries[entryID]
	out := make([]Line, len(lines))
	for i, l := range lines {
		t.nextLine++
		l.ID = t.nextLine
		l.EntryID = entryID
		out[i] = l
	}
	e.Lines = append(e.Lines, out...)
	t.entries[entryID] = e
	return out, nil
}

func (t *memoryTx) DeleteLines(_ context.Context, entryID int64) error {
	e := t.entries[entryID]
	e.Lines = nil
	t.entries[entryID] = e
	return nil
}

func (t *memoryTx) UpdateHeader(_ context.Context, e Entry) error {
	cur, ok := t.entries[e.ID]
	if !ok || cur.Status != StatusDraft {
		return shared.ErrNotDraft
	}
	lines := cur.Lines
	cur = cloneEntry(e)
	cur.Lines = lines
	t.entries[e.ID] = cur
	return nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, e Entry) error {
	cur, ok := t.entries[e.ID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	cur.Status = e.Status
	cur.ValidatedBy = e.ValidatedBy
	cur.ValidatedAt = e.ValidatedAt
	t.entries[e.ID] = cur
	return nil
}

func (t *memoryTx) DeleteEntry(_ context.Context, id int64) error {
	if t.entries[id].Status != StatusDraft {
		return shared.ErrNotDraft
	}
	delete(t.entries, id)
	return nil
}

func (t *memoryTx) LinesForUpdate(_ context.Context, company int64, lineIDs []int64) ([]LetterLine, error) {
	var out []LetterLine
	for _, e := range t.entries {
		if e.CompanyID != company {
			continue
		}
		for _, l := range e.Lines {
			if slices.Contains(lineIDs, l.ID) {
				out = append(out, LetterLine{
					LineID: l.ID, EntryID: e.ID, EntryStatus: e.Status, AccountID: l.AccountID,
					Debit: l.Debit, Credit: l.Credit, LetteringCode: l.LetteringCode,
				})
			}
		}
	}
	return out, nil
}

func (t *memoryTx) LastLetteringCode(_ context.Context, company, accountID int64) (string, error) {
	last := ""
	for _, e := range t.entries {
		for _, l := range e.Lines {
			if e.CompanyID == company && l.AccountID == accountID && l.LetteringCode != nil && letteringLess(last, *l.LetteringCode) {
				last = *l.LetteringCode
			}
		}
	}
	return last, nil
}

func (t *memoryTx) SetLettering(_ context.Context, lineIDs []int64, code string, at time.Time) error {
	for id, e := range t.entries {
		for i := range e.Lines {
			if slices.Contains(lineIDs, e.Lines[i].ID) {
				c := code
				e.Lines[i].LetteringCode = &c
				e.Lines[i].LetteredAt = &at
			}
		}
		t.entries[id] = e
	}
	return nil
}

func (t *memoryTx) ClearLettering(_ context.Context, company, accountID int64, code string) ([]int64, error) {
	var ids []int64
	for id, e := range t.entries {
		if e.CompanyID != company {
			continue
		}
		for i := range e.Lines {
			l := &e.Lines[i]
			if l.AccountID == accountID && l.LetteringCode != nil && *l.LetteringCode == code {
				l.LetteringCode = nil
				l.LetteredAt = nil
				ids = append(ids, l.ID)
			}
		}
		t.entries[id] = e
	}
	return ids, nil
}

type chart map[string]accounts.Account

func (c chart) GetByCode(_ context.Context, company int64, code string) (accounts.Account, error) {
	a, ok := c[code]
	if !ok || a.CompanyID != company {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func syscohadaChart() chart {
	c := chart{}
	for i, code := range []string{"401", "411", "443", "521", "601", "701", "681", "2845"} {
		c[code] = accounts.Account{
			ID: int64(i + 1), CompanyID: companyID, Code: code, Name: code,
			NormalBalance: accounts.DefaultNormalBalance(code), IsActive: true, AllowDirectEntry: true,
		}
	}
	c["100"] = accounts.Account{ID: 50, CompanyID: companyID, Code: "100", IsActive: false, AllowDirectEntry: true}
	c["40"] = accounts.Account{ID: 51, CompanyID: companyID, Code: "40", IsActive: true, AllowDirectEntry: false}
	return c
}

type journalStub struct {
	mu       sync.Mutex
	journals map[int64]*journals.Journal
}

func newJournalStub(js ...journals.Journal) *journalStub {
	s := &journalStub{journals: make(map[int64]*journals.Journal)}
	for i := range js {
		j := js[i]
		s.journals[j.ID] = &j
	}
	return s
}

func (s *journalStub) Get(_ context.Context, id int64) (journals.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[id]
	if !ok {
		return journals.Journal{}, shared.ErrJournalNotFound
	}
	return *j, nil
}

func (s *journalStub) GetByCode(_ context.Context, company int64, code string) (journals.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.CompanyID == company && j.Code == code {
			return *j, nil
		}
	}
	return journals.Journal{}, shared.ErrJournalNotFound
}

func (s *journalStub) NextNumber(_ context.Context, j journals.Journal, date time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.journals[j.ID]
	stored.LastSequence++
	return journals.FormatNumber(*stored, stored.LastSequence, date), nil
}

type yearStub map[int64]periods.FiscalYear

func (y yearStub) GetForPosting(_ context.Context, id int64) (periods.FiscalYear, error) {
	fy, ok := y[id]
	if !ok {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return fy, nil
}

func (y yearStub) FindByDate(_ context.Context, company int64, date time.Time) (periods.FiscalYear, error) {
	for _, fy := range y {
		if fy.CompanyID == company && fy.Contains(date) {
			return fy, nil
		}
	}
	return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
}

type cacheSpy struct {
	mu    sync.Mutex
	calls [][]int64
}

func (c *cacheSpy) Invalidate(_ context.Context, _ int64, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, ids)
	return nil
}

type auditSpy struct {
	mu   sync.Mutex
	logs []internalShared.AuditLog
}

func (a *auditSpy) Record(_ context.Context, log internalShared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	journals *journalStub
	years    yearStub
	cache    *cacheSpy
	audit    *auditSpy
}

const (
	fy2025 int64 = 1
	fy2024 int64 = 2
)

func newFixture() *fixture {
	f := &fixture{
		repo: newMemoryRepo(),
		journals: newJournalStub(
			journals.Journal{ID: 1, CompanyID: companyID, Code: "VT", Type: journals.TypeSales, AutoNumbering: true,
				Prefix: "VT", NumberFormat: journals.DefaultNumberFormat, IsActive: true},
			journals.Journal{ID: 2, CompanyID: companyID, Code: "OD", Type: journals.TypeMiscellaneous, AutoNumbering: true,
				Prefix: "OD", NumberFormat: journals.DefaultNumberFormat, ValidationRequired: true, IsActive: true},
			journals.Journal{ID: 3, CompanyID: companyID, Code: "MAN", Type: journals.TypeMiscellaneous, AutoNumbering: false,
				ValidationRequired: true, IsActive: true},
		),
		years: yearStub{
			fy2025: {ID: fy2025, CompanyID: companyID, Code: "FY2025", Status: periods.StatusOpen,
				StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31)},
			fy2024: {ID: fy2024, CompanyID: companyID, Code: "FY2024", Status: periods.StatusClosed,
				StartDate: day(2024, 1, 1), EndDate: day(2024, 12, 31)},
		},
		cache: &cacheSpy{},
		audit: &auditSpy{},
	}
	f.svc = NewService(f.repo, Deps{
		Accounts:    syscohadaChart(),
		Journals:    f.journals,
		FiscalYears: f.years,
		Cache:       f.cache,
		Audit:       f.audit,
	})
	f.svc.WithNow(func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) })
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
