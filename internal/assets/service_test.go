package assets

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/entries"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ohada-ledger/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	assets     map[int64]Asset
	categories map[int64]Category
	lines      map[int64][]ScheduleLine
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:     100,
		assets:     map[int64]Asset{},
		categories: map[int64]Category{},
		lines:      map[int64][]ScheduleLine{},
	}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return Asset{}, shared.ErrAssetNotFound
	}
	return a, nil
}

func (m *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return Category{}, shared.ErrCategoryNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListCategories(_ context.Context, companyID int64) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Category
	for _, c := range m.categories {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) InsertCategory(_ context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	m.categories[c.ID] = c
	return c, nil
}

func (m *memoryRepo) ListDepreciable(_ context.Context, companyID int64, asOf time.Time, filter Filter) ([]Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Asset
	for _, a := range m.assets {
		if a.CompanyID != companyID || a.Status != AssetInService || !a.Depreciable || a.InServiceDate == nil || a.InServiceDate.After(asOf) {
			continue
		}
		if filter.CategoryID != nil && a.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.SiteID != nil && (a.SiteID == nil || *a.SiteID != *filter.SiteID) {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Asset) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memoryRepo) Schedule(_ context.Context, assetID int64) ([]ScheduleLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.lines[assetID])
	slices.SortFunc(out, func(a, b ScheduleLine) int { return a.Period - b.Period })
	return out, nil
}

func (m *memoryRepo) RealizedAssets(_ context.Context, companyID int64, label string) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]bool{}
	for id, lines := range m.lines {
		if m.assets[id].CompanyID != companyID {
			continue
		}
		for _, l := range lines {
			if l.Label == label && l.Status == LineRealized {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) LatestRealized(_ context.Context, companyID int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]string{}
	for id, lines := range m.lines {
		if m.assets[id].CompanyID != companyID {
			continue
		}
		for _, l := range lines {
			if l.Status == LineRealized && l.Label > out[id] {
				out[id] = l.Label
			}
		}
	}
	return out, nil
}

// WithTx runs fn against a copy of the store and keeps it only when fn succeeds.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{repo: m, assets: maps.Clone(m.assets), lines: map[int64][]ScheduleLine{}}
	for id, lines := range m.lines {
		tx.lines[id] = slices.Clone(lines)
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.assets = tx.assets
	m.lines = tx.lines
	return nil
}

type memoryTx struct {
	repo   *memoryRepo
	assets map[int64]Asset
	lines  map[int64][]ScheduleLine
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Asset, error) {
	a, ok := t.assets[id]
	if !ok {
		return Asset{}, shared.ErrAssetNotFound
	}
	return a, nil
}

func (t *memoryTx) InsertAsset(_ context.Context, a Asset) (Asset, error) {
	t.repo.nextID++
	a.ID = t.repo.nextID
	t.assets[a.ID] = a
	return a, nil
}

func (t *memoryTx) RealizedLabels(_ context.Context, assetID int64) (map[string]bool, error) {
	out := map[string]bool{}
	for _, l := range t.lines[assetID] {
		if l.Status == LineRealized {
			out[l.Label] = true
		}
	}
	return out, nil
}

func (t *memoryTx) DeleteForecast(_ context.Context, assetID int64) error {
	t.lines[assetID] = slices.DeleteFunc(t.lines[assetID], func(l ScheduleLine) bool { return l.Status == LineForecast })
	return nil
}

func (t *memoryTx) InsertScheduleLines(_ context.Context, lines []ScheduleLine) error {
	for _, l := range lines {
		t.lines[l.AssetID] = append(t.lines[l.AssetID], l)
	}
	return nil
}

func (t *memoryTx) RealizeLine(_ context.Context, line ScheduleLine) error {
	kept := t.lines[line.AssetID][:0:0]
	for _, l := range t.lines[line.AssetID] {
		if l.Label != line.Label {
			kept = append(kept, l)
			continue
		}
		if l.Status == LineRealized {
			return shared.ErrState
		}
	}
	line.Status = LineRealized
	t.lines[line.AssetID] = append(kept, line)
	return nil
}

func (t *memoryTx) UpdateDepreciation(_ context.Context, a Asset) error {
	t.assets[a.ID] = a
	return nil
}

type posterStub struct {
	mu     sync.Mutex
	posted []entries.CreateInput
}

func (p *posterStub) CreateEntry(_ context.Context, in entries.CreateInput) (entries.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in.JournalCode == "XX" {
		return entries.Entry{}, shared.ErrJournalNotFound
	}
	p.posted = append(p.posted, in)
	return entries.Entry{ID: int64(len(p.posted)), Status: entries.StatusValidated, JournalCode: in.JournalCode}, nil
}

type yearsStub struct{}

func (yearsStub) FindByDate(_ context.Context, companyID int64, d time.Time) (periods.FiscalYear, error) {
	if d.Year() != 2025 {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return periods.FiscalYear{ID: 1, CompanyID: companyID, Status: periods.StatusOpen, StartDate: date(2025, 1, 1), EndDate: date(2025, 12, 31)}, nil
}

const company = int64(7)

type invalidation struct {
	company  int64
	accounts []int64
}

// cacheSpy records invalidations together with whether the store had already committed.
type cacheSpy struct {
	repo  *memoryRepo
	calls []invalidation
}

func (c *cacheSpy) Invalidate(_ context.Context, companyID int64, ids []int64) error {
	if !c.repo.mu.TryLock() {
		return errors.New("invalidated inside the transaction")
	}
	c.repo.mu.Unlock()
	c.calls = append(c.calls, invalidation{company: companyID, accounts: ids})
	return nil
}

type fixture struct {
	repo    *memoryRepo
	poster  *posterStub
	cache   *cacheSpy
	service *Service
	locker  *redislock.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client)

	repo := newMemoryRepo()
	poster := &posterStub{}
	cache := &cacheSpy{repo: repo}
	svc := NewService(repo, Config{JournalCode: "OD", LockTTL: time.Minute}, Deps{
		Entries:     poster,
		FiscalYears: yearsStub{},
		Cache:       cache,
		Locker:      locker,
	})
	return &fixture{repo: repo, poster: poster, cache: cache, service: svc, locker: locker}
}

func (f *fixture) seed(id int64, a Asset) {
	a.ID = id
	a.CompanyID = company
	a.Depreciable = true
	if a.Status == "" {
		a.Status = AssetInService
	}
	if a.Method == "" {
		a.Method = StraightLine
	}
	a.NetBookValue = a.GrossValue.Sub(a.AccumulatedDepreciation)
	f.repo.assets[id] = a
}

func (f *fixture) seedBatch() {
	f.repo.categories[1] = Category{ID: 1, CompanyID: company, Code: "MAT", Name: "Matériel", ExpenseAccountCode: "6813", AccumulatedAccountCode: "2845"}
	f.repo.categories[2] = Category{ID: 2, CompanyID: company, Code: "VEH", Name: "Véhicules", ExpenseAccountCode: "6813", AccumulatedAccountCode: "2845", JournalCode: "XX"}
	jan := date(2025, 1, 1)
	old := date(2024, 1, 1)
	oldEnd := date(2024, 12, 31)
	f.seed(1, Asset{CategoryID: 1, Code: "A1", GrossValue: dec("12000"), DurationMonths: 12, InServiceDate: &jan})
	f.seed(2, Asset{CategoryID: 1, Code: "A2", GrossValue: dec("24000"), DurationMonths: 24, InServiceDate: &jan})
	f.seed(3, Asset{CategoryID: 2, Code: "A3", GrossValue: dec("6000"), DurationMonths: 12, InServiceDate: &jan})
	f.seed(4, Asset{CategoryID: 1, Code: "A4", GrossValue: dec("5000"), DurationMonths: 12, Method: UnitsOfProduction, InServiceDate: &jan})
	f.seed(5, Asset{CategoryID: 1, Code: "A5", GrossValue: dec("1200"), DurationMonths: 12, InServiceDate: &old, DepreciationEndDate: &oldEnd, AccumulatedDepreciation: dec("1200")})
	f.seed(6, Asset{CategoryID: 1, Code: "A6", GrossValue: dec("1200"), DurationMonths: 12, Status: AssetDraft})
}

func TestGenerateMonthlyDepreciationEntries(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()
	ctx := context.Background()

	result, err := f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 31), UserID: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "2025-03", result.Period)
	assert.Equal(t, 2, result.AssetsProcessed)
	assert.Equal(t, 1, result.AssetsSkipped)
	assert.Equal(t, 1, result.EntriesCreated)
	assert.True(t, result.TotalAmount.Equal(dec("2000")))
	require.Len(t, result.Errors, 2)
	items := []string{result.Errors[0].Item, result.Errors[1].Item}
	assert.ElementsMatch(t, []string{"asset A4", "category VEH"}, items)
	assert.Error(t, result.Err())

	require.Len(t, f.poster.posted, 1)
	posted := f.poster.posted[0]
	assert.Equal(t, "OD", posted.JournalCode)
	assert.True(t, posted.AutoValidate)
	assert.Equal(t, int64(1), posted.FiscalYearID)
	require.Len(t, posted.Lines, 2)
	assert.Equal(t, "6813", posted.Lines[0].AccountCode)
	assert.True(t, posted.Lines[0].Debit.Equal(dec("2000")))
	assert.Equal(t, "2845", posted.Lines[1].AccountCode)
	assert.True(t, posted.Lines[1].Credit.Equal(dec("2000")))

	a1 := f.repo.assets[1]
	assert.True(t, a1.AccumulatedDepreciation.Equal(dec("1000")))
	assert.True(t, a1.NetBookValue.Equal(dec("11000")))
	require.Len(t, f.repo.lines[1], 1)
	realized := f.repo.lines[1][0]
	assert.Equal(t, LineRealized, realized.Status)
	require.NotNil(t, realized.EntryID)
	assert.Equal(t, int64(1), *realized.EntryID)

	a3 := f.repo.assets[3]
	assert.True(t, a3.AccumulatedDepreciation.IsZero(), "failed category leaves its assets untouched")
	assert.Empty(t, f.repo.lines[3])

	again, err := f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 15)})
	require.NoError(t, err)
	assert.Equal(t, 0, again.AssetsProcessed)
	assert.Equal(t, 3, again.AssetsSkipped)
	assert.Equal(t, 0, again.EntriesCreated)
	assert.Len(t, f.poster.posted, 1)
	assert.True(t, f.repo.assets[1].AccumulatedDepreciation.Equal(dec("1000")))
}

func TestGenerateMonthlyDepreciationEntriesDecliningUsesRemainingBase(t *testing.T) {
	f := newFixture(t)
	f.repo.categories[1] = Category{ID: 1, CompanyID: company, Code: "MAT", Name: "Matériel", ExpenseAccountCode: "6813", AccumulatedAccountCode: "2845"}
	jan := date(2025, 1, 1)
	f.seed(1, Asset{CategoryID: 1, Code: "D1", GrossValue: dec("900000"), DurationMonths: 60, Method: DecliningBalance, InServiceDate: &jan})
	ctx := context.Background()

	result, err := f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 31)})
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	assert.True(t, result.TotalAmount.Equal(dec("26250")), result.TotalAmount.String())

	result, err = f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 4, 30)})
	require.NoError(t, err)
	assert.True(t, result.TotalAmount.Equal(dec("25484.38")), result.TotalAmount.String())

	d1 := f.repo.assets[1]
	assert.True(t, d1.AccumulatedDepreciation.Equal(dec("51734.38")))
	assert.True(t, d1.NetBookValue.Equal(dec("848265.62")))
}

func TestGenerateMonthlyDepreciationEntriesRejectsEarlierPeriod(t *testing.T) {
	f := newFixture(t)
	f.repo.categories[1] = Category{ID: 1, CompanyID: company, Code: "MAT", Name: "Matériel", ExpenseAccountCode: "6813", AccumulatedAccountCode: "2845"}
	jan := date(2025, 1, 1)
	f.seed(1, Asset{CategoryID: 1, Code: "A1", GrossValue: dec("12000"), DurationMonths: 12, InServiceDate: &jan})
	ctx := context.Background()

	_, err := f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 31)})
	require.NoError(t, err)

	result, err := f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 1, 31)})
	require.NoError(t, err)
	assert.Zero(t, result.AssetsProcessed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "asset A1", result.Errors[0].Item)
	assert.Contains(t, result.Errors[0].Error, "2025-03")
	assert.Len(t, f.poster.posted, 1)

	require.Len(t, f.repo.lines[1], 1)
	assert.Equal(t, "2025-03", f.repo.lines[1][0].Label)
	assert.True(t, f.repo.assets[1].AccumulatedDepreciation.Equal(dec("1000")))
}

func TestGenerateMonthlyDepreciationEntriesInvalidatesAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()

	result, err := f.service.GenerateMonthlyDepreciationEntries(context.Background(), BatchInput{CompanyID: company, Date: date(2025, 3, 31)})
	require.NoError(t, err)
	require.Equal(t, 1, result.EntriesCreated)
	require.Len(t, f.cache.calls, 1)
	assert.Equal(t, company, f.cache.calls[0].company)
}

func TestGenerateMonthlyDepreciationEntriesFilter(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()
	mat := int64(1)
	delete(f.repo.assets, 4)

	result, err := f.service.GenerateMonthlyDepreciationEntries(context.Background(), BatchInput{
		CompanyID: company,
		Date:      date(2025, 2, 28),
		Filter:    Filter{CategoryID: &mat},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
	assert.Equal(t, 2, result.AssetsProcessed)
	assert.Equal(t, []int64{1}, result.EntryIDs)
}

func TestGenerateMonthlyDepreciationEntriesHoldsCompanyLock(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()
	ctx := context.Background()

	lock, err := f.locker.Obtain(ctx, internalShared.DepreciationLockKey(company), time.Minute, nil)
	require.NoError(t, err)

	_, err = f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 31)})
	require.ErrorIs(t, err, shared.ErrBatchRunning)
	assert.True(t, shared.IsState(err))
	assert.Empty(t, f.poster.posted)

	require.NoError(t, lock.Release(ctx))
	_, err = f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 3, 31)})
	require.NoError(t, err)

	_, err = f.locker.Obtain(ctx, internalShared.DepreciationLockKey(company), time.Minute, nil)
	require.NoError(t, err, "run releases the lock")
}

func TestGenerateMonthlyDepreciationEntriesValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.GenerateMonthlyDepreciationEntries(context.Background(), BatchInput{Date: date(2025, 1, 31)})
	require.ErrorIs(t, err, shared.ErrMissingField)
	_, err = f.service.GenerateMonthlyDepreciationEntries(context.Background(), BatchInput{CompanyID: company})
	var field *shared.FieldError
	require.True(t, errors.As(err, &field))
	assert.Equal(t, "calculation_date", field.Field)
}

func TestCreateAssetStoresForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat, err := f.service.CreateCategory(ctx, CreateCategoryInput{
		CompanyID: company, Code: "mat", Name: "Matériel", ExpenseAccountCode: "6813", AccumulatedAccountCode: "2845",
	})
	require.NoError(t, err)
	assert.Equal(t, "MAT", cat.Code)

	_, err = f.service.CreateCategory(ctx, CreateCategoryInput{
		CompanyID: company, Code: "BAD", Name: "Bad", ExpenseAccountCode: "401", AccumulatedAccountCode: "2845",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	inService := date(2025, 1, 1)
	asset, err := f.service.CreateAsset(ctx, CreateAssetInput{
		CompanyID: company, CategoryID: cat.ID, Code: "PC-01", Name: "Serveur",
		GrossValue: dec("3600"), DurationMonths: 36, Method: StraightLine, InServiceDate: &inService,
	})
	require.NoError(t, err)
	assert.Equal(t, AssetInService, asset.Status)
	require.NotNil(t, asset.DepreciationEndDate)
	assert.Equal(t, date(2027, 12, 31), *asset.DepreciationEndDate)

	plan, err := f.service.Schedule(ctx, asset.ID)
	require.NoError(t, err)
	require.Len(t, plan, 36)
	assert.Equal(t, asset.ID, plan[0].AssetID)

	draft, err := f.service.CreateAsset(ctx, CreateAssetInput{
		CompanyID: company, CategoryID: cat.ID, Code: "PC-02", Name: "Portable",
		GrossValue: dec("1200"), DurationMonths: 12, Method: DecliningBalance,
	})
	require.NoError(t, err)
	assert.Equal(t, AssetDraft, draft.Status)
	plan, err = f.service.Schedule(ctx, draft.ID)
	require.NoError(t, err)
	assert.Empty(t, plan)

	_, err = f.service.CreateAsset(ctx, CreateAssetInput{
		CompanyID: company, CategoryID: cat.ID, Code: "PC-03", Name: "Bad",
		GrossValue: dec("100"), ResidualValue: dec("100"), DurationMonths: 12, Method: StraightLine,
	})
	require.ErrorIs(t, err, shared.ErrInvalidAsset)
}

func TestRegenerateForecastKeepsRealized(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()
	ctx := context.Background()

	_, err := f.service.RegenerateForecast(ctx, 1, nil, "")
	require.NoError(t, err)
	require.Len(t, f.repo.lines[1], 12)

	_, err = f.service.GenerateMonthlyDepreciationEntries(ctx, BatchInput{CompanyID: company, Date: date(2025, 1, 31)})
	require.NoError(t, err)

	plan, err := f.service.RegenerateForecast(ctx, 1, nil, DecliningBalance)
	require.NoError(t, err)
	assert.Len(t, plan, 12)

	stored, err := f.service.Schedule(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stored, 12)
	realized := 0
	for _, l := range stored {
		if l.Status == LineRealized {
			realized++
			assert.Equal(t, "2025-01", l.Label)
			assert.Equal(t, StraightLine, l.Method)
		} else {
			assert.Equal(t, DecliningBalance, l.Method)
		}
	}
	assert.Equal(t, 1, realized)
	assert.Equal(t, DecliningBalance, f.repo.assets[1].Method)
}

func TestCalculateDepreciationScheduleIsReadOnly(t *testing.T) {
	f := newFixture(t)
	f.seedBatch()
	start := date(2025, 6, 1)

	plan, err := f.service.CalculateDepreciationSchedule(context.Background(), 2, &start, Progressive)
	require.NoError(t, err)
	require.Len(t, plan, 24)
	assert.Equal(t, "2025-06", plan[0].Label)
	assert.Empty(t, f.repo.lines[2])

	_, err = f.service.CalculateDepreciationSchedule(context.Background(), 6, nil, "")
	var field *shared.FieldError
	require.True(t, errors.As(err, &field))
	assert.Equal(t, "start_date", field.Field)

	_, err = f.service.CalculateDepreciationSchedule(context.Background(), 99, nil, "")
	require.ErrorIs(t, err, shared.ErrAssetNotFound)
}
