package app

import (
	"log/slog"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/entries"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ohada-ledger/internal/assets"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	"github.com/odyssey-erp/ohada-ledger/internal/shared"
)

// Services is the wired accounting core shared by every binary.
type Services struct {
	FiscalYearRepo periods.Repository
	FiscalYears    *periods.Service
	Accounts       *accounts.Service
	Journals       *journals.Service
	Entries        *entries.Service
	LedgerCache    *ledger.Cache
	Ledger         *ledger.Service
	Reports        *reports.Service
	Assets         *assets.Service
}

// NewServices builds the services over a pool and a redis client. A nil redis client
// disables the ledger cache and the depreciation lock.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.LedgerMetrics, logger *slog.Logger) *Services {
	yearRepo := periods.NewRepository(pool)
	accountRepo := accounts.NewRepository(pool)

	accountService := accounts.NewService(accountRepo)
	journalService := journals.NewService(journals.NewRepository(pool))

	ledgerCache := ledger.NewCache(redisClient, cfg.LedgerCacheTTL)
	ledgerService := ledger.NewService(ledger.NewRepository(pool, accountRepo, yearRepo), ledgerCache, metrics, logger)

	entryService := entries.NewService(entries.NewRepository(pool), entries.Deps{
		Accounts:    accountService,
		Journals:    journalService,
		FiscalYears: yearRepo,
		Cache:       ledgerCache,
		Audit:       shared.NewAuditLogger(pool),
		Metrics:     metrics,
		Logger:      logger,
	})

	fiscalYears := periods.NewService(yearRepo)
	var locker *redislock.Client
	if redisClient != nil {
		locker = redislock.New(redisClient)
	}
	assetService := assets.NewService(assets.NewRepository(pool), cfg.Depreciation(), assets.Deps{
		Entries:     entryService,
		FiscalYears: fiscalYears,
		Cache:       ledgerCache,
		Locker:      locker,
		Metrics:     metrics,
		Logger:      logger,
	})

	return &Services{
		FiscalYearRepo: yearRepo,
		FiscalYears:    fiscalYears,
		Accounts:       accountService,
		Journals:       journalService,
		Entries:        entryService,
		LedgerCache:    ledgerCache,
		Ledger:         ledgerService,
		Reports:        reports.NewService(ledgerService),
		Assets:         assetService,
	}
}

// Handlers builds the HTTP handlers of the services.
func (s *Services) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:            logger,
		AccountsHandler:   accounts.NewHandler(logger, s.Accounts),
		JournalsHandler:   journals.NewHandler(logger, s.Journals),
		FiscalYearHandler: periods.NewHandler(s.FiscalYears),
		EntriesHandler:    entries.NewHandler(logger, s.Entries),
		LedgerHandler:     ledger.NewHandler(logger, s.Ledger),
		ReportsHandler:    reports.NewHandler(s.Reports),
		AssetsHandler:     assets.NewHandler(logger, s.Assets),
	}
}
