// Command ledgerctl administers the ledger core: depreciation previews and runs,
// integrity checks and job enqueueing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/ohada-ledger/internal/app"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/cache"
	"github.com/odyssey-erp/ohada-ledger/internal/platform/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerctl administers the OHADA ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newDepreciationCmd())
	root.AddCommand(newIntegrityCmd())
	root.AddCommand(newEnqueueCmd())
	return root
}

// runtime holds the connections of commands that talk to the database.
type runtime struct {
	cfg      *app.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	services *app.Services
}

func connect(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    redisClient,
		services: app.NewServices(cfg, pool, redisClient, observability.NewLedgerMetrics(nil), logger),
	}, nil
}

func (r *runtime) Close() error {
	r.pool.Close()
	return multierr.Combine(r.redis.Close())
}
