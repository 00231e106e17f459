package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores report payloads in Redis under versioned keys. Writers bump the version of
// the company and of every touched account; stale keys are never read again and expire
// with the TTL. A nil *Cache or a nil client disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func companyVersionKey(companyID int64) string {
	return "ledger:version:company:" + strconv.FormatInt(companyID, 10)
}

func accountVersionKey(accountID int64) string {
	return "ledger:version:account:" + strconv.FormatInt(accountID, 10)
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) version(ctx context.Context, key string) (int64, error) {
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// TrialBalanceKey composes the key of a trial balance under the company version.
func (c *Cache) TrialBalanceKey(ctx context.Context, q TrialBalanceQuery) (string, error) {
	parts := []string{"ledger", "tb", formatInt(q.CompanyID), formatInt(q.FiscalYearID), dateToken(q.AsOf), strconv.FormatBool(q.IncludeZeroBalances)}
	if !c.enabled() {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.version(ctx, companyVersionKey(q.CompanyID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", strings.Join(parts, ":"), ver), nil
}

// AccountLedgerKey composes the key of an account ledger under the account version.
func (c *Cache) AccountLedgerKey(ctx context.Context, q AccountQuery) (string, error) {
	parts := []string{"ledger", "account", formatInt(q.AccountID), formatInt(q.FiscalYearID), dateToken(q.DateFrom), dateToken(q.DateTo), strconv.FormatBool(q.IncludeUnvalidated)}
	if !c.enabled() {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.version(ctx, accountVersionKey(q.AccountID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", strings.Join(parts, ":"), ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// It reports whether the value came from the cache.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error) {
	if loader == nil {
		return false, errors.New("ledger cache: loader required")
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c.enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// InvalidationChannel carries the company id of every invalidation.
const InvalidationChannel = "ledger:invalidated"

// Invalidate bumps the company version and the version of each account in one round trip,
// then announces the company on InvalidationChannel.
func (c *Cache) Invalidate(ctx context.Context, companyID int64, accountIDs []int64) error {
	if !c.enabled() {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, companyVersionKey(companyID))
	for _, id := range accountIDs {
		pipe.Incr(ctx, accountVersionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return c.client.Publish(ctx, InvalidationChannel, formatInt(companyID)).Err()
}

// ListenForInvalidation calls fn for every company invalidated by any process until ctx ends.
func (c *Cache) ListenForInvalidation(ctx context.Context, fn func(companyID int64)) error {
	if !c.enabled() || fn == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if id, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					fn(id)
				}
			}
		}
	}()
	return nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
