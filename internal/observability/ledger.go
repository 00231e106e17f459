package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics groups the accounting core collectors. A nil *LedgerMetrics is a no-op.
type LedgerMetrics struct {
	entries      *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	integrity    prometheus.Counter
	depreciation *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger collectors on reg.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &LedgerMetrics{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Journal entry mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_cache_hits_total",
			Help: "Ledger report cache hits.",
		}, []string{"report"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_cache_miss_total",
			Help: "Ledger report cache misses.",
		}, []string{"report"}),
		integrity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_integrity_failures_total",
			Help: "Trial balances found out of balance.",
		}),
		depreciation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_depreciation_assets_total",
			Help: "Assets handled by depreciation batches by outcome.",
		}, []string{"outcome"}),
	}
	m.entries = registerOrReuse(reg, m.entries)
	m.cacheHits = registerOrReuse(reg, m.cacheHits)
	m.cacheMisses = registerOrReuse(reg, m.cacheMisses)
	m.integrity = registerOrReuse(reg, m.integrity)
	m.depreciation = registerOrReuse(reg, m.depreciation)
	return m
}

// registerOrReuse registers c, or returns the collector already registered under the
// same descriptor. Any other registration error panics like MustRegister.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(fmt.Errorf("observability: register ledger metrics: %w", err))
}

// EntryOperation counts one engine call.
func (m *LedgerMetrics) EntryOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.entries.WithLabelValues(op, outcome).Inc()
}

// CacheHit counts a cached report served.
func (m *LedgerMetrics) CacheHit(report string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(report).Inc()
}

// CacheMiss counts a report rebuilt from storage.
func (m *LedgerMetrics) CacheMiss(report string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(report).Inc()
}

// IntegrityFailure counts an unbalanced trial balance.
func (m *LedgerMetrics) IntegrityFailure() {
	if m == nil {
		return
	}
	m.integrity.Inc()
}

// DepreciationAssets adds n assets with the given outcome (posted, skipped, failed).
func (m *LedgerMetrics) DepreciationAssets(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.depreciation.WithLabelValues(outcome).Add(float64(n))
}
