package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.EntryOperation("create", nil)
	m.EntryOperation("create", errors.New("boom"))
	m.CacheHit("trial_balance")
	m.IntegrityFailure()
	m.DepreciationAssets("posted", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("create", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("trial_balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.integrity))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.depreciation.WithLabelValues("posted")))
}

func TestNilLedgerMetricsIsNoop(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.EntryOperation("create", nil)
		m.CacheHit("x")
		m.CacheMiss("x")
		m.IntegrityFailure()
		m.DepreciationAssets("failed", 1)
	})
}

func TestLedgerMetricsShareCollectorsOnOneRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewLedgerMetrics(reg)
	second := NewLedgerMetrics(reg)

	first.IntegrityFailure()
	second.IntegrityFailure()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.integrity))
	assert.Same(t, first.entries, second.entries)
}

func TestLedgerMetricsPanicsOnConflictingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "ledger_integrity_failures_total", Help: "clash"}))

	assert.Panics(t, func() { NewLedgerMetrics(reg) })
}
