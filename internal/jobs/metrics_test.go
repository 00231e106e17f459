package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	run := m.Track("depreciation:monthly")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.running.WithLabelValues("depreciation:monthly")))
	assert.NoError(t, run.End(nil))

	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("depreciation:monthly").End(boom))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.running.WithLabelValues("depreciation:monthly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("depreciation:monthly", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("depreciation:monthly", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestAddChecked(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddChecked("balanced", 3)
	m.AddChecked("unbalanced", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.checked.WithLabelValues("balanced")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.checked))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("x").End(boom))
	assert.NotPanics(t, func() { m.AddChecked("error", 1) })
}
