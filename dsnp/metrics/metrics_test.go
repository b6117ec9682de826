package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BatchWritten("broadcast", "ok", 1, 1)
		m.WindowFetched(3)
		m.EventScanned()
		m.EventDelivered("live")
		m.EventDropped("covered")
		m.Announced("reply")
		m.QueueFlushed("size", "ok")
	})
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BatchWritten("reply", "ok", 10, 2048)
	m.BatchWritten("reply", "mixed_type", 3, 0)
	m.WindowFetched(4)
	m.WindowFetched(0)
	m.EventScanned()
	m.EventDelivered("history")
	m.EventDropped("duplicate")
	m.Announced("reply")
	m.QueueFlushed("timer", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesWritten.WithLabelValues("reply", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesWritten.WithLabelValues("reply", "mixed_type")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BatchRows.WithLabelValues("reply")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.BatchBytes.WithLabelValues("reply")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScanWindows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Delivered.WithLabelValues("history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueFlushes.WithLabelValues("timer", "error")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
