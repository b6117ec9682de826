// Package metrics defines the prometheus collectors shared by the batch and
// ledger packages. Collectors are registered on an injected registerer; a
// nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the library exports.
type Metrics struct {
	BatchesWritten *prometheus.CounterVec
	BatchRows      *prometheus.CounterVec
	BatchBytes     *prometheus.CounterVec

	ScanWindows    prometheus.Counter
	ScanEvents     prometheus.Counter
	ScanWindowSize prometheus.Histogram

	Delivered *prometheus.CounterVec
	Dropped   *prometheus.CounterVec

	Published    *prometheus.CounterVec
	QueueFlushes *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_batches_written_total", Help: "Batch write attempts"},
			[]string{"type", "status"},
		),
		BatchRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_batch_rows_total", Help: "Rows committed to batch files"},
			[]string{"type"},
		),
		BatchBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_batch_bytes_total", Help: "Bytes committed to batch files"},
			[]string{"type"},
		),
		ScanWindows: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "dsnp_scan_windows_total", Help: "Log windows fetched by scanners"},
		),
		ScanEvents: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "dsnp_scan_events_total", Help: "Log events yielded by scanners"},
		),
		ScanWindowSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "dsnp_scan_window_events", Help: "Events per fetched window", Buckets: prometheus.ExponentialBuckets(1, 4, 8)},
		),
		Delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_subscriber_delivered_total", Help: "Events delivered to subscribers"},
			[]string{"source"},
		),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_subscriber_dropped_total", Help: "Live events dropped by subscribers"},
			[]string{"reason"},
		),
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_publications_total", Help: "Batch publications announced"},
			[]string{"type"},
		),
		QueueFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "dsnp_queue_flushes_total", Help: "Publish queue flushes"},
			[]string{"trigger", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.BatchesWritten, m.BatchRows, m.BatchBytes,
			m.ScanWindows, m.ScanEvents, m.ScanWindowSize,
			m.Delivered, m.Dropped,
			m.Published, m.QueueFlushes,
		)
	}
	return m
}

// BatchWritten records the outcome of one batch write.
func (m *Metrics) BatchWritten(typ, status string, rows, bytes int64) {
	if m == nil {
		return
	}
	m.BatchesWritten.WithLabelValues(typ, status).Inc()
	if status == "ok" {
		m.BatchRows.WithLabelValues(typ).Add(float64(rows))
		m.BatchBytes.WithLabelValues(typ).Add(float64(bytes))
	}
}

// WindowFetched records one scanner window fetch.
func (m *Metrics) WindowFetched(events int) {
	if m == nil {
		return
	}
	m.ScanWindows.Inc()
	m.ScanWindowSize.Observe(float64(events))
}

// EventScanned records one event yielded by a scanner.
func (m *Metrics) EventScanned() {
	if m == nil {
		return
	}
	m.ScanEvents.Inc()
}

// EventDelivered records a subscriber callback; source is history or live.
func (m *Metrics) EventDelivered(source string) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(source).Inc()
}

// EventDropped records a live event the subscriber discarded.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

// Announced records one publication handed to the ledger.
func (m *Metrics) Announced(typ string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(typ).Inc()
}

// QueueFlushed records a publish queue flush; trigger is size, timer or
// manual.
func (m *Metrics) QueueFlushed(trigger, status string) {
	if m == nil {
		return
	}
	m.QueueFlushes.WithLabelValues(trigger, status).Inc()
}
