package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/batch"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger/ethledger"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
)

var ErrQueueClosed = errors.New("publish queue is closed")

// Flush triggers
const (
	TriggerSize   = "size"
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// FlushError carries the records of a failed flush so the caller can retry
// them. The queue itself never retries.
type FlushError struct {
	Records []announcement.Announcement
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %d records: %v", len(e.Records), e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

type QueueOptions struct {
	// MaxBatch flushes once this many records are pending.
	MaxBatch int
	// MaxDelay flushes this long after the first record of a batch arrives.
	// Zero disables timed flushes.
	MaxDelay time.Duration
	// OnFlush observes every flush, including timed ones whose result has
	// no other way to reach the caller.
	OnFlush func(pubs []ethledger.Publication, err error)
	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
}

// Queue accumulates announcements and publishes them in batches, either
// when MaxBatch records are pending or MaxDelay after the first one.
// Flushes never overlap.
type Queue struct {
	pub      *Publisher
	maxBatch int
	maxDelay time.Duration
	onFlush  func([]ethledger.Publication, error)
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending []announcement.Announcement
	timer   *time.Timer
	gen     uint64
	closed  bool

	flushMu sync.Mutex
	wg      sync.WaitGroup
}

func NewQueue(pub *Publisher, opts QueueOptions) *Queue {
	q := &Queue{
		pub:      pub,
		maxBatch: opts.MaxBatch,
		maxDelay: opts.MaxDelay,
		onFlush:  opts.OnFlush,
		log:      zerolog.Nop(),
		metrics:  opts.Metrics,
	}
	if opts.Logger != nil {
		q.log = opts.Logger.With().Str("component", "publish_queue").Logger()
	}
	if q.maxBatch <= 0 {
		q.maxBatch = internal.DefaultQueueSize
	}
	return q
}

// Add queues records. When the batch fills, it is published before Add
// returns and a failure is reported as *FlushError.
func (q *Queue) Add(ctx context.Context, records ...announcement.Announcement) error {
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("record %d: %w", i, batch.ErrNilRecord)
		}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, records...)
	if len(q.pending) >= q.maxBatch {
		cut := q.takeLocked()
		q.mu.Unlock()
		_, err := q.publish(ctx, cut, TriggerSize)
		return err
	}
	if q.timer == nil && q.maxDelay > 0 && len(q.pending) > 0 {
		q.wg.Add(1)
		gen := q.gen
		q.timer = time.AfterFunc(q.maxDelay, func() { q.timerFlush(gen) })
	}
	q.mu.Unlock()
	return nil
}

// Pending returns the number of queued records.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush publishes whatever is pending.
func (q *Queue) Flush(ctx context.Context) ([]ethledger.Publication, error) {
	q.mu.Lock()
	cut := q.takeLocked()
	q.mu.Unlock()
	return q.publish(ctx, cut, TriggerManual)
}

// Close flushes the remaining records and waits for an in-flight timed
// flush. Later calls to Add fail with ErrQueueClosed.
func (q *Queue) Close(ctx context.Context) ([]ethledger.Publication, error) {
	q.mu.Lock()
	q.closed = true
	cut := q.takeLocked()
	q.mu.Unlock()

	pubs, err := q.publish(ctx, cut, TriggerManual)
	q.wg.Wait()
	return pubs, err
}

// takeLocked cuts the pending batch and disarms the timer.
func (q *Queue) takeLocked() []announcement.Announcement {
	cut := q.pending
	q.pending = nil
	q.gen++
	if q.timer != nil {
		if q.timer.Stop() {
			q.wg.Done()
		}
		q.timer = nil
	}
	return cut
}

func (q *Queue) timerFlush(gen uint64) {
	defer q.wg.Done()
	q.mu.Lock()
	if gen != q.gen {
		// the batch this timer was armed for has already been cut
		q.mu.Unlock()
		return
	}
	q.timer = nil
	cut := q.takeLocked()
	q.mu.Unlock()
	q.publish(context.Background(), cut, TriggerTimer)
}

func (q *Queue) publish(ctx context.Context, cut []announcement.Announcement, trigger string) ([]ethledger.Publication, error) {
	if len(cut) == 0 {
		return nil, nil
	}
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	pubs, err := q.pub.Publish(ctx, cut)
	if err != nil {
		err = &FlushError{Records: cut, Err: err}
		q.metrics.QueueFlushed(trigger, "error")
		q.log.Error().Err(err).Str("trigger", trigger).Msg("queue flush failed")
	} else {
		q.metrics.QueueFlushed(trigger, "ok")
		q.log.Debug().Str("trigger", trigger).Int("records", len(cut)).Int("files", len(pubs)).Msg("queue flushed")
	}
	if q.onFlush != nil {
		q.onFlush(pubs, err)
	}
	return pubs, err
}
