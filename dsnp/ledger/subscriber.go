package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
)

// Delivery sources and drop reasons reported to metrics.
const (
	SourceHistory = "history"
	SourceLive    = "live"

	DropCovered   = "covered"
	DropDuplicate = "duplicate"
	DropClosed    = "closed"
)

// SubscribeOptions configures Subscribe.
type SubscribeOptions struct {
	Filter Filter
	// FromBlock, when set, replays history from this block up to the head
	// observed at subscription time before live delivery starts. Nil means
	// live events only.
	FromBlock *uint64
	// Walkback bounds the blocks per history query. Zero means the default.
	Walkback int64
	// MaxWalkback defaults to the provider ceiling in the root package.
	MaxWalkback int64
	Logger      *zerolog.Logger
	Metrics   *metrics.Metrics
	// OnError receives live decode failures. Those events are skipped.
	OnError func(error)
}

type subscription[T any] struct {
	provider Provider
	decode   Decoder[T]
	cb       func(Event[T])
	onError  func(error)
	log      zerolog.Logger
	metrics  *metrics.Metrics

	// live events below minLive were covered by the replay
	minLive uint64
	closed  atomic.Bool

	// mu guards the replay buffer and the closed/inCallback handshake
	mu         sync.Mutex
	replaying  bool
	pending    []Log
	inCallback bool

	deliverMu sync.Mutex
	last      Log
	hasLast   bool

	handle   Handle
	stopOnce sync.Once
}

// Subscribe delivers decoded events matching opts.Filter to cb, one at a
// time and ordered by (block, log index).
//
// With FromBlock set, the head block is read first, the live listener is
// registered second, and history up to that head is replayed third. Live
// events arriving during replay are held back and released afterwards, minus
// anything the replay already covered. Each (block, log index) is delivered
// at most once.
//
// History is fetched in ascending windows of at most Walkback blocks and is
// delivered only once every window has been fetched and decoded.
//
// The returned function unsubscribes. It is idempotent and safe to call from
// inside cb. Once it returns, cb is not invoked again; called from outside cb,
// it also waits out a delivery that was about to invoke cb. The subscription
// also ends when ctx is done. If history cannot be fetched or decoded, the
// listener is removed and the error is returned.
func Subscribe[T any](ctx context.Context, provider Provider, decode Decoder[T], cb func(Event[T]), opts SubscribeOptions) (func(), error) {
	if decode == nil {
		return nil, ErrNilDecoder
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	walkback, err := opts.walkback()
	if err != nil {
		return nil, err
	}

	s := &subscription[T]{
		provider: provider,
		decode:   decode,
		cb:       cb,
		onError:  opts.OnError,
		log:      zerolog.Nop(),
		metrics:  opts.Metrics,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "log_subscriber").Logger()
	}

	var cursor uint64
	if opts.FromBlock != nil {
		head, err := provider.CurrentBlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		cursor = head
		s.minLive = max(head+1, *opts.FromBlock)
		s.replaying = true
	}

	h, err := provider.OnLog(ctx, opts.Filter, s.onLive)
	if err != nil {
		return nil, err
	}
	s.handle = h

	if opts.FromBlock != nil {
		if err := s.replay(ctx, opts.Filter, *opts.FromBlock, cursor, walkback); err != nil {
			s.closed.Store(true)
			if offErr := provider.OffLog(h); offErr != nil {
				err = errors.Join(err, offErr)
			}
			return nil, err
		}
		s.finishReplay()
	}

	stop := context.AfterFunc(ctx, s.unsubscribe)
	return func() {
		stop()
		s.unsubscribe()
	}, nil
}

func (o SubscribeOptions) walkback() (uint64, error) {
	maxWalkback := o.MaxWalkback
	if maxWalkback <= 0 {
		maxWalkback = internal.DefaultMaxWalkback
	}
	walkback := o.Walkback
	if walkback == 0 {
		walkback = min(internal.DefaultWalkback, maxWalkback)
	}
	if walkback < 1 || walkback > maxWalkback {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidWalkback, walkback, maxWalkback)
	}
	return uint64(walkback), nil
}

// replay fetches [from, to] in ascending windows and delivers the decoded
// events once all of them succeeded.
func (s *subscription[T]) replay(ctx context.Context, filter Filter, from, to, walkback uint64) error {
	if from > to {
		s.log.Debug().Uint64("from", from).Uint64("head", to).Msg("nothing to replay")
		return nil
	}

	var events []Event[T]
	windows := 0
	for start := from; start <= to; start += walkback {
		end := to
		if to-start >= walkback {
			end = start + walkback - 1
		}
		logs, err := s.provider.GetLogs(ctx, filter, start, end)
		if err != nil {
			return err
		}
		SortLogs(logs)
		for _, l := range logs {
			v, err := s.decode(l)
			if err != nil {
				return fmt.Errorf("decode log %d in block %d: %w", l.LogIndex, l.BlockNumber, err)
			}
			events = append(events, Event[T]{Log: l, Value: v})
		}
		windows++
		s.metrics.WindowFetched(len(logs))
		if end == to {
			break
		}
	}

	s.log.Debug().
		Uint64("from", from).
		Uint64("to", to).
		Int("windows", windows).
		Int("events", len(events)).
		Msg("replaying history")

	for _, ev := range events {
		s.deliverEvent(ev, SourceHistory)
	}
	return nil
}

// finishReplay drains live events buffered during replay. The buffer is
// swapped out under mu, so an event is either drained here or delivered
// directly by onLive, never both.
func (s *subscription[T]) finishReplay() {
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		if len(batch) == 0 {
			s.replaying = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		SortLogs(batch)
		for _, l := range batch {
			s.deliverLive(l)
		}
	}
}

func (s *subscription[T]) onLive(l Log) {
	if s.closed.Load() {
		s.metrics.EventDropped(DropClosed)
		return
	}
	s.mu.Lock()
	if s.replaying {
		s.pending = append(s.pending, l)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.deliverLive(l)
}

func (s *subscription[T]) deliverLive(l Log) {
	if l.BlockNumber < s.minLive {
		s.metrics.EventDropped(DropCovered)
		return
	}
	v, err := s.decode(l)
	if err != nil {
		err = fmt.Errorf("decode log %d in block %d: %w", l.LogIndex, l.BlockNumber, err)
		s.log.Warn().Err(err).Msg("skipping undecodable live event")
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	s.deliverEvent(Event[T]{Log: l, Value: v}, SourceLive)
}

func (s *subscription[T]) deliverEvent(ev Event[T], source string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.hasLast && Compare(ev.Log, s.last) <= 0 {
		s.metrics.EventDropped(DropDuplicate)
		return
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		s.metrics.EventDropped(DropClosed)
		return
	}
	s.inCallback = true
	s.mu.Unlock()

	s.last, s.hasLast = ev.Log, true
	s.cb(ev)

	s.mu.Lock()
	s.inCallback = false
	s.mu.Unlock()
	s.metrics.EventDelivered(source)
}

// unsubscribe marks the subscription closed and removes the listener. While
// a callback is running it returns at once, since the caller may be that
// callback. Otherwise it waits for deliverMu so that a delivery already past
// its duplicate check observes the close before it could reach cb.
func (s *subscription[T]) unsubscribe() {
	s.mu.Lock()
	s.closed.Store(true)
	busy := s.inCallback
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		if err := s.provider.OffLog(s.handle); err != nil {
			s.log.Warn().Err(err).Msg("failed to remove log listener")
		}
		s.log.Debug().Msg("unsubscribed")
	})

	if !busy {
		s.deliverMu.Lock()
		s.deliverMu.Unlock()
	}
}
