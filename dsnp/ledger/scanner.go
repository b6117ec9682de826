package ledger

import (
	"context"
	"fmt"
	"iter"

	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
)

// ScanWindow is the scanner's paging state. Start and End bound the next
// window to fetch, inclusive; both only ever decrease.
type ScanWindow struct {
	EarliestBlock int64
	LatestBlock   int64
	Walkback      int64
	Start         int64
	End           int64
}

// Exhausted reports whether every window has been fetched.
func (w ScanWindow) Exhausted() bool { return w.End < w.EarliestBlock }

// slide moves the window down by one walkback, clamping at EarliestBlock.
func (w *ScanWindow) slide() {
	w.End = w.Start - 1
	w.Start = max(w.Start-w.Walkback, w.EarliestBlock)
}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	Filter        Filter
	EarliestBlock int64
	LatestBlock   int64
	// Walkback is the number of blocks per query, in [1, MaxWalkback].
	Walkback int64
	// MaxWalkback defaults to the provider ceiling in the root package.
	MaxWalkback int64
	Logger      *zerolog.Logger
	Metrics     *metrics.Metrics
}

// Validate checks the options without touching the network.
func (o ScanOptions) Validate() error {
	maxWalkback := o.MaxWalkback
	if maxWalkback <= 0 {
		maxWalkback = internal.DefaultMaxWalkback
	}
	if o.Walkback < 1 || o.Walkback > maxWalkback {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidWalkback, o.Walkback, maxWalkback)
	}
	if o.EarliestBlock < 0 {
		return fmt.Errorf("%w: earliest block %d is negative", ErrInvalidScanRange, o.EarliestBlock)
	}
	if o.LatestBlock <= o.EarliestBlock {
		return fmt.Errorf("%w: latest block %d must exceed earliest block %d", ErrInvalidScanRange, o.LatestBlock, o.EarliestBlock)
	}
	return nil
}

// Scanner pages backwards through [EarliestBlock, LatestBlock]. Windows are
// fetched newest first; the events of one window are yielded oldest first.
// A Scanner must be driven by a single caller and may be abandoned between
// calls to Next.
type Scanner[T any] struct {
	provider Provider
	decode   Decoder[T]
	filter   Filter
	window   ScanWindow
	buf      []Event[T]
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewScanner validates opts and returns a scanner positioned at the newest
// window. No provider call is made.
func NewScanner[T any](provider Provider, decode Decoder[T], opts ScanOptions) (*Scanner[T], error) {
	if decode == nil {
		return nil, ErrNilDecoder
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Scanner[T]{
		provider: provider,
		decode:   decode,
		filter:   opts.Filter,
		window: ScanWindow{
			EarliestBlock: opts.EarliestBlock,
			LatestBlock:   opts.LatestBlock,
			Walkback:      opts.Walkback,
			End:           opts.LatestBlock,
			Start:         max(opts.LatestBlock-opts.Walkback+1, opts.EarliestBlock),
		},
		log:     zerolog.Nop(),
		metrics: opts.Metrics,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "log_scanner").Logger()
	}
	return s, nil
}

// Window returns the bounds of the next window to fetch.
func (s *Scanner[T]) Window() ScanWindow { return s.window }

// Next returns the next event. done is true once every window has been
// fetched and all buffered events have been returned. Provider errors are
// returned as is and leave the window in place, so calling Next again
// retries the same query.
func (s *Scanner[T]) Next(ctx context.Context) (ev Event[T], done bool, err error) {
	for len(s.buf) == 0 {
		if s.window.Exhausted() {
			return Event[T]{}, true, nil
		}
		if err := s.fetch(ctx); err != nil {
			return Event[T]{}, false, err
		}
	}
	ev = s.buf[0]
	s.buf = s.buf[1:]
	s.metrics.EventScanned()
	return ev, false, nil
}

func (s *Scanner[T]) fetch(ctx context.Context) error {
	from, to := s.window.Start, s.window.End
	logs, err := s.provider.GetLogs(ctx, s.filter, uint64(from), uint64(to))
	if err != nil {
		return err
	}
	SortLogs(logs)

	events := make([]Event[T], 0, len(logs))
	for _, l := range logs {
		v, err := s.decode(l)
		if err != nil {
			return fmt.Errorf("decode log %d in block %d: %w", l.LogIndex, l.BlockNumber, err)
		}
		events = append(events, Event[T]{Log: l, Value: v})
	}

	s.metrics.WindowFetched(len(events))
	s.log.Debug().
		Int64("from", from).
		Int64("to", to).
		Int("events", len(events)).
		Msg("window fetched")

	s.window.slide()
	s.buf = events
	return nil
}

// All adapts the scanner to a range-over-func sequence. Iteration stops at
// the first error, which is yielded once.
func (s *Scanner[T]) All(ctx context.Context) iter.Seq2[Event[T], error] {
	return func(yield func(Event[T], error) bool) {
		for {
			ev, done, err := s.Next(ctx)
			if err != nil {
				yield(Event[T]{}, err)
				return
			}
			if done {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
