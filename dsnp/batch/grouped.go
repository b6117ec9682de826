package batch

import (
	"context"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

// SinkFactory opens a fresh sink for a batch of type t.
type SinkFactory func(t announcement.Type) (Sink, error)

// Group partitions records by announcement type, preserving input order
// within each type.
func Group(records []announcement.Announcement) (map[announcement.Type][]announcement.Announcement, error) {
	groups := make(map[announcement.Type][]announcement.Announcement)
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("record %d: %w", i, ErrNilRecord)
		}
		groups[rec.Type()] = append(groups[rec.Type()], rec)
	}
	return groups, nil
}

// WriteGrouped writes one batch file per announcement type found in
// records, concurrently. References are returned in type-code order. If any
// write fails the remaining ones are cancelled; references for files that
// did commit are still returned alongside the error so the caller can decide
// whether to publish or discard them.
func (w *Writer) WriteGrouped(ctx context.Context, records []announcement.Announcement, newSink SinkFactory) ([]Reference, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	groups, err := Group(records)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[Reference]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(len(groups))
	for typ, recs := range groups {
		p.Go(func(ctx context.Context) (Reference, error) {
			sink, err := newSink(typ)
			if err != nil {
				return Reference{}, fmt.Errorf("open sink for %s: %w", typ, err)
			}
			ref, err := w.Write(ctx, FromSlice(recs...), sink)
			if err != nil {
				// The factory's sinks never reach the caller, so dispose here.
				if a, ok := sink.(interface{ Abort() error }); ok {
					_ = a.Abort()
				}
				return Reference{}, fmt.Errorf("write %s batch: %w", typ, err)
			}
			return ref, nil
		})
	}

	refs, err := p.Wait()
	slices.SortFunc(refs, func(a, b Reference) int { return int(a.Type) - int(b.Type) })
	return refs, err
}
