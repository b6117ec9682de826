package batch

import (
	"context"
	"io"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

// Stream yields announcements one at a time. Next returns io.EOF once the
// stream is exhausted.
type Stream interface {
	Next(ctx context.Context) (announcement.Announcement, error)
}

type sliceStream struct {
	records []announcement.Announcement
	pos     int
}

// FromSlice streams records in order.
func FromSlice(records ...announcement.Announcement) Stream {
	return &sliceStream{records: records}
}

func (s *sliceStream) Next(ctx context.Context) (announcement.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

type chanStream struct {
	ch <-chan announcement.Announcement
}

// FromChannel streams records until ch is closed.
func FromChannel(ch <-chan announcement.Announcement) Stream {
	return &chanStream{ch: ch}
}

func (s *chanStream) Next(ctx context.Context) (announcement.Announcement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return r, nil
	}
}
