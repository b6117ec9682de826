// Package publish turns announcements into batch files and announces the
// resulting files on the ledger.
package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/batch"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/ledger/ethledger"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/storage"
)

var (
	ErrNoWriter    = errors.New("publisher needs a batch writer")
	ErrNoSinks     = errors.New("publisher needs a sink factory")
	ErrNoAnnouncer = errors.New("publisher needs an announcer")
)

// Announcer hands publication pointers to the ledger, typically as one
// contract transaction.
type Announcer interface {
	Announce(ctx context.Context, pubs []ethledger.Publication) error
}

// AnnouncerFunc adapts a function to Announcer.
type AnnouncerFunc func(ctx context.Context, pubs []ethledger.Publication) error

func (f AnnouncerFunc) Announce(ctx context.Context, pubs []ethledger.Publication) error {
	return f(ctx, pubs)
}

type Options struct {
	Writer    *batch.Writer
	Sinks     batch.SinkFactory
	Announcer Announcer
	Logger    *zerolog.Logger
	Metrics   *metrics.Metrics
}

// Publisher writes one batch file per announcement type and announces them
// together. Files are announced only when every write committed.
type Publisher struct {
	writer    *batch.Writer
	sinks     batch.SinkFactory
	announcer Announcer
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func NewPublisher(opts Options) (*Publisher, error) {
	switch {
	case opts.Writer == nil:
		return nil, ErrNoWriter
	case opts.Sinks == nil:
		return nil, ErrNoSinks
	case opts.Announcer == nil:
		return nil, ErrNoAnnouncer
	}
	p := &Publisher{
		writer:    opts.Writer,
		sinks:     opts.Sinks,
		announcer: opts.Announcer,
		log:       zerolog.Nop(),
		metrics:   opts.Metrics,
	}
	if opts.Logger != nil {
		p.log = opts.Logger.With().Str("component", "publisher").Logger()
	}
	return p, nil
}

// Publish writes records and announces the committed files. On a write
// failure nothing is announced; files that did commit stay unreferenced.
func (p *Publisher) Publish(ctx context.Context, records []announcement.Announcement) ([]ethledger.Publication, error) {
	refs, err := p.writer.WriteGrouped(ctx, records, p.sinks)
	if err != nil {
		if len(refs) > 0 {
			p.log.Warn().Int("committed", len(refs)).Err(err).Msg("batch write failed, committed files left unannounced")
		}
		return nil, err
	}

	pubs := make([]ethledger.Publication, len(refs))
	for i, ref := range refs {
		pubs[i] = ethledger.PublicationFor(ref)
	}
	if err := p.announcer.Announce(ctx, pubs); err != nil {
		return nil, fmt.Errorf("announce %d publications: %w", len(pubs), err)
	}
	for _, pub := range pubs {
		p.metrics.Announced(pub.AnnouncementType.String())
		p.log.Info().
			Str("type", pub.AnnouncementType.String()).
			Str("url", pub.FileURL).
			Str("hash", pub.FileHash).
			Msg("batch announced")
	}
	return pubs, nil
}

// Fetch opens the batch file behind pub, verifying its content hash.
func Fetch(ctx context.Context, opener storage.Opener, pub ethledger.Publication, opts ...batch.ReaderOption) (*batch.Reader, error) {
	opts = append([]batch.ReaderOption{batch.WithExpectedHash(pub.FileHash)}, opts...)
	return batch.Open(ctx, opener, pub.FileURL, pub.AnnouncementType, opts...)
}
