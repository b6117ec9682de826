package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"slices"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/hashing"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/schema"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/storage"
)

// ReaderOption configures Open.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	log          zerolog.Logger
	expectedHash string
	maxSize      int64
}

// WithExpectedHash makes Open verify the file's keccak digest against hash
// before exposing any rows.
func WithExpectedHash(hash string) ReaderOption {
	return func(c *readerConfig) { c.expectedHash = hash }
}

// WithMaxSize rejects files larger than n bytes with ErrBatchTooLarge.
// Streams are never buffered past n+1 bytes. Zero means no limit.
func WithMaxSize(n int64) ReaderOption {
	return func(c *readerConfig) { c.maxSize = n }
}

// WithReaderLogger sets the reader's logger.
func WithReaderLogger(log zerolog.Logger) ReaderOption {
	return func(c *readerConfig) { c.log = log }
}

// Reader is an open batch file. Rows may be iterated once; filters may be
// probed any number of times until Close. A Reader is owned by a single
// caller.
type Reader struct {
	typ      announcement.Type
	spec     *schema.Spec
	file     *parquet.File
	rows     *parquet.Reader
	closer   io.Closer
	log      zerolog.Logger
	consumed bool
	closed   bool
}

// Open resolves locator through opener and opens it as a typ batch file.
// The announcement type is supplied by the caller, since files do not carry
// it.
func Open(ctx context.Context, opener storage.Opener, locator string, typ announcement.Type, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	spec, err := schema.For(typ)
	if err != nil {
		return nil, err
	}

	rc, err := opener.Open(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", locator, err)
	}

	ra, size, err := randomAccess(rc, cfg.expectedHash, cfg.maxSize)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("load %s: %w", locator, err)
	}
	// Buffered streams are fully read; only keep rc open when reading in place.
	var closer io.Closer = rc
	if _, buffered := ra.(*bytes.Reader); buffered {
		rc.Close()
		closer = nil
	}

	file, err := parquet.OpenFile(ra, size)
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("parse %s: %w", locator, err)
	}
	if err := checkSchema(spec, file.Schema()); err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("%s: %w", locator, err)
	}

	cfg.log.Debug().
		Str("url", locator).
		Str("type", typ.String()).
		Int64("rows", file.NumRows()).
		Int("row_groups", len(file.RowGroups())).
		Msg("batch opened")

	return &Reader{
		typ:    typ,
		spec:   spec,
		file:   file,
		rows:   parquet.NewReader(file),
		closer: closer,
		log:    cfg.log,
	}, nil
}

// randomAccess returns rc as an io.ReaderAt, buffering it in memory when the
// stream cannot seek or when its hash must be checked.
func randomAccess(rc io.ReadCloser, expectedHash string, maxSize int64) (io.ReaderAt, int64, error) {
	if ra, ok := rc.(io.ReaderAt); ok && expectedHash == "" {
		if size, ok := sizeOf(rc); ok {
			if maxSize > 0 && size > maxSize {
				return nil, 0, fmt.Errorf("%w: %d bytes, limit %d", ErrBatchTooLarge, size, maxSize)
			}
			return ra, size, nil
		}
	}
	var src io.Reader = rc
	if maxSize > 0 {
		src = io.LimitReader(rc, maxSize+1)
	}
	var buf bytes.Buffer
	h := hashing.New()
	if _, err := io.Copy(io.MultiWriter(&buf, h), src); err != nil {
		return nil, 0, err
	}
	if maxSize > 0 && int64(buf.Len()) > maxSize {
		return nil, 0, fmt.Errorf("%w: more than %d bytes", ErrBatchTooLarge, maxSize)
	}
	if expectedHash != "" && !hashing.Equal(expectedHash, h.Digest()) {
		return nil, 0, fmt.Errorf("%w: want %s, got %s", ErrHashMismatch, expectedHash, h.Digest())
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil
}

func sizeOf(v any) (int64, bool) {
	switch s := v.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Stat() (fs.FileInfo, error) }:
		info, err := s.Stat()
		if err != nil {
			return 0, false
		}
		return info.Size(), true
	}
	return 0, false
}

func checkSchema(spec *schema.Spec, got *parquet.Schema) error {
	want := spec.Columns()
	have := make([]string, 0, len(got.Columns()))
	for _, path := range got.Columns() {
		have = append(have, path[len(path)-1])
	}
	slices.Sort(want)
	slices.Sort(have)
	if !slices.Equal(want, have) {
		return fmt.Errorf("%w: %s expects %v, file has %v", ErrSchemaMismatch, spec.Type, want, have)
	}
	return nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// Type returns the announcement type the file was opened as.
func (r *Reader) Type() announcement.Type { return r.typ }

// NumRows returns the row count recorded in the file footer.
func (r *Reader) NumRows() int64 { return r.file.NumRows() }

// NumRowGroups returns the number of row groups in the file.
func (r *Reader) NumRowGroups() int { return len(r.file.RowGroups()) }

// Rows returns a lazy, forward-only sequence over the file's rows in write
// order. The sequence can be ranged over once; later attempts yield
// ErrRowsConsumed.
func (r *Reader) Rows() iter.Seq2[announcement.Announcement, error] {
	return func(yield func(announcement.Announcement, error) bool) {
		if r.closed {
			yield(nil, ErrReaderClosed)
			return
		}
		if r.consumed {
			yield(nil, ErrRowsConsumed)
			return
		}
		r.consumed = true
		for {
			row, err := schema.ReadRow(r.rows, r.typ)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ProbeFilter reports whether value may be present in column. A false
// result is definitive; a true result may be a false positive at the rate
// the column's filter was sized for.
func (r *Reader) ProbeFilter(column, value string) (bool, error) {
	groups, err := r.MatchingRowGroups(column, value)
	if err != nil {
		return false, err
	}
	return !groups.IsEmpty(), nil
}

// Close releases the underlying stream. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
