package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/dsnp-batch/dsnp"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/hashing"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/metrics"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/schema"
)

// Sink receives the bytes of one batch file. End finalizes the object and
// returns the URL it can later be fetched from.
type Sink interface {
	io.Writer
	End(ctx context.Context) (string, error)
}

// Reference identifies a committed batch file.
type Reference struct {
	URL         string
	ContentHash string
	Type        announcement.Type
	Rows        int64
	Size        int64
}

// WriterOptions configures a Writer. The zero value is usable.
type WriterOptions struct {
	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
	// RowGroupSize is the number of rows buffered per row group.
	RowGroupSize int64
	// Compression is one of snappy, zstd, gzip or none.
	Compression string
}

// Writer turns homogeneous announcement streams into batch files. A Writer
// holds no per-write state and may be shared.
type Writer struct {
	log          zerolog.Logger
	metrics      *metrics.Metrics
	rowGroupSize int64
	compression  parquet.WriterOption
}

func NewWriter(opts WriterOptions) (*Writer, error) {
	w := &Writer{
		log:          zerolog.Nop(),
		metrics:      opts.Metrics,
		rowGroupSize: opts.RowGroupSize,
	}
	if opts.Logger != nil {
		w.log = opts.Logger.With().Str("component", "batch_writer").Logger()
	}
	if w.rowGroupSize <= 0 {
		w.rowGroupSize = internal.DefaultRowGroupSize
	}
	codec, err := compressionOption(opts.Compression)
	if err != nil {
		return nil, err
	}
	w.compression = codec
	return w, nil
}

func compressionOption(name string) (parquet.WriterOption, error) {
	if name == "" {
		name = internal.DefaultCompression
	}
	switch strings.ToLower(name) {
	case "snappy":
		return parquet.Compression(&parquet.Snappy), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

// Write drains stream into sink as a single batch file.
//
// An empty stream fails with ErrEmptyBatch before anything reaches the sink.
// A record whose type differs from the first fails with *MixedTypeBatchError
// and leaves the sink un-finalized. Errors from the stream or the sink are
// returned wrapped; in every failure case no Reference is returned and the
// caller disposes of the sink.
func (w *Writer) Write(ctx context.Context, stream Stream, sink Sink) (Reference, error) {
	first, err := stream.Next(ctx)
	if errors.Is(err, io.EOF) {
		return Reference{}, ErrEmptyBatch
	}
	if err != nil {
		return Reference{}, fmt.Errorf("read first record: %w", err)
	}
	if first == nil {
		return Reference{}, ErrNilRecord
	}

	typ := first.Type()
	spec, err := schema.For(typ)
	if err != nil {
		return Reference{}, err
	}
	log := w.log.With().Str("type", typ.String()).Logger()

	hasher := hashing.New()
	opts := append(spec.WriterOptions(), w.compression)
	pw := parquet.NewWriter(io.MultiWriter(sink, hasher), opts...)

	rows := int64(0)
	fail := func(status string, err error) (Reference, error) {
		w.metrics.BatchWritten(typ.String(), status, rows, hasher.Size())
		log.Debug().Err(err).Int64("rows", rows).Msg("batch write aborted")
		return Reference{}, err
	}

	rec := first
	for {
		if err := pw.Write(rec); err != nil {
			return fail("error", fmt.Errorf("write row %d: %w", rows, err))
		}
		rows++
		if rows%w.rowGroupSize == 0 {
			if err := pw.Flush(); err != nil {
				return fail("error", fmt.Errorf("flush row group: %w", err))
			}
		}

		rec, err = stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail("error", fmt.Errorf("read record %d: %w", rows, err))
		}
		if rec == nil {
			return fail("error", fmt.Errorf("record %d: %w", rows, ErrNilRecord))
		}
		if rec.Type() != typ {
			return fail("mixed_type", &MixedTypeBatchError{Expected: typ, Got: rec.Type(), Row: rows, Sink: sink})
		}
	}

	if err := pw.Close(); err != nil {
		return fail("error", fmt.Errorf("close batch writer: %w", err))
	}
	url, err := sink.End(ctx)
	if err != nil {
		return fail("error", fmt.Errorf("end sink: %w", err))
	}

	ref := Reference{
		URL:         url,
		ContentHash: hasher.Digest(),
		Type:        typ,
		Rows:        rows,
		Size:        hasher.Size(),
	}
	w.metrics.BatchWritten(typ.String(), "ok", rows, ref.Size)
	log.Info().
		Str("url", ref.URL).
		Str("hash", ref.ContentHash).
		Int64("rows", rows).
		Int64("bytes", ref.Size).
		Msg("batch committed")
	return ref, nil
}
