// Package batch writes and reads batch files: immutable, content-addressed
// parquet files that each hold announcements of a single type.
//
// A Writer consumes a Stream and produces a Reference ({url, contentHash})
// only once the whole file has been committed to its Sink. Failures leave
// the sink with the caller, who owns disposal; the package never deletes or
// rewrites anything on its own.
//
// A Reader opens a committed file through a storage.Opener, iterates its
// rows once, and probes the per-row-group bloom filters declared by the
// announcement type's schema.
package batch
