package batch

import (
	"fmt"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/parquet-go/parquet-go"
)

// MatchingRowGroups returns the indexes of the row groups whose bloom filter
// on column may contain value. Row groups without a stored filter are
// always included, so the result never omits a group holding value.
func (r *Reader) MatchingRowGroups(column, value string) (*roaring.Bitmap, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}
	leaf, ok := r.file.Schema().Lookup(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	if !r.spec.Filtered(column) {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFiltered, column)
	}

	matches := roaring.New()
	probe := parquet.ValueOf(value)
	for i, rg := range r.file.RowGroups() {
		if rg.NumRows() == 0 {
			continue
		}
		filter := rg.ColumnChunks()[leaf.ColumnIndex].BloomFilter()
		if filter == nil {
			matches.Add(uint32(i))
			continue
		}
		hit, err := filter.Check(probe)
		if err != nil {
			return nil, fmt.Errorf("check %s filter in row group %d: %w", column, i, err)
		}
		if hit {
			matches.Add(uint32(i))
		}
	}

	r.log.Debug().
		Str("column", column).
		Uint64("matches", matches.GetCardinality()).
		Int("row_groups", len(r.file.RowGroups())).
		Msg("filter probed")
	return matches, nil
}

// RowGroupsMatchingAll intersects MatchingRowGroups across several
// column/value pairs.
func (r *Reader) RowGroupsMatchingAll(probes map[string]string) (*roaring.Bitmap, error) {
	var result *roaring.Bitmap
	for column, value := range probes {
		m, err := r.MatchingRowGroups(column, value)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = m
			continue
		}
		result.And(m)
	}
	if result == nil {
		return roaring.New(), nil
	}
	return result, nil
}
