// Package schema holds the static column layout and membership-filter
// configuration for every announcement type. The tables are compiled in:
// every protocol participant must produce byte-compatible batch files, so
// none of this is runtime configurable.
package schema

import (
	"errors"
	"fmt"
	"math"

	"github.com/parquet-go/parquet-go"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

var ErrUnknownAnnouncementType = errors.New("unknown announcement type")

// FilterSpec sizes a bloom filter over one lookup column.
type FilterSpec struct {
	Column            string
	FalsePositiveRate float64
	ExpectedDistinct  int
	// ByteBudget caps the filter size when positive.
	ByteBudget int
}

// BitsPerValue converts the spec into the split-block filter density.
func (f FilterSpec) BitsPerValue() uint {
	p := f.FalsePositiveRate
	if p <= 0 || p >= 1 {
		p = DefaultFalsePositiveRate
	}
	bits := math.Ceil(-math.Log(p) / (math.Ln2 * math.Ln2))
	if f.ByteBudget > 0 && f.ExpectedDistinct > 0 {
		budget := math.Floor(float64(f.ByteBudget) * 8 / float64(f.ExpectedDistinct))
		bits = math.Min(bits, budget)
	}
	return uint(math.Max(bits, 1))
}

// Spec is the physical layout of one announcement type.
type Spec struct {
	Type    announcement.Type
	Schema  *parquet.Schema
	Filters []FilterSpec
	// NoStatistics lists high-entropy columns written without min/max bounds.
	NoStatistics []string
}

// Columns returns the leaf column names in file order.
func (s *Spec) Columns() []string {
	cols := make([]string, 0, len(s.Schema.Columns()))
	for _, path := range s.Schema.Columns() {
		cols = append(cols, path[len(path)-1])
	}
	return cols
}

// Filtered reports whether column carries a bloom filter.
func (s *Spec) Filtered(column string) bool {
	for _, f := range s.Filters {
		if f.Column == column {
			return true
		}
	}
	return false
}

// WriterOptions returns the parquet writer configuration implied by the spec.
func (s *Spec) WriterOptions() []parquet.WriterOption {
	opts := []parquet.WriterOption{s.Schema}
	if len(s.Filters) > 0 {
		filters := make([]parquet.BloomFilterColumn, 0, len(s.Filters))
		for _, f := range s.Filters {
			filters = append(filters, parquet.SplitBlockFilter(f.BitsPerValue(), f.Column))
		}
		opts = append(opts, parquet.BloomFilters(filters...))
	}
	for _, col := range s.NoStatistics {
		opts = append(opts, parquet.SkipPageBounds(col))
	}
	return opts
}

const (
	DefaultFalsePositiveRate = 0.001
	DefaultExpectedDistinct  = 100_000
)

func lookup(column string) FilterSpec {
	return FilterSpec{
		Column:            column,
		FalsePositiveRate: DefaultFalsePositiveRate,
		ExpectedDistinct:  DefaultExpectedDistinct,
	}
}

var (
	tombstoneSpec = &Spec{
		Type:         announcement.TypeTombstone,
		Schema:       parquet.SchemaOf(announcement.Tombstone{}),
		Filters:      []FilterSpec{lookup("fromId")},
		NoStatistics: []string{"targetSignature", "signature"},
	}
	graphChangeSpec = &Spec{
		Type:         announcement.TypeGraphChange,
		Schema:       parquet.SchemaOf(announcement.GraphChange{}),
		Filters:      []FilterSpec{lookup("fromId"), lookup("objectId")},
		NoStatistics: []string{"signature"},
	}
	broadcastSpec = &Spec{
		Type:         announcement.TypeBroadcast,
		Schema:       parquet.SchemaOf(announcement.Broadcast{}),
		Filters:      []FilterSpec{lookup("fromId")},
		NoStatistics: []string{"contentHash", "url", "signature"},
	}
	replySpec = &Spec{
		Type:         announcement.TypeReply,
		Schema:       parquet.SchemaOf(announcement.Reply{}),
		Filters:      []FilterSpec{lookup("fromId"), lookup("inReplyTo")},
		NoStatistics: []string{"contentHash", "url", "signature"},
	}
	reactionSpec = &Spec{
		Type:         announcement.TypeReaction,
		Schema:       parquet.SchemaOf(announcement.Reaction{}),
		Filters:      []FilterSpec{lookup("emoji"), lookup("fromId"), lookup("inReplyTo")},
		NoStatistics: []string{"signature"},
	}
	profileSpec = &Spec{
		Type:         announcement.TypeProfile,
		Schema:       parquet.SchemaOf(announcement.Profile{}),
		Filters:      []FilterSpec{lookup("fromId")},
		NoStatistics: []string{"contentHash", "url", "signature"},
	}
)

// For returns the layout of t.
func For(t announcement.Type) (*Spec, error) {
	switch t {
	case announcement.TypeTombstone:
		return tombstoneSpec, nil
	case announcement.TypeGraphChange:
		return graphChangeSpec, nil
	case announcement.TypeBroadcast:
		return broadcastSpec, nil
	case announcement.TypeReply:
		return replySpec, nil
	case announcement.TypeReaction:
		return reactionSpec, nil
	case announcement.TypeProfile:
		return profileSpec, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAnnouncementType, int16(t))
	}
}

// FiltersFor returns the bloom filter specs of t.
func FiltersFor(t announcement.Type) ([]FilterSpec, error) {
	s, err := For(t)
	if err != nil {
		return nil, err
	}
	return s.Filters, nil
}
