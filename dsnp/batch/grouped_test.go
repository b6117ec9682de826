package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/storage"
)

func TestGroupPreservesOrder(t *testing.T) {
	records := []announcement.Announcement{
		sampleOf(announcement.TypeReply, 0),
		sampleOf(announcement.TypeBroadcast, 0),
		sampleOf(announcement.TypeReply, 1),
		sampleOf(announcement.TypeBroadcast, 1),
	}
	groups, err := Group(records)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Equal(t, []announcement.Announcement{records[0], records[2]}, groups[announcement.TypeReply])
	assert.Equal(t, []announcement.Announcement{records[1], records[3]}, groups[announcement.TypeBroadcast])

	_, err = Group([]announcement.Announcement{nil})
	assert.ErrorIs(t, err, ErrNilRecord)
}

func TestWriteGrouped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	w, err := NewWriter(WriterOptions{})
	require.NoError(t, err)

	var records []announcement.Announcement
	for i := 0; i < 6; i++ {
		records = append(records, sampleOf(announcement.TypeReaction, i), sampleOf(announcement.TypeTombstone, i), sampleOf(announcement.TypeProfile, i))
	}

	refs, err := w.WriteGrouped(ctx, records, func(announcement.Type) (Sink, error) {
		return store.NewSink(""), nil
	})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, announcement.TypeTombstone, refs[0].Type)
	assert.Equal(t, announcement.TypeReaction, refs[1].Type)
	assert.Equal(t, announcement.TypeProfile, refs[2].Type)

	for _, ref := range refs {
		assert.Equal(t, int64(6), ref.Rows)
		r, err := Open(ctx, store, ref.URL, ref.Type, WithExpectedHash(ref.ContentHash))
		require.NoError(t, err)
		n := 0
		for row, err := range r.Rows() {
			require.NoError(t, err)
			assert.Equal(t, sampleOf(ref.Type, n), row)
			n++
		}
		assert.Equal(t, 6, n)
		r.Close()
	}
	assert.Len(t, store.Keys(), 3)
}

func TestWriteGroupedFailure(t *testing.T) {
	ctx := context.Background()
	w, err := NewWriter(WriterOptions{})
	require.NoError(t, err)

	_, err = w.WriteGrouped(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	boom := errors.New("quota exceeded")
	store := storage.NewMemoryStore()
	records := []announcement.Announcement{sampleOf(announcement.TypeBroadcast, 0), sampleOf(announcement.TypeReply, 0)}
	refs, err := w.WriteGrouped(ctx, records, func(t announcement.Type) (Sink, error) {
		if t == announcement.TypeReply {
			return nil, boom
		}
		return store.NewSink(""), nil
	})
	assert.ErrorIs(t, err, boom)
	for _, ref := range refs {
		assert.NotEqual(t, announcement.TypeReply, ref.Type)
	}
}
