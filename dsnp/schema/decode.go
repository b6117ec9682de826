package schema

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

// ReadRow reads the next row of a t-typed file from r. It returns io.EOF,
// unwrapped, once the file is exhausted.
func ReadRow(r *parquet.Reader, t announcement.Type) (announcement.Announcement, error) {
	switch t {
	case announcement.TypeTombstone:
		var row announcement.Tombstone
		err := r.Read(&row)
		return row, err
	case announcement.TypeGraphChange:
		var row announcement.GraphChange
		err := r.Read(&row)
		return row, err
	case announcement.TypeBroadcast:
		var row announcement.Broadcast
		err := r.Read(&row)
		return row, err
	case announcement.TypeReply:
		var row announcement.Reply
		err := r.Read(&row)
		return row, err
	case announcement.TypeReaction:
		var row announcement.Reaction
		err := r.Read(&row)
		return row, err
	case announcement.TypeProfile:
		var row announcement.Profile
		err := r.Read(&row)
		return row, err
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAnnouncementType, int16(t))
	}
}
