package batch

import (
	"fmt"

	"github.com/ZanzyTHEbar/dsnp-batch/dsnp/announcement"
)

func fromID(i int) string { return fmt.Sprintf("0x%x", i+1) }

// sampleOf builds the i-th deterministic announcement of type t.
func sampleOf(t announcement.Type, i int) announcement.Announcement {
	created := int64(1_700_000_000_000 + i)
	sig := fmt.Sprintf("0x%064x", i+7)
	switch t {
	case announcement.TypeTombstone:
		return announcement.Tombstone{FromID: fromID(i), TargetAnnouncementType: int32(announcement.TypeBroadcast), TargetSignature: fmt.Sprintf("0x%064x", i), CreatedAt: created, Signature: sig}
	case announcement.TypeGraphChange:
		return announcement.GraphChange{FromID: fromID(i), ChangeType: int32(announcement.ChangeFollow), ObjectID: fromID(i + 1000), CreatedAt: created, Signature: sig}
	case announcement.TypeBroadcast:
		return announcement.Broadcast{FromID: fromID(i), ContentHash: fmt.Sprintf("0x%064x", i), URL: fmt.Sprintf("https://example.org/post/%d", i), CreatedAt: created, Signature: sig}
	case announcement.TypeReply:
		return announcement.Reply{FromID: fromID(i), ContentHash: fmt.Sprintf("0x%064x", i), InReplyTo: fmt.Sprintf("dsnp://%s/0x%x", fromID(i+1), i), URL: fmt.Sprintf("https://example.org/reply/%d", i), CreatedAt: created, Signature: sig}
	case announcement.TypeReaction:
		return announcement.Reaction{FromID: fromID(i), Emoji: []string{"🔥", "👍", "🎉"}[i%3], InReplyTo: fmt.Sprintf("dsnp://0x1/0x%x", i), CreatedAt: created, Signature: sig}
	case announcement.TypeProfile:
		return announcement.Profile{FromID: fromID(i), ContentHash: fmt.Sprintf("0x%064x", i), URL: fmt.Sprintf("https://example.org/profile/%d", i), CreatedAt: created, Signature: sig}
	}
	panic("unhandled announcement type")
}

func samples(t announcement.Type, n int) []announcement.Announcement {
	out := make([]announcement.Announcement, n)
	for i := range out {
		out[i] = sampleOf(t, i)
	}
	return out
}
