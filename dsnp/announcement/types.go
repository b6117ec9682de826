// Package announcement defines the closed set of signed user announcements
// that are published in batch files.
package announcement

import (
	"fmt"
)

// Type identifies the kind of an announcement. The set is closed; the
// numeric values are the codes carried by on-chain batch pointers.
type Type int16

const (
	TypeTombstone   Type = 0
	TypeGraphChange Type = 1
	TypeBroadcast   Type = 2
	TypeReply       Type = 3
	TypeReaction    Type = 4
	TypeProfile     Type = 5
)

// Types lists every announcement type in code order.
var Types = []Type{
	TypeTombstone,
	TypeGraphChange,
	TypeBroadcast,
	TypeReply,
	TypeReaction,
	TypeProfile,
}

// Valid reports whether t is one of the defined announcement types.
func (t Type) Valid() bool {
	return t >= TypeTombstone && t <= TypeProfile
}

func (t Type) String() string {
	switch t {
	case TypeTombstone:
		return "tombstone"
	case TypeGraphChange:
		return "graphChange"
	case TypeBroadcast:
		return "broadcast"
	case TypeReply:
		return "reply"
	case TypeReaction:
		return "reaction"
	case TypeProfile:
		return "profile"
	default:
		return fmt.Sprintf("type(%d)", int16(t))
	}
}

// ChangeType is the kind of follow-graph mutation a GraphChange carries.
type ChangeType int32

const (
	ChangeUnfollow ChangeType = 0
	ChangeFollow   ChangeType = 1
)

// Announcement is a signed, typed record. Only the types declared in this
// package implement it.
type Announcement interface {
	Type() Type
	From() string
	Created() int64
	Sig() string

	// fields returns the record as a map including the type code and
	// excluding the signature.
	fields() map[string]any
	withSignature(sig string) Announcement
}

// Tombstone retracts an earlier announcement identified by its signature.
type Tombstone struct {
	FromID                 string `parquet:"fromId" json:"fromId"`
	TargetAnnouncementType int32  `parquet:"targetAnnouncementType" json:"targetAnnouncementType"`
	TargetSignature        string `parquet:"targetSignature" json:"targetSignature"`
	CreatedAt              int64  `parquet:"createdAt" json:"createdAt"`
	Signature              string `parquet:"signature" json:"signature"`
}

// GraphChange follows or unfollows another user.
type GraphChange struct {
	FromID     string `parquet:"fromId" json:"fromId"`
	ChangeType int32  `parquet:"changeType" json:"changeType"`
	ObjectID   string `parquet:"objectId" json:"objectId"`
	CreatedAt  int64  `parquet:"createdAt" json:"createdAt"`
	Signature  string `parquet:"signature" json:"signature"`
}

// Broadcast points at publicly addressed content.
type Broadcast struct {
	FromID      string `parquet:"fromId" json:"fromId"`
	ContentHash string `parquet:"contentHash" json:"contentHash"`
	URL         string `parquet:"url" json:"url"`
	CreatedAt   int64  `parquet:"createdAt" json:"createdAt"`
	Signature   string `parquet:"signature" json:"signature"`
}

// Reply is a Broadcast addressed at an earlier announcement.
type Reply struct {
	FromID      string `parquet:"fromId" json:"fromId"`
	ContentHash string `parquet:"contentHash" json:"contentHash"`
	InReplyTo   string `parquet:"inReplyTo" json:"inReplyTo"`
	URL         string `parquet:"url" json:"url"`
	CreatedAt   int64  `parquet:"createdAt" json:"createdAt"`
	Signature   string `parquet:"signature" json:"signature"`
}

// Reaction attaches an emoji to an earlier announcement.
type Reaction struct {
	FromID    string `parquet:"fromId" json:"fromId"`
	Emoji     string `parquet:"emoji" json:"emoji"`
	InReplyTo string `parquet:"inReplyTo" json:"inReplyTo"`
	CreatedAt int64  `parquet:"createdAt" json:"createdAt"`
	Signature string `parquet:"signature" json:"signature"`
}

// Profile points at a user's profile document.
type Profile struct {
	FromID      string `parquet:"fromId" json:"fromId"`
	ContentHash string `parquet:"contentHash" json:"contentHash"`
	URL         string `parquet:"url" json:"url"`
	CreatedAt   int64  `parquet:"createdAt" json:"createdAt"`
	Signature   string `parquet:"signature" json:"signature"`
}

func (Tombstone) Type() Type   { return TypeTombstone }
func (GraphChange) Type() Type { return TypeGraphChange }
func (Broadcast) Type() Type   { return TypeBroadcast }
func (Reply) Type() Type       { return TypeReply }
func (Reaction) Type() Type    { return TypeReaction }
func (Profile) Type() Type     { return TypeProfile }

func (a Tombstone) From() string   { return a.FromID }
func (a GraphChange) From() string { return a.FromID }
func (a Broadcast) From() string   { return a.FromID }
func (a Reply) From() string       { return a.FromID }
func (a Reaction) From() string    { return a.FromID }
func (a Profile) From() string     { return a.FromID }

func (a Tombstone) Created() int64   { return a.CreatedAt }
func (a GraphChange) Created() int64 { return a.CreatedAt }
func (a Broadcast) Created() int64   { return a.CreatedAt }
func (a Reply) Created() int64       { return a.CreatedAt }
func (a Reaction) Created() int64    { return a.CreatedAt }
func (a Profile) Created() int64     { return a.CreatedAt }

func (a Tombstone) Sig() string   { return a.Signature }
func (a GraphChange) Sig() string { return a.Signature }
func (a Broadcast) Sig() string   { return a.Signature }
func (a Reply) Sig() string       { return a.Signature }
func (a Reaction) Sig() string    { return a.Signature }
func (a Profile) Sig() string     { return a.Signature }

func (a Tombstone) fields() map[string]any {
	return map[string]any{
		"announcementType":       int16(TypeTombstone),
		"fromId":                 a.FromID,
		"targetAnnouncementType": a.TargetAnnouncementType,
		"targetSignature":        a.TargetSignature,
		"createdAt":              a.CreatedAt,
	}
}

func (a GraphChange) fields() map[string]any {
	return map[string]any{
		"announcementType": int16(TypeGraphChange),
		"fromId":           a.FromID,
		"changeType":       a.ChangeType,
		"objectId":         a.ObjectID,
		"createdAt":        a.CreatedAt,
	}
}

func (a Broadcast) fields() map[string]any {
	return map[string]any{
		"announcementType": int16(TypeBroadcast),
		"fromId":           a.FromID,
		"contentHash":      a.ContentHash,
		"url":              a.URL,
		"createdAt":        a.CreatedAt,
	}
}

func (a Reply) fields() map[string]any {
	return map[string]any{
		"announcementType": int16(TypeReply),
		"fromId":           a.FromID,
		"contentHash":      a.ContentHash,
		"inReplyTo":        a.InReplyTo,
		"url":              a.URL,
		"createdAt":        a.CreatedAt,
	}
}

func (a Reaction) fields() map[string]any {
	return map[string]any{
		"announcementType": int16(TypeReaction),
		"fromId":           a.FromID,
		"emoji":            a.Emoji,
		"inReplyTo":        a.InReplyTo,
		"createdAt":        a.CreatedAt,
	}
}

func (a Profile) fields() map[string]any {
	return map[string]any{
		"announcementType": int16(TypeProfile),
		"fromId":           a.FromID,
		"contentHash":      a.ContentHash,
		"url":              a.URL,
		"createdAt":        a.CreatedAt,
	}
}

func (a Tombstone) withSignature(sig string) Announcement   { a.Signature = sig; return a }
func (a GraphChange) withSignature(sig string) Announcement { a.Signature = sig; return a }
func (a Broadcast) withSignature(sig string) Announcement   { a.Signature = sig; return a }
func (a Reply) withSignature(sig string) Announcement       { a.Signature = sig; return a }
func (a Reaction) withSignature(sig string) Announcement    { a.Signature = sig; return a }
func (a Profile) withSignature(sig string) Announcement     { a.Signature = sig; return a }
