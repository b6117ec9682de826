package announcement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCodes(t *testing.T) {
	tests := []struct {
		a    Announcement
		want Type
		name string
	}{
		{Tombstone{}, TypeTombstone, "tombstone"},
		{GraphChange{}, TypeGraphChange, "graphChange"},
		{Broadcast{}, TypeBroadcast, "broadcast"},
		{Reply{}, TypeReply, "reply"},
		{Reaction{}, TypeReaction, "reaction"},
		{Profile{}, TypeProfile, "profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Type())
			assert.Equal(t, tt.name, tt.a.Type().String())
			assert.True(t, tt.a.Type().Valid())
		})
	}
	assert.Len(t, Types, len(tests))
	assert.False(t, Type(6).Valid())
	assert.False(t, Type(-1).Valid())
	assert.Equal(t, "type(9)", Type(9).String())
}

func TestSigningPayloadExcludesSignature(t *testing.T) {
	unsigned := Broadcast{FromID: "0x0001", ContentHash: "0xabc", URL: "https://x/1", CreatedAt: 16}
	signed := unsigned
	signed.Signature = "0xdeadbeef"

	p1, err := SigningPayload(unsigned)
	require.NoError(t, err)
	p2, err := SigningPayload(signed)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t,
		"announcementType0x2contentHash0xabccreatedAt0x10fromId0x1urlhttps://x/1",
		string(p1))
}

func TestSign(t *testing.T) {
	var seen []byte
	signer := SignerFunc(func(_ context.Context, payload []byte) (string, error) {
		seen = payload
		return "0xsig", nil
	})

	in := Reaction{FromID: "0x2", Emoji: "🔥", InReplyTo: "dsnp://0x1/0xabc", CreatedAt: 1}
	out, err := Sign(context.Background(), in, signer)
	require.NoError(t, err)

	assert.Equal(t, "0xsig", out.Sig())
	assert.Empty(t, in.Signature)
	assert.Equal(t, TypeReaction, out.Type())
	assert.NotEmpty(t, seen)

	_, err = Sign(context.Background(), out, signer)
	assert.ErrorIs(t, err, ErrAlreadySigned)
}

func TestSignPropagatesSignerError(t *testing.T) {
	boom := errors.New("hsm offline")
	_, err := Sign(context.Background(), Profile{FromID: "0x1"}, SignerFunc(func(context.Context, []byte) (string, error) {
		return "", boom
	}))
	assert.ErrorIs(t, err, boom)
}
