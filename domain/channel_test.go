package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelName_Kind(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		channel ChannelName
		want    ChannelKind
	}{
		{"Public channel", "chat-42", ChannelPublic},
		{"Private channel", "private-orders", ChannelPrivate},
		{"Presence channel", "presence-chat-42", ChannelPresence},
		{"Path traversal", "../etc", ChannelInvalid},
		{"Empty name", "", ChannelInvalid},
		{"Bare presence prefix", "presence-", ChannelInvalid},
		{"Slash in presence suffix", "presence-a/b", ChannelInvalid},
		{"Whitespace", "room 1", ChannelInvalid},
		{"Allowed punctuation", "store=acme,region@eu;v1.2", ChannelPublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req.Equal(tt.want, tt.channel.Kind())
		})
	}
}

func TestChannelName_RequiresGrant(t *testing.T) {
	req := require.New(t)
	req.False(ChannelName("chat-42").RequiresGrant())
	req.True(ChannelName("private-chat-42").RequiresGrant())
	req.True(ChannelName("presence-chat-42").RequiresGrant())
	req.False(ChannelName("../etc").RequiresGrant())
}
