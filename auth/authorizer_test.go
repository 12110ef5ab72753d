package auth

import (
	"encoding/json"
	"strings"
	"testing"

	"channel-gateway/domain"
	"channel-gateway/errors"

	"github.com/stretchr/testify/require"
)

var ana = domain.Principal{ID: "u1", DisplayName: "Ana", Email: "ana@x.com"}

func newTestAuthorizer() *Authorizer {
	return NewAuthorizer("app-key", []byte("app-secret"))
}

func TestAuthorize_Deterministic(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	first, err := authorizer.Authorize(ana, "presence-chat-42", "h123")
	req.NoError(err)
	second, err := authorizer.Authorize(ana, "presence-chat-42", "h123")
	req.NoError(err)
	req.Equal(first, second)

	// A different socket id must change the signature.
	other, err := authorizer.Authorize(ana, "presence-chat-42", "h124")
	req.NoError(err)
	req.NotEqual(first.Auth, other.Auth)
}

func TestAuthorize_AnonymousPrincipal(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	_, err := authorizer.Authorize(domain.Principal{}, "presence-chat-42", "h123")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestAuthorize_InvalidChannel(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	tests := []struct {
		name    string
		channel domain.ChannelName
	}{
		{"Path traversal", "../etc"},
		{"Empty name", ""},
		{"Whitespace", "room 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authorizer.Authorize(ana, tt.channel, "h123")
			req.ErrorIs(err, errors.ErrInvalidChannel)
		})
	}
}

func TestAuthorize_PresencePayload(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	grant, err := authorizer.Authorize(ana, "presence-chat-42", "h123")
	req.NoError(err)
	req.True(strings.HasPrefix(grant.Auth, "app-key:"))

	var member domain.PresenceMember
	req.NoError(json.Unmarshal([]byte(grant.ChannelData), &member))
	req.Equal("u1", member.UserID)
	req.Equal("Ana", member.UserInfo.Name)
	req.Equal("ana@x.com", member.UserInfo.Email)
}

func TestAuthorize_PrivateChannelHasNoPayload(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	grant, err := authorizer.Authorize(ana, "private-chat-42", "h123")
	req.NoError(err)
	req.NotEmpty(grant.Auth)
	req.Empty(grant.ChannelData)
}

func TestAuthorize_PublicChannelNeedsNoGrant(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	grant, err := authorizer.Authorize(ana, "chat-42", "h123")
	req.NoError(err)
	req.Empty(grant.Auth)
	req.Empty(grant.ChannelData)
}

func TestVerifyGrant(t *testing.T) {
	req := require.New(t)
	authorizer := newTestAuthorizer()

	grant, err := authorizer.Authorize(ana, "presence-chat-42", "h123")
	req.NoError(err)
	req.True(authorizer.VerifyGrant("presence-chat-42", "h123", grant))

	// Replay from another socket must fail.
	req.False(authorizer.VerifyGrant("presence-chat-42", "h999", grant))

	// Swapping the presence payload after signing must fail.
	tampered := grant
	tampered.ChannelData = `{"user_id":"u2","user_info":{"name":"Eve","email":"eve@x.com"}}`
	req.False(authorizer.VerifyGrant("presence-chat-42", "h123", tampered))
}
