package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"channel-gateway/domain"
	"channel-gateway/errors"
)

// Authorizer decides whether a principal may subscribe to a channel and,
// if so, computes the signed grant the transport admits the socket with.
//
// The operation is pure computation: same (principal, channel, socketID)
// always produces the same signature, so callers can retry it freely.
// The signing secret never leaves the server process.
type Authorizer struct {
	appKey string
	secret []byte
}

func NewAuthorizer(appKey string, secret []byte) *Authorizer {
	return &Authorizer{appKey: appKey, secret: secret}
}

// Authorize validates the channel name and returns a grant.
//
// Public channels need no signature and get an empty grant. Presence
// channels carry the member payload in channel_data and include it in
// the signed string, so the payload cannot be swapped after signing.
func (a *Authorizer) Authorize(principal domain.Principal, channel domain.ChannelName, socketID domain.SocketID) (domain.AuthorizationGrant, error) {
	if principal.IsZero() {
		return domain.AuthorizationGrant{}, errors.ErrUnauthenticated
	}

	kind := channel.Kind()
	switch kind {
	case domain.ChannelInvalid:
		return domain.AuthorizationGrant{}, fmt.Errorf("%w: %q", errors.ErrInvalidChannel, channel)
	case domain.ChannelPublic:
		return domain.AuthorizationGrant{}, nil
	}

	toSign := fmt.Sprintf("%s:%s", socketID, channel)
	var channelData string
	if kind == domain.ChannelPresence {
		member := domain.PresenceMember{
			UserID: principal.ID,
			UserInfo: domain.UserInfo{
				Name:  principal.DisplayName,
				Email: principal.Email,
			},
		}
		// Marshal of a flat struct cannot fail.
		raw, _ := json.Marshal(member)
		channelData = string(raw)
		toSign = fmt.Sprintf("%s:%s", toSign, channelData)
	}

	return domain.AuthorizationGrant{
		Auth:        fmt.Sprintf("%s:%s", a.appKey, a.sign(toSign)),
		ChannelData: channelData,
	}, nil
}

// VerifyGrant recomputes the signature for a subscribe attempt and checks
// it against the auth string presented by the socket. The transport calls
// this before admitting a subscription.
func (a *Authorizer) VerifyGrant(channel domain.ChannelName, socketID domain.SocketID, presented domain.AuthorizationGrant) bool {
	toSign := fmt.Sprintf("%s:%s", socketID, channel)
	if presented.ChannelData != "" {
		toSign = fmt.Sprintf("%s:%s", toSign, presented.ChannelData)
	}
	expected := fmt.Sprintf("%s:%s", a.appKey, a.sign(toSign))
	return hmac.Equal([]byte(expected), []byte(presented.Auth))
}

func (a *Authorizer) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
