package domain

import (
	"regexp"
	"strings"
)

const (
	PresencePrefix = "presence-"
	PrivatePrefix  = "private-"
)

// namePattern is the allow-list for channel names after the optional
// presence-/private- prefix has been stripped. Anything outside of it
// (path fragments, empty names, control characters) is rejected before
// the authorizer ever runs.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_=@,.;-]+$`)

// ChannelKind classifies a channel name by its naming convention.
type ChannelKind int

const (
	ChannelInvalid ChannelKind = iota
	ChannelPublic
	ChannelPrivate
	ChannelPresence
)

// ChannelName is a logical topic. Presence channels carry a member payload
// in their grant, private channels require a grant only, public channels
// can be joined without one.
type ChannelName string

func (c ChannelName) Kind() ChannelKind {
	name := string(c)
	switch {
	case strings.HasPrefix(name, PresencePrefix):
		name = strings.TrimPrefix(name, PresencePrefix)
		if namePattern.MatchString(name) {
			return ChannelPresence
		}
	case strings.HasPrefix(name, PrivatePrefix):
		name = strings.TrimPrefix(name, PrivatePrefix)
		if namePattern.MatchString(name) {
			return ChannelPrivate
		}
	default:
		if namePattern.MatchString(name) {
			return ChannelPublic
		}
	}
	return ChannelInvalid
}

func (c ChannelName) IsValid() bool {
	return c.Kind() != ChannelInvalid
}

// RequiresGrant reports whether subscribing to the channel needs a signed
// authorization grant.
func (c ChannelName) RequiresGrant() bool {
	kind := c.Kind()
	return kind == ChannelPrivate || kind == ChannelPresence
}

func (c ChannelName) String() string {
	return string(c)
}
