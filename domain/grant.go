package domain

// UserInfo is the public slice of a presence member, visible to every
// other subscriber of the presence channel.
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PresenceMember is the channel_data payload attached to presence grants.
type PresenceMember struct {
	UserID   string   `json:"user_id"`
	UserInfo UserInfo `json:"user_info"`
}

// AuthorizationGrant is the signed proof that a principal may subscribe to
// a channel from a given socket. It is computed once per authorization
// call, handed to the transport, and never persisted.
//
// Auth is "appKey:hexSignature". ChannelData is the serialized
// PresenceMember for presence channels, empty otherwise.
type AuthorizationGrant struct {
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}
