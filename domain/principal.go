package domain

// Principal is the trusted identity derived from a verified session.
// It carries exactly the three fields the gateway is allowed to expose;
// nothing else from the session store may leak past this type.
// A Principal lives for a single request or connection, never longer.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// IsZero reports whether the principal is absent (anonymous caller).
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// SocketID identifies a single websocket connection for its whole lifetime.
type SocketID string
