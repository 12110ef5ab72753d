package domain

import "encoding/json"

// Event is a fire-and-forget broadcast: it has no identity and is never
// stored. The payload stays opaque, the gateway never inspects it.
type Event struct {
	Channel ChannelName     `json:"channel" validate:"required"`
	Name    string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// Frame is the wire shape delivered to subscriber sockets.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
