package ws

import (
	"encoding/json"
	"time"

	"channel-gateway/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. The read pump handles the
// subscribe protocol, the write pump drains the send buffer; the hub
// never writes to the connection directly.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	id        domain.SocketID
	principal domain.Principal
	send      chan []byte
}

// inboundFrame is what sockets are allowed to send: subscribe and
// unsubscribe requests, nothing else. Events only enter the gateway
// through the internal trigger endpoint.
type inboundFrame struct {
	Event string        `json:"event"`
	Data  subscribeData `json:"data"`
}

type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data"`
}

func (c *Client) readPump() {
	defer c.hub.drop(c.id)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Socket read error", "socket", c.id, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.hub.log.Debug("Socket sent invalid JSON", "socket", c.id)
			continue
		}

		switch frame.Event {
		case "gateway:subscribe":
			c.handleSubscribe(frame.Data)
		case "gateway:unsubscribe":
			c.handleUnsubscribe(frame.Data)
		default:
			c.hub.log.Debug("Socket sent unhandled event", "socket", c.id, "event", frame.Event)
		}
	}
}

func (c *Client) handleSubscribe(data subscribeData) {
	channel := domain.ChannelName(data.Channel)
	if !channel.IsValid() {
		c.subscriptionError(data.Channel, "invalid channel name")
		return
	}

	if channel.RequiresGrant() {
		grant := domain.AuthorizationGrant{Auth: data.Auth, ChannelData: data.ChannelData}
		if !c.hub.authorizer.VerifyGrant(channel, c.id, grant) {
			c.subscriptionError(data.Channel, "invalid authorization grant")
			return
		}
		if channel.Kind() == domain.ChannelPresence {
			// The signed channel_data is the authoritative member record;
			// sockets that connected without a token learn their identity
			// from the grant.
			var member domain.PresenceMember
			if err := json.Unmarshal([]byte(data.ChannelData), &member); err != nil {
				c.subscriptionError(data.Channel, "invalid presence payload")
				return
			}
			if c.principal.IsZero() {
				c.principal = domain.Principal{
					ID:          member.UserID,
					DisplayName: member.UserInfo.Name,
					Email:       member.UserInfo.Email,
				}
			}
		}
	}

	c.hub.Admit(channel, c.id)
	ack, _ := json.Marshal(map[string]string{"channel": data.Channel})
	_ = c.hub.Emit(c.id, domain.Frame{Event: "gateway:subscription_succeeded", Channel: data.Channel, Data: ack})
}

func (c *Client) handleUnsubscribe(data subscribeData) {
	channel := domain.ChannelName(data.Channel)
	if !channel.IsValid() {
		return
	}
	c.hub.leave(channel, c.id)
}

func (c *Client) subscriptionError(channel, reason string) {
	detail, _ := json.Marshal(map[string]string{"channel": channel, "reason": reason})
	_ = c.hub.Emit(c.id, domain.Frame{Event: "gateway:subscription_error", Channel: channel, Data: detail})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the send channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
