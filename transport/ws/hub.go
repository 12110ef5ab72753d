package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"channel-gateway/auth"
	"channel-gateway/domain"
	"channel-gateway/errors"
	"channel-gateway/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var upgrader = websocket.Upgrader{
	// The gateway sits behind the application's edge; origin filtering
	// happens there.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub owns the subscriber registry: which sockets are in which channels.
// It is the process-wide transport capability the dispatcher and the
// authorizer talk to; nothing else touches its maps.
//
// Admit, Remove, CurrentSubscribers and Emit are atomic under the hub
// mutex and safe from any goroutine. A client's send channel is only
// ever written under the read lock and only ever closed under the write
// lock, so a disconnect can never race a dispatch into a closed channel.
type Hub struct {
	log        *slog.Logger
	verifier   *auth.Verifier
	authorizer *auth.Authorizer
	monitoring *observability.Monitoring
	sendBuffer int

	mu       sync.RWMutex
	channels map[domain.ChannelName]map[domain.SocketID]struct{}
	clients  map[domain.SocketID]*Client
}

func NewHub(log *slog.Logger, verifier *auth.Verifier, authorizer *auth.Authorizer, monitoring *observability.Monitoring, sendBuffer int) *Hub {
	return &Hub{
		log:        log,
		verifier:   verifier,
		authorizer: authorizer,
		monitoring: monitoring,
		sendBuffer: sendBuffer,
		channels:   make(map[domain.ChannelName]map[domain.SocketID]struct{}),
		clients:    make(map[domain.SocketID]*Client),
	}
}

// Run is the hub lifecycle loop, executed as a supervised worker.
// On context cancellation every client connection is torn down.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.log.Debug("Context done, closing all sockets")
	h.mu.Lock()
	for _, client := range h.clients {
		close(client.send)
		_ = client.conn.Close()
	}
	h.clients = make(map[domain.SocketID]*Client)
	h.channels = make(map[domain.ChannelName]map[domain.SocketID]struct{})
	h.mu.Unlock()
	return nil
}

// Admit adds a socket to a channel's subscriber set and reports whether
// the socket was newly added. For presence channels the remaining
// subscribers are told about the new member; a repeated subscribe
// changes nothing and notifies nobody.
func (h *Hub) Admit(channel domain.ChannelName, socket domain.SocketID) bool {
	h.mu.Lock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[domain.SocketID]struct{})
	}
	_, already := h.channels[channel][socket]
	h.channels[channel][socket] = struct{}{}
	client := h.clients[socket]
	h.mu.Unlock()

	if !already && channel.Kind() == domain.ChannelPresence && client != nil {
		h.notifyPresence(channel, socket, "gateway:member_added", client.principal)
	}
	return !already
}

// Remove takes a socket out of every channel it subscribed to and
// forgets the socket itself.
func (h *Hub) Remove(socket domain.SocketID) {
	h.drop(socket)
}

// leave unsubscribes a socket from one channel without closing it.
func (h *Hub) leave(channel domain.ChannelName, socket domain.SocketID) {
	h.mu.Lock()
	members, ok := h.channels[channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, subscribed := members[socket]; !subscribed {
		h.mu.Unlock()
		return
	}
	delete(members, socket)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
	client := h.clients[socket]
	h.mu.Unlock()

	if channel.Kind() == domain.ChannelPresence && client != nil {
		h.notifyPresence(channel, socket, "gateway:member_removed", client.principal)
	}
}

// CurrentSubscribers returns a snapshot of the channel's subscriber set.
// Sockets admitted after the call do not appear; that race is accepted,
// there is no replay.
func (h *Hub) CurrentSubscribers(channel domain.ChannelName) []domain.SocketID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.channels[channel])
}

// Emit queues a frame on one socket. A client that is not draining its
// send buffer is dropped rather than blocking the caller.
func (h *Hub) Emit(socket domain.SocketID, frame domain.Frame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	// The queueing is non-blocking, so it can stay under the read lock.
	// That excludes drop's close of the channel, which needs the write
	// lock.
	h.mu.RLock()
	client, ok := h.clients[socket]
	if !ok {
		h.mu.RUnlock()
		return fmt.Errorf("%w: unknown socket %s", errors.ErrTransportUnavailable, socket)
	}

	queued := false
	select {
	case client.send <- raw:
		queued = true
	default:
	}
	h.mu.RUnlock()

	if queued {
		return nil
	}
	h.monitoring.IncrSlowClientDrops()
	h.log.Warn("Dropping slow client", "socket", socket)
	h.drop(socket)
	return fmt.Errorf("%w: slow client %s", errors.ErrTransportUnavailable, socket)
}

// HandleWS upgrades the HTTP request and runs the client pumps.
// The session token travels in the query string (the browser websocket
// API cannot set headers); anonymous sockets are allowed and may only
// join public channels.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	var principal domain.Principal
	if token := r.URL.Query().Get("token"); token != "" {
		verified, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}
		principal = verified
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		id:        domain.SocketID(uuid.NewString()),
		principal: principal,
		send:      make(chan []byte, h.sendBuffer),
	}
	// Register synchronously: the established frame right below must
	// find the socket in the client map.
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.monitoring.SocketConnected()
	h.log.Debug("Socket connected", "socket", client.id, "user", client.principal.ID)

	established, _ := json.Marshal(map[string]string{"socket_id": string(client.id)})
	_ = h.Emit(client.id, domain.Frame{Event: "gateway:connection_established", Data: established})

	go client.writePump()
	go client.readPump()
}

// drop removes the socket everywhere: client map, every channel set,
// and the connection itself. Presence channels learn about the leave.
func (h *Hub) drop(socket domain.SocketID) {
	h.mu.Lock()
	client, ok := h.clients[socket]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, socket)

	var left []presenceLeave
	for channel, members := range h.channels {
		if _, subscribed := members[socket]; !subscribed {
			continue
		}
		delete(members, socket)
		if len(members) == 0 {
			// No empty sets left behind, they would leak over time.
			delete(h.channels, channel)
			continue
		}
		if channel.Kind() == domain.ChannelPresence {
			left = append(left, presenceLeave{channel: channel, principal: client.principal})
		}
	}
	// Closing under the write lock keeps concurrent Emit calls out; they
	// queue under the read lock.
	close(client.send)
	h.mu.Unlock()

	_ = client.conn.Close()
	h.monitoring.SocketDisconnected()

	for _, leave := range left {
		h.notifyPresence(leave.channel, socket, "gateway:member_removed", leave.principal)
	}
	h.log.Debug("Socket disconnected", "socket", socket)
}

type presenceLeave struct {
	channel   domain.ChannelName
	principal domain.Principal
}

// notifyPresence tells every other subscriber of a presence channel that
// a member joined or left.
func (h *Hub) notifyPresence(channel domain.ChannelName, subject domain.SocketID, event string, principal domain.Principal) {
	member := domain.PresenceMember{
		UserID:   principal.ID,
		UserInfo: domain.UserInfo{Name: principal.DisplayName, Email: principal.Email},
	}
	data, _ := json.Marshal(member)
	frame := domain.Frame{Event: event, Channel: channel.String(), Data: data}

	for _, socket := range h.CurrentSubscribers(channel) {
		if socket == subject {
			continue
		}
		_ = h.Emit(socket, frame)
	}
}
