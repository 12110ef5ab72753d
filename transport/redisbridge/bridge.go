package redisbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"channel-gateway/domain"

	"github.com/redis/go-redis/v9"
)

// LocalDispatcher replays events arriving from other nodes into the
// local fan-out path without re-publishing them.
type LocalDispatcher interface {
	DispatchLocal(ctx context.Context, evt domain.Event) error
}

// Bridge fans events out across gateway nodes through a redis pub/sub
// channel. Each node publishes its locally triggered events and replays
// everyone else's. Best effort: nothing is persisted, a node that was
// down missed those events for good.
type Bridge struct {
	log        *slog.Logger
	rdb        *redis.Client
	channel    string
	dispatcher LocalDispatcher
	nodeID     string
}

// envelope wraps an event with its origin so a node can skip its own
// publications coming back around.
type envelope struct {
	NodeID string       `json:"node_id"`
	Event  domain.Event `json:"event"`
}

func NewBridge(log *slog.Logger, rdb *redis.Client, cluster, nodeID string, dispatcher LocalDispatcher) *Bridge {
	return &Bridge{
		log:        log,
		rdb:        rdb,
		channel:    fmt.Sprintf("gateway:events:%s", cluster),
		dispatcher: dispatcher,
		nodeID:     nodeID,
	}
}

// Publish implements contract.Publisher.
func (b *Bridge) Publish(ctx context.Context, evt domain.Event) error {
	raw, err := json.Marshal(envelope{NodeID: b.nodeID, Event: evt})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Run subscribes to the cluster channel and replays remote events into
// the local hub. Executed as a supervised worker.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("Context done, stopping redis subscriber")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription closed unexpectedly")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("Dropping malformed cross-node event", "error", err)
				continue
			}
			if env.NodeID == b.nodeID {
				continue
			}
			if err := b.dispatcher.DispatchLocal(ctx, env.Event); err != nil {
				b.log.Warn("Replay of remote event failed", "channel", env.Event.Channel, "error", err)
			}
		}
	}
}
