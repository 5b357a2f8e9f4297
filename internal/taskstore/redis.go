package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "overlax:tasks:"

// Channel returns the pub/sub channel carrying task events for uid.
func Channel(uid string) string {
	return channelPrefix + uid
}

// EncodeEvent serializes an event for the bus.
func EncodeEvent(ev Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode task event: %w", err)
	}
	return string(data), nil
}

// DecodeEvent parses a bus message. The user id falls back to the channel suffix.
func DecodeEvent(channel, payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode task event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("task event without type on %s", channel)
	}
	if ev.UserID == "" {
		ev.UserID = strings.TrimPrefix(channel, channelPrefix)
	}
	return ev, nil
}

// RedisBus carries task events between processes over Redis pub/sub
type RedisBus struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisBus creates a bus on an existing client
func NewRedisBus(client redis.UniversalClient, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

// Publish sends ev on the user's channel.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if ev.UserID == "" {
		return errors.New("task event requires a user id")
	}
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, Channel(ev.UserID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}
	return nil
}

// Listen calls handle for every event on any user channel until ctx is cancelled.
func (b *RedisBus) Listen(ctx context.Context, handle func(Event)) error {
	return b.consume(ctx, b.client.PSubscribe(ctx, channelPrefix+"*"), handle)
}

const publishTimeout = 2 * time.Second

// SharedCache is a SnapshotCache whose invalidations reach every process
// listening on the bus.
type SharedCache struct {
	*SnapshotCache
	bus *RedisBus
}

// NewSharedCache wraps cache so Invalidate is also published on bus.
func NewSharedCache(cache *SnapshotCache, bus *RedisBus) *SharedCache {
	return &SharedCache{SnapshotCache: cache, bus: bus}
}

// Invalidate drops the local snapshot and announces a refresh for uid.
// A failed publish only leaves other processes waiting for their TTL.
func (c *SharedCache) Invalidate(uid string) {
	c.SnapshotCache.Invalidate(uid)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.bus.Publish(ctx, Event{Type: EventRefreshed, UserID: uid}); err != nil {
		c.bus.logger.Warn("task refresh not broadcast", zap.String("user_id", uid), zap.Error(err))
	}
}

func (b *RedisBus) consume(ctx context.Context, pubsub *redis.PubSub, handle func(Event)) error {
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to task events: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			ev, err := DecodeEvent(msg.Channel, msg.Payload)
			if err != nil {
				b.logger.Warn("dropping task event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handle(ev)
		}
	}
}
