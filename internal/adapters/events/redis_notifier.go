package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Notification is the JSON message published on the notification channel
type Notification struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// RedisNotifier publishes item events on a Redis Pub/Sub channel read by the
// notification service. It implements pkgevents.EventPublisher.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier creates a notifier publishing on channel
func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Publish decodes the protobuf payload and publishes it as JSON.
// The exchange is ignored; the routing key becomes the event name.
func (n *RedisNotifier) Publish(ctx context.Context, _, routingKey string, body []byte) error {
	var payload structpb.Struct
	if err := proto.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", routingKey, err)
	}

	msg, err := json.Marshal(Notification{Event: routingKey, Data: payload.AsMap()})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", n.channel, err)
	}
	return nil
}
