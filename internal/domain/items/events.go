package items

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lelang/item-service/pkg/events"
)

// Item lifecycle event types, used as AMQP routing keys
const (
	EventTypeItemCreated = "item.created"
	EventTypeItemUpdated = "item.updated"
	EventTypeItemDeleted = "item.deleted"
)

// TimestampLayout is the naive ISO-8601 form end_time is exchanged in
const TimestampLayout = "2006-01-02T15:04:05.999999"

// newItemEvent encodes fields as a protobuf Struct and wraps it in a pending
// outbox event.
func newItemEvent(eventType string, fields map[string]any) (*events.OutboxEvent, error) {
	fields["occurred_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s payload: %w", eventType, err)
	}

	body, err := proto.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return events.NewOutboxEvent(eventType, body), nil
}

func itemEventFields(item *Item) map[string]any {
	fields := map[string]any{
		"item_id":     item.ID,
		"nama_barang": item.Name,
		"deskripsi":   item.Description,
		"harga_awal":  item.StartPrice,
		"owner_id":    item.OwnerID,
		"image_url":   nil,
		"end_time":    nil,
	}
	if item.ImageURL != nil {
		fields["image_url"] = *item.ImageURL
	}
	if item.EndTime != nil {
		fields["end_time"] = item.EndTime.Format(TimestampLayout)
	}
	return fields
}
