package items

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/lelang/item-service/pkg/database"
	"github.com/lelang/item-service/pkg/events"
)

// Repository defines the interface for item persistence
type Repository interface {
	// CreateItem inserts item and sets its generated ID
	CreateItem(ctx context.Context, db database.DBTX, item *Item) error

	// GetItemByID retrieves an item by its ID, ErrItemNotFound if absent
	GetItemByID(ctx context.Context, itemID int64) (*Item, error)

	// ListItems retrieves every item, most recently created first
	ListItems(ctx context.Context) ([]*Item, error)

	// ItemExists reports whether a row with itemID exists
	ItemExists(ctx context.Context, db database.DBTX, itemID int64) (bool, error)

	// UpdateItem overwrites every mutable column of the row matching item.ID
	// and refreshes item from the stored row
	UpdateItem(ctx context.Context, db database.DBTX, item *Item) error

	// DeleteItem removes the row matching itemID
	DeleteItem(ctx context.Context, db database.DBTX, itemID int64) error
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
