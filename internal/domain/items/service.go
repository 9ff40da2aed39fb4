package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/lelang/item-service/pkg/database"
)

// Service errors
var (
	ErrItemNotFound = errors.New("item not found")
)

// Service implements the item use cases. Every write runs in its own
// transaction together with the matching outbox event.
type Service struct {
	txManager  database.TransactionManager
	repo       Repository
	outboxRepo OutboxRepository
}

// NewService creates a new item service
func NewService(txManager database.TransactionManager, repo Repository, outboxRepo OutboxRepository) *Service {
	return &Service{
		txManager:  txManager,
		repo:       repo,
		outboxRepo: outboxRepo,
	}
}

// CreateItem stores a new item and returns it with its generated ID
func (s *Service) CreateItem(ctx context.Context, cmd ItemCommand) (*Item, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item := &Item{}
	cmd.apply(item)

	if err := s.repo.CreateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	event, err := newItemEvent(EventTypeItemCreated, itemEventFields(item))
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// ListItems returns all items, newest first
func (s *Service) ListItems(ctx context.Context) ([]*Item, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// GetItem retrieves an item by ID
func (s *Service) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", itemID, err)
	}
	return item, nil
}

// UpdateItem replaces every mutable field of an existing item
func (s *Service) UpdateItem(ctx context.Context, itemID int64, cmd ItemCommand) (*Item, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	exists, err := s.repo.ItemExists(ctx, tx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to check item %d: %w", itemID, err)
	}
	if !exists {
		return nil, ErrItemNotFound
	}

	item := &Item{ID: itemID}
	cmd.apply(item)

	if err := s.repo.UpdateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to update item %d: %w", itemID, err)
	}

	event, err := newItemEvent(EventTypeItemUpdated, itemEventFields(item))
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// DeleteItem removes an existing item
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	exists, err := s.repo.ItemExists(ctx, tx, itemID)
	if err != nil {
		return fmt.Errorf("failed to check item %d: %w", itemID, err)
	}
	if !exists {
		return ErrItemNotFound
	}

	if err := s.repo.DeleteItem(ctx, tx, itemID); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", itemID, err)
	}

	event, err := newItemEvent(EventTypeItemDeleted, map[string]any{"item_id": itemID})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
