package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lelang/item-service/internal/domain/items"
	pkgdb "github.com/lelang/item-service/pkg/database"
)

const itemColumns = `id, nama_barang, deskripsi, harga_awal, owner_id, image_url, end_time`

// PostgresItemRepository implements items.Repository using pgx
type PostgresItemRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresItemRepository creates a new PostgreSQL item repository
func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// CreateItem inserts the item and reads back the generated ID
func (r *PostgresItemRepository) CreateItem(ctx context.Context, db pkgdb.DBTX, item *items.Item) error {
	query := `
		INSERT INTO items (nama_barang, deskripsi, harga_awal, owner_id, image_url, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + itemColumns

	row := db.QueryRow(ctx, query,
		item.Name,
		item.Description,
		item.StartPrice,
		item.OwnerID,
		item.ImageURL,
		item.EndTime,
	)
	if err := scanItem(row, item); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetItemByID retrieves an item by its ID (non-transactional read)
func (r *PostgresItemRepository) GetItemByID(ctx context.Context, itemID int64) (*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	var item items.Item
	if err := scanItem(r.pool.QueryRow(ctx, query, itemID), &item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, items.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// ListItems retrieves all items ordered by ID descending
func (r *PostgresItemRepository) ListItems(ctx context.Context) ([]*items.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	result := make([]*items.Item, 0)
	for rows.Next() {
		var item items.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return result, nil
}

// ItemExists reports whether an item with the given ID exists
func (r *PostgresItemRepository) ItemExists(ctx context.Context, db pkgdb.DBTX, itemID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return exists, nil
}

// UpdateItem overwrites every mutable column with a single filtered UPDATE
func (r *PostgresItemRepository) UpdateItem(ctx context.Context, db pkgdb.DBTX, item *items.Item) error {
	query := `
		UPDATE items
		SET nama_barang = $1, deskripsi = $2, harga_awal = $3, owner_id = $4, image_url = $5, end_time = $6
		WHERE id = $7
		RETURNING ` + itemColumns

	row := db.QueryRow(ctx, query,
		item.Name,
		item.Description,
		item.StartPrice,
		item.OwnerID,
		item.ImageURL,
		item.EndTime,
		item.ID,
	)
	if err := scanItem(row, item); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return items.ErrItemNotFound
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// DeleteItem removes an item with a single filtered DELETE
func (r *PostgresItemRepository) DeleteItem(ctx context.Context, db pkgdb.DBTX, itemID int64) error {
	result, err := db.Exec(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return items.ErrItemNotFound
	}

	return nil
}

// scanItem reads one row laid out as itemColumns
func scanItem(row pgx.Row, item *items.Item) error {
	return row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.StartPrice,
		&item.OwnerID,
		&item.ImageURL,
		&item.EndTime,
	)
}
