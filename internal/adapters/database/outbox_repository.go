package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/lelang/item-service/pkg/events"
)

// PostgresOutboxRepository stores item events in outbox_events. Each row
// remembers which sinks received it in delivered_to.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresOutboxRepository creates a new PostgreSQL outbox repository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent records event inside the caller's item transaction
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *pkgevents.OutboxEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		 VALUES ($1, $2, $3, 'pending', $4)`,
		event.ID, event.EventType, event.Payload, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s event: %w", event.EventType, err)
	}
	return nil
}

// GetPendingEvents locks the oldest pending events that sink has not received.
// SKIP LOCKED lets the relays of other sinks, and other workers, run alongside.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, sink string, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, status::text, delivered_to, created_at, processed_at
		FROM outbox_events
		WHERE status = 'pending' AND NOT ($1 = ANY (delivered_to))
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		sink, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events for %s: %w", sink, err)
	}

	pending, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*pkgevents.OutboxEvent, error) {
		var (
			event  pkgevents.OutboxEvent
			status string
		)
		err := row.Scan(&event.ID, &event.EventType, &event.Payload, &status,
			&event.DeliveredTo, &event.CreatedAt, &event.ProcessedAt)
		event.Status = pkgevents.OutboxStatus(status)
		return &event, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending events: %w", err)
	}
	return pending, nil
}

// MarkDelivered appends sink to delivered_to. The row turns published, with
// processed_at set, when delivered_to covers every name in sinks.
func (r *PostgresOutboxRepository) MarkDelivered(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, sink string, sinks []string) error {
	result, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET delivered_to = array_append(delivered_to, $2::text),
		    status = CASE WHEN array_append(delivered_to, $2::text) @> $3::text[]
		                  THEN 'published'::outbox_status ELSE status END,
		    processed_at = CASE WHEN array_append(delivered_to, $2::text) @> $3::text[]
		                        THEN NOW() ELSE processed_at END
		WHERE id = $1 AND NOT ($2 = ANY (delivered_to))`,
		eventID, sink, sinks,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event delivered to %s: %w", sink, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found or already delivered to %s", eventID, sink)
	}
	return nil
}

// CountEventsByStatus returns how many events are in the given status
func (r *PostgresOutboxRepository) CountEventsByStatus(ctx context.Context, status pkgevents.OutboxStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE status = $1::outbox_status`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}

// CountUndelivered returns how many pending events sink has not received
func (r *PostgresOutboxRepository) CountUndelivered(ctx context.Context, sink string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = 'pending' AND NOT ($1 = ANY (delivered_to))`,
		sink,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count undelivered events for %s: %w", sink, err)
	}
	return count, nil
}
