package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lelang/item-service/pkg/database"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
)

// OutboxEvent is a row of the outbox_events table. DeliveredTo lists the
// sinks that already received the event.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	DeliveredTo []string     `db:"delivered_to"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// NewOutboxEvent returns a pending event ready to be saved
func NewOutboxEvent(eventType string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxStatusPending,
		DeliveredTo: []string{},
		CreatedAt:   time.Now().UTC(),
	}
}

// OutboxRepository is the part of the outbox store the relay needs
type OutboxRepository interface {
	// GetPendingEvents locks up to limit pending events not yet delivered to sink
	GetPendingEvents(ctx context.Context, tx pgx.Tx, sink string, limit int) ([]*OutboxEvent, error)

	// MarkDelivered records that sink received the event. The event becomes
	// published once every name in sinks has received it.
	MarkDelivered(ctx context.Context, tx pgx.Tx, id uuid.UUID, sink string, sinks []string) error
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RelayConfig controls one relay loop. Sink names the publisher the relay
// feeds and Sinks lists every sink an event must reach.
type RelayConfig struct {
	Sink      string
	Sinks     []string
	BatchSize int
	Interval  time.Duration
	Exchange  string
}

// OutboxRelay polls the outbox for events its sink has not received yet.
// Each sink has its own relay, so an unreachable sink only delays itself.
// Delivery is at-least-once per sink.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  database.TransactionManager
	cfg        RelayConfig
	logger     *slog.Logger
}

// NewOutboxRelay creates a relay. Non-positive batch size or interval fall
// back to 10 events and one second. An empty Sinks means the relay's sink alone.
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	cfg RelayConfig,
	logger *slog.Logger,
) *OutboxRelay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []string{cfg.Sink}
	}
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		cfg:        cfg,
		logger:     logger.With("sink", cfg.Sink),
	}
}

// Sink returns the name of the sink this relay feeds
func (r *OutboxRelay) Sink() string {
	return r.cfg.Sink
}

// Run processes a batch immediately and then on every tick until ctx is done
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Error processing outbox batch", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch publishes up to BatchSize events to the relay's sink and
// returns how many were delivered. A publish failure stops the batch; the
// deliveries made before it are still committed.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pending, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.cfg.Sink, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	delivered := 0
	var publishErr error
	for _, event := range pending {
		if err := r.publisher.Publish(ctx, r.cfg.Exchange, event.EventType, event.Payload); err != nil {
			publishErr = fmt.Errorf("failed to publish event %s: %w", event.ID, err)
			break
		}
		if err := r.outboxRepo.MarkDelivered(ctx, tx, event.ID, r.cfg.Sink, r.cfg.Sinks); err != nil {
			return 0, fmt.Errorf("failed to mark event %s delivered: %w", event.ID, err)
		}
		delivered++
	}

	if delivered > 0 {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
		}
		r.logger.Info("Published outbox events", "count", delivered)
	}

	return delivered, publishErr
}
