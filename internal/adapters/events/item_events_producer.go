package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lelang/item-service/internal/adapters/database"
	"github.com/lelang/item-service/internal/config"
	pkgdb "github.com/lelang/item-service/pkg/database"
	pkgevents "github.com/lelang/item-service/pkg/events"
)

// Sink names recorded in outbox_events.delivered_to
const (
	SinkRabbitMQ = "rabbitmq"
	SinkRedis    = "redis"
)

// ErrNoEventSinks is returned when neither RabbitMQ nor Redis is configured
var ErrNoEventSinks = errors.New("no event sink configured: set RABBITMQ_URL and/or REDIS_ADDR")

// ItemEventsProducer relays item events from the outbox to every configured
// sink, one relay per sink
type ItemEventsProducer struct {
	relays  []*pkgevents.OutboxRelay
	closers []func() error
}

// NewItemEventsProducer connects the configured sinks and builds one relay per sink.
// Connections opened here are released by Close.
func NewItemEventsProducer(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger *slog.Logger) (*ItemEventsProducer, error) {
	if !cfg.EventSinksEnabled() {
		return nil, ErrNoEventSinks
	}

	p := &ItemEventsProducer{}
	publishers := make(map[string]pkgevents.EventPublisher)
	var sinks []string

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		p.closers = append(p.closers, conn.Close)

		publisher, err := pkgevents.NewRabbitMQPublisher(conn, cfg.EventsExchange)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to create RabbitMQ publisher: %w", err)
		}
		p.closers = append(p.closers, publisher.Close)
		publishers[SinkRabbitMQ] = publisher
		sinks = append(sinks, SinkRabbitMQ)
		logger.Info("RabbitMQ Connected", "exchange", cfg.EventsExchange)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		p.closers = append(p.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		publishers[SinkRedis] = NewRedisNotifier(rdb, cfg.NotificationChannel)
		sinks = append(sinks, SinkRedis)
		logger.Info("Redis Connected", "channel", cfg.NotificationChannel)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	for _, sink := range sinks {
		p.relays = append(p.relays, pkgevents.NewOutboxRelay(
			outboxRepo,
			publishers[sink],
			txManager,
			pkgevents.RelayConfig{
				Sink:      sink,
				Sinks:     sinks,
				BatchSize: cfg.RelayBatchSize,
				Interval:  cfg.RelayInterval,
				Exchange:  cfg.EventsExchange,
			},
			logger,
		))
	}

	return p, nil
}

// Sinks returns the names of the connected sinks in relay order
func (p *ItemEventsProducer) Sinks() []string {
	names := make([]string, 0, len(p.relays))
	for _, relay := range p.relays {
		names = append(names, relay.Sink())
	}
	return names
}

// Run runs every relay until ctx is done
func (p *ItemEventsProducer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, relay := range p.relays {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	return g.Wait()
}

// Close releases the sink connections in reverse order of creation
func (p *ItemEventsProducer) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
