package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the environment-supplied settings of the api and worker binaries
type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	DBMaxConns      int32
	DBLockTimeout   time.Duration
	ShutdownTimeout time.Duration

	RabbitMQURL         string
	EventsExchange      string
	RedisAddr           string
	NotificationChannel string
	RelayBatchSize      int
	RelayInterval       time.Duration
}

// ErrMissingDatabaseURL is returned by Load when ITEM_DB_URL is empty
var ErrMissingDatabaseURL = errors.New("ITEM_DB_URL is not set")

// Load reads the configuration from the process environment
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8000"),
		DatabaseURL:         os.Getenv("ITEM_DB_URL"),
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		EventsExchange:      getenv("EVENTS_EXCHANGE", "auction.events"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		NotificationChannel: getenv("NOTIFICATION_CHANNEL", "lelang_notifications"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}

	maxConns, err := getenvInt("ITEM_DB_MAX_CONNS", 0, 32)
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)

	batchSize, err := getenvInt("RELAY_BATCH_SIZE", 10, 32)
	if err != nil {
		return Config{}, err
	}
	cfg.RelayBatchSize = int(batchSize)

	if cfg.DBLockTimeout, err = getenvDuration("ITEM_DB_LOCK_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RelayInterval, err = getenvDuration("RELAY_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// EventSinksEnabled reports whether the worker has anywhere to publish to
func (c Config) EventSinksEnabled() bool {
	return c.RabbitMQURL != "" || c.RedisAddr != ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvInt parses a non-negative integer that fits in bitSize bits
func getenvInt(k string, def int64, bitSize int) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, bitSize)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative %d-bit integer, got %q", k, bitSize, v)
	}
	return n, nil
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", k, v)
	}
	return d, nil
}
