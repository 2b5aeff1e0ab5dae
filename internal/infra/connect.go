package infra

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/lumen-wallet/lumen_wallet/internal/config"
)

// Connections are the external backends the process owns.
type Connections struct {
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Events *kafka.Writer
}

// Connect opens every configured backend. Postgres and Redis are mandatory
// outside development; in development an unset URL leaves the backend nil and
// the service falls back to in-memory storage. Kafka is only used when brokers
// are configured.
func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Connections, error) {
	conns := &Connections{}
	var err error

	if cfg.DatabaseURL != "" || !cfg.IsDev() {
		if conns.DB, err = NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
	}

	if cfg.RedisURL != "" || !cfg.IsDev() {
		if conns.Cache, err = NewRedisClient(ctx, cfg.RedisURL, cfg.AppName); err != nil {
			conns.Close()
			return nil, err
		}
	} else {
		logger.Warn("REDIS_URL not set, idempotency replay and rate limiting disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		if conns.Events, err = NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic); err != nil {
			conns.Close()
			return nil, err
		}
	}
	return conns, nil
}

// Close releases whatever Connect opened. The event writer is flushed first
// so pending ledger events are not lost on shutdown.
func (c *Connections) Close() error {
	var errs []error
	if c.Events != nil {
		errs = append(errs, c.Events.Close())
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return errors.Join(errs...)
}
