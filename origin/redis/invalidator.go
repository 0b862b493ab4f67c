package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis pub/sub implementation of origin cache invalidation
 * The management API publishes a note whenever the directory changes and
 * every relay instance refreshes its snapshot on receipt. The periodic poll
 * in origin.Cache.Run covers missed messages.
 */

const defaultChannel = "origins:changed"

type Invalidator struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewInvalidator creates an invalidator connected to the given Redis address.
func NewInvalidator(addr, password string, db int, logger *slog.Logger) (*Invalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Invalidator{
		client:  client,
		channel: defaultChannel,
		logger:  logger,
	}, nil
}

// Notify announces that the origin directory changed.
func (i *Invalidator) Notify(ctx context.Context) error {
	if err := i.client.Publish(ctx, i.channel, "changed").Err(); err != nil {
		return fmt.Errorf("publishing origin change: %w", err)
	}
	return nil
}

// Watch subscribes to change notes and calls refresh for each one until the
// context is cancelled.
func (i *Invalidator) Watch(ctx context.Context, refresh func(context.Context) error) {
	sub := i.client.Subscribe(ctx, i.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := refresh(ctx); err != nil {
				i.logger.Error("origin cache refresh on invalidation failed", slog.Any("error", err))
			}
		}
	}
}

// Close closes the Redis connection.
func (i *Invalidator) Close() error {
	return i.client.Close()
}
