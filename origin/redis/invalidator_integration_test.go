//go:build integration

package redis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/marcelsud/request-relay/origin/redis"
)

/* Integration tests for the pub/sub invalidation bus
 *
 * Run with: go test -tags=integration ./origin/redis/...
 * Requires Docker.
 */

// RedisContainer holds the Redis testcontainer and connection details
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer creates and starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")

	// Remove redis:// prefix if present
	if len(addr) > 8 && addr[:8] == "redis://" {
		addr = addr[8:]
	}

	rc := &RedisContainer{
		Container: redisContainer,
		Addr:      addr,
	}

	cleanup := func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return rc, cleanup
}

func TestInvalidator_Integration(t *testing.T) {
	t.Run("notify triggers a refresh on the watcher", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rc, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		publisher, err := redis.NewInvalidator(rc.Addr, "", 0, nil)
		require.NoError(t, err)
		defer publisher.Close()

		watcher, err := redis.NewInvalidator(rc.Addr, "", 0, nil)
		require.NoError(t, err)
		defer watcher.Close()

		var refreshes atomic.Int32
		refreshed := make(chan struct{}, 8)
		go watcher.Watch(ctx, func(context.Context) error {
			refreshes.Add(1)
			refreshed <- struct{}{}
			return nil
		})

		// let the subscription settle before publishing
		time.Sleep(500 * time.Millisecond)

		require.NoError(t, publisher.Notify(ctx))

		select {
		case <-refreshed:
		case <-ctx.Done():
			t.Fatal("no refresh observed after notify")
		}
		require.GreaterOrEqual(t, refreshes.Load(), int32(1))
	})

	t.Run("watch stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rc, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		watcher, err := redis.NewInvalidator(rc.Addr, "", 0, nil)
		require.NoError(t, err)
		defer watcher.Close()

		watchCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			watcher.Watch(watchCtx, func(context.Context) error { return nil })
			close(done)
		}()

		time.Sleep(200 * time.Millisecond)
		stop()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not stop after cancellation")
		}
	})

	t.Run("unreachable server fails fast", func(t *testing.T) {
		_, err := redis.NewInvalidator("127.0.0.1:1", "", 0, nil)
		require.Error(t, err)
	})
}
