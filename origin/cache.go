package origin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

/* Cache is a read-through in-memory snapshot of the directory keyed by
 * inbound authority. Refresh swaps the whole map under the write lock, so
 * readers never observe a partially updated record.
 */
type Cache struct {
	mu       sync.RWMutex
	byDomain map[string]Origin

	directory Directory
	logger    *slog.Logger
}

// NewCache creates an empty cache backed by the given directory.
func NewCache(directory Directory, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		byDomain:  make(map[string]Origin),
		directory: directory,
		logger:    logger,
	}
}

// Resolve answers which origin, if any, handles the given authority.
// Absence is not an error: it means no configuration exists for the host.
func (c *Cache) Resolve(authority string) (Origin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.byDomain[authority]
	return o, ok
}

// Refresh reloads the snapshot from the directory.
func (c *Cache) Refresh(ctx context.Context) error {
	origins, err := c.directory.List(ctx)
	if err != nil {
		return fmt.Errorf("listing origins: %w", err)
	}

	next := make(map[string]Origin, len(origins))
	for _, o := range origins {
		next[o.Domain] = o
	}

	c.mu.Lock()
	c.byDomain = next
	c.mu.Unlock()

	c.logger.Debug("origin cache refreshed", slog.Int("origins", len(next)))
	return nil
}

// Len returns the number of cached origins.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byDomain)
}

// Run refreshes the cache periodically until the context is cancelled.
// It is the poll fallback behind push invalidation.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("origin cache refresh failed", slog.Any("error", err))
			}
		}
	}
}
