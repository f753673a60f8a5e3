package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores rendered timelines per order. It also serves as the derived
// view that optimistic confirmations invalidate.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(tenantID, orderID string) string {
	return fmt.Sprintf("timeline:cache:%s:%s", tenantID, orderID)
}

func (c *Cache) Get(ctx context.Context, tenantID, orderID string) ([]Event, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, cacheKey(tenantID, orderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("timeline: decode cached events: %w", err)
	}
	return events, nil
}

func (c *Cache) Set(ctx context.Context, tenantID, orderID string, events []Event) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("timeline: encode events: %w", err)
	}
	return c.client.Set(ctx, cacheKey(tenantID, orderID), raw, c.ttl).Err()
}

// InvalidateOrder drops the cached feed so the next read regenerates it.
// Satisfies the optimistic manager's view invalidation contract.
func (c *Cache) InvalidateOrder(ctx context.Context, tenantID, orderID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(tenantID, orderID)).Err()
}
