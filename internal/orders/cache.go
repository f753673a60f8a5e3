package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedOrder is the cache-layer view of an order. Optimistic marks entries
// written ahead of server confirmation; UpdateID ties the entry back to the
// in-flight update that produced it.
type CachedOrder struct {
	Order      Order     `json:"order"`
	Optimistic bool      `json:"optimistic"`
	UpdateID   string    `json:"update_id,omitempty"`
	CachedAt   time.Time `json:"cached_at"`
}

// Cache wraps Redis based caching of order snapshots.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(tenantID, orderID string) string {
	return fmt.Sprintf("orders:cache:%s:%s", tenantID, orderID)
}

// Get loads the cached snapshot. A miss returns (nil, nil).
func (c *Cache) Get(ctx context.Context, tenantID, orderID string) (*CachedOrder, error) {
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
	var cached CachedOrder
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("orders: decode cached order: %w", err)
	}
	return &cached, nil
}

// Set stores a confirmed server snapshot.
func (c *Cache) Set(ctx context.Context, order Order) error {
	return c.put(ctx, CachedOrder{Order: order, CachedAt: time.Now()})
}

// SetOptimistic stores a locally predicted snapshot tagged with its update.
func (c *Cache) SetOptimistic(ctx context.Context, order Order, updateID string) error {
	return c.put(ctx, CachedOrder{Order: order, Optimistic: true, UpdateID: updateID, CachedAt: time.Now()})
}

func (c *Cache) put(ctx context.Context, cached CachedOrder) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("orders: encode cached order: %w", err)
	}
	return c.client.Set(ctx, cacheKey(cached.Order.TenantID, cached.Order.ID), raw, c.ttl).Err()
}

// Restore writes a previously read entry back verbatim, markers included.
// Used by rollback to reinstate the pre-update snapshot field for field.
func (c *Cache) Restore(ctx context.Context, cached CachedOrder) error {
	return c.put(ctx, cached)
}

// Delete drops the snapshot.
func (c *Cache) Delete(ctx context.Context, tenantID, orderID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(tenantID, orderID)).Err()
}
