package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stakesim/stakesim/internal/domain"
)

// TierCache implements domain.TierCache using Redis string values holding a
// JSON-serialized tier table. Tables have no TTL: they persist until the next
// run overwrites them or explicitly invalidates the key, since a stale table
// is still a better seed than no history at all.
//
// Key schema:
//
//	tiertable:{key} - JSON-encoded domain.TierTable
type TierCache struct {
	rdb *redis.Client
}

// NewTierCache creates a TierCache backed by the given Client.
func NewTierCache(c *Client) *TierCache {
	return &TierCache{rdb: c.Underlying()}
}

func tierTableKey(key string) string { return "tiertable:" + key }

// Set stores a tier table under the given key, replacing any previous table.
func (tc *TierCache) Set(ctx context.Context, key string, table domain.TierTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("redis: marshal tier table %s: %w", key, err)
	}

	if err := tc.rdb.Set(ctx, tierTableKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set tier table %s: %w", key, err)
	}
	return nil
}

// Get retrieves a tier table by key.
// It returns domain.ErrNotFound when no table has been saved under the key.
func (tc *TierCache) Get(ctx context.Context, key string) (domain.TierTable, error) {
	data, err := tc.rdb.Get(ctx, tierTableKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TierTable{}, domain.ErrNotFound
		}
		return domain.TierTable{}, fmt.Errorf("redis: get tier table %s: %w", key, err)
	}

	var table domain.TierTable
	if err := json.Unmarshal(data, &table); err != nil {
		return domain.TierTable{}, fmt.Errorf("redis: unmarshal tier table %s: %w", key, err)
	}
	if table.Entries == nil {
		table.Entries = make(map[string]domain.TierParams)
	}
	return table, nil
}

// Invalidate removes a stored tier table. Removing a missing key is not an
// error.
func (tc *TierCache) Invalidate(ctx context.Context, key string) error {
	if err := tc.rdb.Del(ctx, tierTableKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate tier table %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TierCache = (*TierCache)(nil)
