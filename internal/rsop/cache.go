package rsop

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores unscoped "as of now" resolutions in Redis. The TTL is
// injected by the composition root and entries are invalidated
// explicitly whenever a grant or membership mutation commits.
// Historical (asOf) resolutions never touch the cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached resolution for a member, if present.
func (c *Cache) Get(ctx context.Context, memberID int64) (*ResultSet, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, cacheKey(memberID)).Bytes()
	if err != nil {
		return nil, false
	}
	var decisions []Resolved
	if err := json.Unmarshal(data, &decisions); err != nil {
		return nil, false
	}
	rs := NewResultSet()
	for _, d := range decisions {
		rs.put(d)
	}
	return rs, true
}

// Set stores a resolution. Failures are ignored; the cache is an
// optimization, never a source of truth.
func (c *Cache) Set(ctx context.Context, memberID int64, rs *ResultSet) {
	if c == nil || c.client == nil || rs == nil {
		return
	}
	data, err := json.Marshal(rs.Permissions())
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(memberID), data, c.ttl).Err()
}

// Invalidate drops the cached resolution for a member.
func (c *Cache) Invalidate(ctx context.Context, memberID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(memberID)).Err()
}

func cacheKey(memberID int64) string {
	return "rsop:" + strconv.FormatInt(memberID, 10)
}
