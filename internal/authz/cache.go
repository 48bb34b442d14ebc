package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "authz:version"

// Cache memoizes resolved permission sets in Redis under a global
// version. Any mutation that can change a principal's effective set
// (group edit, membership change, direct grant update) must Bump the
// version, which orphans every cached entry at once. Resolution is
// therefore never stale across an invalidation, only across the TTL
// when nothing changed.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client degrades to
// pass-through resolution.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// Bump invalidates every cached permission set by incrementing the
// global version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// Resolve returns the cached effective set for a principal, populating
// it through the loader on miss. Concurrent resolves of the same
// principal at the same version collapse into one loader call.
func (c *Cache) Resolve(ctx context.Context, principalID int64, loader func(context.Context) (PermissionSet, error)) (PermissionSet, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		// Cache trouble must not block authorization decisions.
		return loader(ctx)
	}
	key := buildKey(principalID, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return decodeSet(payload)
	}
	if err != redis.Nil {
		return loader(ctx)
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		set, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(set.Patterns())
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, fmt.Errorf("authz: cache set: %w", err)
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(PermissionSet), nil
}

func buildKey(principalID, version int64) string {
	return strings.Join([]string{"authz", "resolved", strconv.FormatInt(principalID, 10), strconv.FormatInt(version, 10)}, ":")
}

func decodeSet(payload []byte) (PermissionSet, error) {
	var patterns []string
	if err := json.Unmarshal(payload, &patterns); err != nil {
		return nil, fmt.Errorf("authz: cache decode: %w", err)
	}
	return NewPermissionSet(patterns...), nil
}
