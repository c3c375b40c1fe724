package names

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNameTTL is how long resolved names stay in redis. Entity names
// rarely change, so a long TTL is fine.
const DefaultNameTTL = 7 * 24 * time.Hour

// RedisCache is a shared cache in front of a Resolver, for deployments
// running several daemons against the same redis. Redis failures are
// logged and treated as misses, never surfaced to the caller.
type RedisCache struct {
	client   *redis.Client
	resolver Resolver
	ttl      time.Duration
}

func NewRedisCache(client *redis.Client, resolver Resolver, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	return &RedisCache{client: client, resolver: resolver, ttl: ttl}
}

func (c *RedisCache) makeKey(id int64) string {
	return fmt.Sprintf("zkbinfo:name:%d", id)
}

func (c *RedisCache) Resolve(ctx context.Context, ids []int64) (map[int64]Name, error) {
	out := make(map[int64]Name, len(ids))
	missing := ids

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = c.makeKey(id)
		}
		values, err := c.client.MGet(ctx, keys...).Result()
		if err != nil {
			log.Printf("Failed to MGET name keys: %v", err)
		} else {
			missing = nil
			for i, val := range values {
				if val == nil {
					missing = append(missing, ids[i])
					continue
				}
				str, ok := val.(string)
				if !ok {
					missing = append(missing, ids[i])
					continue
				}
				var name Name
				if err := json.Unmarshal([]byte(str), &name); err != nil {
					log.Printf("Failed to unmarshal Name from key %s: %v", keys[i], err)
					missing = append(missing, ids[i])
					continue
				}
				out[ids[i]] = name
			}
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := c.resolver.Resolve(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range resolved {
		out[id] = name
		data, err := json.Marshal(name)
		if err != nil {
			log.Printf("Failed to marshal Name %d: %v", id, err)
			continue
		}
		if err := c.client.Set(ctx, c.makeKey(id), data, c.ttl).Err(); err != nil {
			log.Printf("Failed to SET key %s: %v", c.makeKey(id), err)
		}
	}
	return out, nil
}
