// Package names resolves EVE entity ids (characters, corporations,
// alliances, types) to display names, with an explicitly owned,
// bounded cache in front of the resolver. Nothing here is process
// global: construct a cache, pass it where it is needed.
package names

import (
	"context"
)

// Name is one resolved entity.
type Name struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Resolver turns ids into names. Implementations: ESIResolver (the
// upstream service), Cache and RedisCache (caching wrappers).
type Resolver interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]Name, error)
}
