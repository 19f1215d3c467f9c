package services

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

const statusCacheKeyPrefix = "member_status:"

func statusCacheKey(fyLabel string) string {
	return statusCacheKeyPrefix + fyLabel
}

// invalidateStatusCache drops every cached projected member list. Any member
// or invoice mutation can change projections for several financial years at
// once (multi-year invoices), so all labels are dropped together.
func invalidateStatusCache(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		return
	}
	keys, err := rdb.Keys(ctx, statusCacheKeyPrefix+"*").Result()
	if err != nil {
		log.Printf("Error scanning status cache keys: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Error invalidating status cache: %v", err)
	}
}
