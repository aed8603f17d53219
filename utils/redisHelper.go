package utils

import (
	"context"
	"time"

	"github.com/bangunmart/fulfillment_backend/config"
)

/* Redis */

// GetCachedObject loads key into dest. Missing keys and a disabled redis both report false.
func GetCachedObject[T any](ctx context.Context, key string, dest *T) (bool, error) {
	return config.GetRedisObject(ctx, key, dest)
}

// StoreCachedObject stores obj under key and records key in groupKey's set,
// so ClearCacheGroup can drop every key of the group at once.
func StoreCachedObject(ctx context.Context, groupKey string, key string, obj any, ttl time.Duration) error {
	if err := config.SetRedisObject(ctx, key, obj, ttl); err != nil {
		return err
	}
	return config.AddRedisSet(ctx, groupKey, key)
}

// ClearCacheGroup removes every key recorded in groupKey, then the set itself.
func ClearCacheGroup(ctx context.Context, groupKey string) error {
	keys, err := config.GetRedisSetMembers(ctx, groupKey)
	if err != nil {
		return err
	}
	return config.RemoveRedisKey(ctx, append(keys, groupKey)...)
}
