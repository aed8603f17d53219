package config

import (
	"os"
	"strings"
	"time"
)

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDispatcherEnabled starts the in-process outbox dispatcher.
//
// Set via env:
// - OUTBOX_DISPATCHER_ENABLED=true (default true)
func OutboxDispatcherEnabled() bool {
	return boolFromEnv("OUTBOX_DISPATCHER_ENABLED", true)
}

// RedisEnabled connects to redis for the price cache and job locks.
// Without it every helper in redisDb.go is a no-op.
//
// Set via env:
// - REDIS_ENABLED=false (default true)
func RedisEnabled() bool {
	return boolFromEnv("REDIS_ENABLED", true)
}

// PriceCacheTTL is how long a resolved price tier stays cached.
//
// Set via env:
// - PRICE_CACHE_TTL_SECONDS (default 3600)
func PriceCacheTTL() time.Duration {
	return time.Duration(intFromEnv("PRICE_CACHE_TTL_SECONDS", 3600)) * time.Second
}

// OutboxBatchSize is the number of outbox rows claimed per dispatch round.
func OutboxBatchSize() int {
	return intFromEnv("OUTBOX_BATCH_SIZE", 50)
}
