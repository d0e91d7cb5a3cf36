package mediastore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Query cache TTLs. Empty search results are cached briefly since "no data
// yet" is the state most likely to change soon; statistics tolerate a little
// staleness and get a middle-ground TTL.
const (
	DefaultResultTTL      = 5 * time.Minute
	DefaultEmptyResultTTL = time.Minute
	DefaultStatsTTL       = 2 * time.Minute
)

// cachedRecords returns a cached result list for key, or (nil, false) on a
// miss. A malformed cached blob is treated as a miss, never an error.
func (s *RecordStore) cachedRecords(ctx context.Context, client *redis.Client, key string) ([]*Record, bool) {
	blob, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}

	var records []*Record
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		s.logger.Warn("discarding malformed cache entry", "key", key, "error", err)
		return nil, false
	}
	if records == nil {
		records = []*Record{}
	}
	return records, true
}

// cacheRecords stores a result list under key with the given TTL.
// Cache writes are best-effort: a failure degrades to uncached reads.
func (s *RecordStore) cacheRecords(ctx context.Context, client *redis.Client, key string, records []*Record, ttl time.Duration) {
	blob, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := client.Set(ctx, key, blob, ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// staleCacheKeys enumerates every cache entry in the entity namespace.
// Mutations delete these inside their atomic batch: over-invalidation is
// safe, under-invalidation is not. This is O(cache size) per write; a
// versioned-namespace epoch key would make it O(1) if it ever shows up in
// profiles.
func (s *RecordStore) staleCacheKeys(ctx context.Context, client *redis.Client) ([]string, error) {
	return scanKeys(ctx, client, s.keys.CachePattern())
}

// scanKeys collects all keys matching pattern via cursor iteration
func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
