package mediastore

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Statistics is an aggregate snapshot of one entity namespace
type Statistics struct {
	TotalCount   int64            `json:"total_count"`
	TotalSize    int64            `json:"total_size"`
	StatusCounts map[string]int64 `json:"status_counts"`
	FormatCounts map[string]int64 `json:"format_counts"`
	GeneratedAt  string           `json:"generated_at"`
}

// knownStatuses are the transcription statuses counted in a snapshot
var knownStatuses = []TranscriptionStatus{
	TranscriptionNone,
	TranscriptionStarted,
	TranscriptionEnded,
	TranscriptionError,
}

// GetStatistics returns the aggregate snapshot for this entity: running
// totals from the counter hash plus per-status and per-format cardinalities,
// stamped with its rebuild time.
//
// Snapshots are cached with the stats TTL, which is shorter than result
// caching: statistics are read often but tolerate slightly staler data.
// On backend failure the read discipline applies and an empty snapshot is
// returned.
func (s *RecordStore) GetStatistics(ctx context.Context) (*Statistics, error) {
	cacheKey := s.keys.Cache("stats")

	var stats *Statistics
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		blob, err := client.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached Statistics
			if jsonErr := json.Unmarshal([]byte(blob), &cached); jsonErr == nil {
				s.metrics.Increment(MetricCacheHits, "entity", s.keys.Entity, "operation", "stats")
				stats = &cached
				return nil
			}
		} else if err != redis.Nil {
			return err
		}
		s.metrics.Increment(MetricCacheMisses, "entity", s.keys.Entity, "operation", "stats")

		st, err := s.buildStatistics(ctx, client)
		if err != nil {
			return err
		}

		if blob, err := json.Marshal(st); err == nil {
			if err := client.Set(ctx, cacheKey, blob, s.statsTTL).Err(); err != nil {
				s.logger.Warn("stats cache write failed", "entity", s.keys.Entity, "error", err)
			}
		}
		s.metrics.Increment(MetricStatsRebuild)
		stats = st
		return nil
	})

	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
		s.metrics.Increment(MetricStatsError)
		s.logger.Error("statistics failed", "entity", s.keys.Entity, "error", err)
		return s.emptyStatistics(), nil
	}
	return stats, nil
}

// buildStatistics assembles a fresh snapshot from the live structures
func (s *RecordStore) buildStatistics(ctx context.Context, client *redis.Client) (*Statistics, error) {
	st := s.emptyStatistics()

	counters, err := client.HGetAll(ctx, s.keys.Stats()).Result()
	if err != nil {
		return nil, err
	}
	st.TotalCount = parseCounter(counters[counterTotalCount])
	st.TotalSize = parseCounter(counters[counterTotalSize])

	for _, status := range knownStatuses {
		n, err := client.SCard(ctx, s.keys.StatusIndex(StatusKindTranscription, string(status))).Result()
		if err != nil {
			return nil, err
		}
		st.StatusCounts[string(status)] = n
	}

	formatKeys, err := scanKeys(ctx, client, s.keys.FormatIndexPattern())
	if err != nil {
		return nil, err
	}
	prefix := s.keys.FormatIndex("")
	for _, key := range formatKeys {
		value := strings.TrimPrefix(key, prefix)
		if value == "" {
			continue
		}
		n, err := client.SCard(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		st.FormatCounts[value] = n
	}

	st.GeneratedAt = formatTimestamp(s.now())
	return st, nil
}

func (s *RecordStore) emptyStatistics() *Statistics {
	return &Statistics{
		StatusCounts: make(map[string]int64),
		FormatCounts: make(map[string]int64),
	}
}

// parseCounter parses a counter hash value, degrading to 0 on bad input
func parseCounter(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
