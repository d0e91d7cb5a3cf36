package mediastore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxReportedProblems caps the per-report problem detail list
const maxReportedProblems = 50

// AllRecords enumerates the entity namespace and returns every record's
// content. This is the verification hook for backup and validation
// collaborators comparing this store against an external source of truth,
// so unlike the query surface it propagates backend errors: an outage must
// not be mistaken for an empty catalog.
func (s *RecordStore) AllRecords(ctx context.Context) ([]*Record, error) {
	var out []*Record
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		ids, err := s.recordIDs(ctx, client)
		if err != nil {
			return err
		}
		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}
		out = records
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Gauge(MetricRecordsVerified, float64(len(out)), "entity", s.keys.Entity)
	return out, nil
}

// recordIDs scans for canonical hash keys, filtering out the derived
// structures sharing the namespace prefix.
func (s *RecordStore) recordIDs(ctx context.Context, client *redis.Client) ([]string, error) {
	keys, err := scanKeys(ctx, client, s.keys.RecordPattern())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id := s.keys.RecordID(key); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// IndexVerifyReport summarizes drift between canonical records and the
// derived structures.
type IndexVerifyReport struct {
	Entity             string    `json:"entity"`
	RecordsChecked     int       `json:"records_checked"`
	MissingMemberships int       `json:"missing_memberships"`
	StaleMemberships   int       `json:"stale_memberships"`
	Problems           []string  `json:"problems,omitempty"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Drifted reports whether the verification found any inconsistency
func (r *IndexVerifyReport) Drifted() bool {
	return r.MissingMemberships > 0 || r.StaleMemberships > 0
}

// VerifyIndexes compares every canonical record against the derived
// membership sets and sorted structures, reporting memberships that should
// exist but don't (missing) and index members whose record is gone (stale).
// Read-only; use RebuildIndexes to repair.
func (s *RecordStore) VerifyIndexes(ctx context.Context) (*IndexVerifyReport, error) {
	report := &IndexVerifyReport{Entity: s.keys.Entity}

	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		ids, err := s.recordIDs(ctx, client)
		if err != nil {
			return err
		}
		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}

		// Reset on retry so a re-run doesn't double-count
		*report = IndexVerifyReport{Entity: s.keys.Entity, RecordsChecked: len(records)}
		existing := make(map[string]bool, len(records))
		for _, rec := range records {
			existing[rec.ID] = true
		}

		for _, rec := range records {
			for _, key := range s.expectedMemberships(rec) {
				ok, err := client.SIsMember(ctx, key, rec.ID).Result()
				if err != nil {
					return err
				}
				if !ok {
					report.addMissing(fmt.Sprintf("%s missing from %s", rec.ID, key))
				}
			}
			for _, field := range []SortField{SortCreated, SortModified, SortFilesize, SortTitle} {
				if err := client.ZScore(ctx, s.keys.Sorted(field), rec.ID).Err(); err == redis.Nil {
					report.addMissing(fmt.Sprintf("%s missing from %s", rec.ID, s.keys.Sorted(field)))
				} else if err != nil {
					return err
				}
			}
		}

		indexKeys, err := scanKeys(ctx, client, s.keys.Entity+":index:*")
		if err != nil {
			return err
		}
		for _, key := range indexKeys {
			members, err := client.SMembers(ctx, key).Result()
			if err != nil {
				return err
			}
			for _, id := range members {
				if !existing[id] {
					report.addStale(fmt.Sprintf("%s stale in %s", id, key))
				}
			}
		}

		report.GeneratedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Gauge(MetricIndexDrift, float64(report.MissingMemberships), "entity", s.keys.Entity, "kind", "missing")
	s.metrics.Gauge(MetricIndexDrift, float64(report.StaleMemberships), "entity", s.keys.Entity, "kind", "stale")
	if report.Drifted() {
		s.logger.Warn("index drift detected",
			"entity", s.keys.Entity,
			"missing", report.MissingMemberships,
			"stale", report.StaleMemberships,
		)
	}
	return report, nil
}

func (r *IndexVerifyReport) addMissing(detail string) {
	r.MissingMemberships++
	if len(r.Problems) < maxReportedProblems {
		r.Problems = append(r.Problems, detail)
	}
}

func (r *IndexVerifyReport) addStale(detail string) {
	r.StaleMemberships++
	if len(r.Problems) < maxReportedProblems {
		r.Problems = append(r.Problems, detail)
	}
}

// expectedMemberships lists the set keys a record should belong to
func (s *RecordStore) expectedMemberships(rec *Record) []string {
	var keys []string
	for _, tok := range rec.Keywords {
		if t := NormalizeKeyword(tok); t != "" {
			keys = append(keys, s.keys.KeywordIndex(t))
		}
	}
	if rec.TranscriptionStatus != "" {
		keys = append(keys, s.keys.StatusIndex(StatusKindTranscription, string(rec.TranscriptionStatus)))
	}
	if rec.Format != "" {
		keys = append(keys, s.keys.FormatIndex(rec.Format))
	}
	if bucket, ok := dateBucket(rec.CreatedDate); ok {
		keys = append(keys, s.keys.DateIndex(bucket))
	}
	return keys
}

// RebuildIndexes recomputes every derived structure from the canonical
// hashes: all index sets, sorted structures and aggregate counters are
// dropped and rebuilt in one atomic batch, and the query cache is
// invalidated. Used after restores. Returns the number of records indexed.
func (s *RecordStore) RebuildIndexes(ctx context.Context) (int, error) {
	count := 0
	now := s.now()

	err := s.sup.WithBatch(ctx, true, func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error {
		ids, err := s.recordIDs(ctx, client)
		if err != nil {
			return err
		}
		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}

		derived, err := scanKeys(ctx, client, s.keys.Entity+":index:*")
		if err != nil {
			return err
		}
		stale, err := s.staleCacheKeys(ctx, client)
		if err != nil {
			return err
		}

		for _, field := range []SortField{SortCreated, SortModified, SortFilesize, SortTitle} {
			derived = append(derived, s.keys.Sorted(field))
		}
		derived = append(derived, s.keys.Stats())
		pipe.Del(ctx, derived...)

		var totalSize int64
		for _, rec := range records {
			s.queueDerivedStructures(ctx, pipe, rec, now)
			totalSize += rec.FileSize
		}
		pipe.HSet(ctx, s.keys.Stats(), map[string]interface{}{
			counterTotalCount: int64(len(records)),
			counterTotalSize:  totalSize,
		})
		s.queueInvalidation(ctx, pipe, stale)

		count = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.Increment(MetricIndexRebuilds)
	s.logger.Info("indexes rebuilt", "entity", s.keys.Entity, "records", count)
	return count, nil
}
