package mediastore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// SortField names an orderable dimension of the catalog
type SortField string

const (
	SortCreated  SortField = "created"
	SortModified SortField = "modified"
	SortFilesize SortField = "filesize"
	SortTitle    SortField = "title"
)

func (f SortField) valid() bool {
	switch f {
	case SortCreated, SortModified, SortFilesize, SortTitle:
		return true
	}
	return false
}

// StatusKindTranscription is the status dimension maintained by the engine
const StatusKindTranscription = "transcription"

// Aggregate counter hash fields
const (
	counterTotalCount = "total_count"
	counterTotalSize  = "total_size"
)

// fetchConcurrency bounds parallel canonical-hash fetches on read paths
const fetchConcurrency = 8

// errAbsent aborts a mutation batch when the target record does not exist.
// Absence is a normal return value at the public surface, never an error.
var errAbsent = errors.New("record absent")

// RecordStore is the secondary-indexing and query engine for one entity
// namespace (e.g. "audio" or "video"). It owns the canonical record hashes,
// the derived membership indexes, the sorted structures, the aggregate
// counters and the query cache for that namespace.
//
// Every logical write is submitted as one atomic MULTI/EXEC batch, so
// readers never observe a record whose indexes disagree with its canonical
// hash. Concurrent writes to the same id are last-writer-wins at the batch
// level; the engine provides no compare-and-swap protection.
//
// Error discipline: mutating operations propagate unexpected backend errors;
// read and search operations log them and return a safe empty result.
// ErrUnavailable (circuit breaker open) and validation errors always
// propagate.
type RecordStore struct {
	sup     *ConnectionSupervisor
	keys    KeySpace
	logger  Logger
	metrics Metrics
	now     func() time.Time

	resultTTL time.Duration
	emptyTTL  time.Duration
	statsTTL  time.Duration
}

// NewRecordStore creates a record store for one entity namespace with no-op
// logger and metrics.
func NewRecordStore(sup *ConnectionSupervisor, entity string) *RecordStore {
	return NewRecordStoreWithObservability(sup, entity, &NoOpLogger{}, &NoOpMetrics{})
}

// NewRecordStoreWithObservability creates a record store with logging and metrics
func NewRecordStoreWithObservability(sup *ConnectionSupervisor, entity string, logger Logger, metrics Metrics) *RecordStore {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &RecordStore{
		sup:       sup,
		keys:      KeySpace{Entity: entity},
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		resultTTL: DefaultResultTTL,
		emptyTTL:  DefaultEmptyResultTTL,
		statsTTL:  DefaultStatsTTL,
	}
}

// WithClock overrides the time source (tests)
func (s *RecordStore) WithClock(fn func() time.Time) *RecordStore {
	s.now = fn
	return s
}

// WithCacheTTLs overrides the query cache TTLs
func (s *RecordStore) WithCacheTTLs(result, empty, stats time.Duration) *RecordStore {
	s.resultTTL = result
	s.emptyTTL = empty
	s.statsTTL = stats
	return s
}

// Entity returns the entity namespace this store owns
func (s *RecordStore) Entity() string {
	return s.keys.Entity
}

// Keys returns the key layout for this store's namespace
func (s *RecordStore) Keys() KeySpace {
	return s.keys
}

// Create writes a new record and all of its derived structures in one
// atomic batch: canonical hash, keyword/status/format/date memberships,
// the four sorted structures, aggregate counters, and cache invalidation.
//
// The id is caller-supplied and must be non-empty. Missing created/modified
// stamps default to now; an empty keyword list is derived from the title;
// an empty transcription status defaults to "none". Returns the id.
func (s *RecordStore) Create(ctx context.Context, rec *Record) (string, error) {
	start := time.Now()

	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return "", WithContext(ErrValidation, map[string]interface{}{
			"operation": "create",
			"reason":    "record id is required",
		})
	}

	r := rec.Clone()
	now := s.now()
	if r.CreatedDate == "" {
		r.CreatedDate = formatTimestamp(now)
	}
	if r.ModifiedDate == "" {
		r.ModifiedDate = formatTimestamp(now)
	}
	if r.TranscriptionStatus == "" {
		r.TranscriptionStatus = TranscriptionNone
	}
	if len(r.Keywords) == 0 && r.Title != "" {
		r.Keywords = DeriveKeywords(r.Title)
	}

	err := s.sup.WithBatch(ctx, true, func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error {
		stale, err := s.staleCacheKeys(ctx, client)
		if err != nil {
			return err
		}

		pipe.HSet(ctx, s.keys.Record(r.ID), r.toHash())
		s.queueDerivedStructures(ctx, pipe, r, now)
		pipe.HIncrBy(ctx, s.keys.Stats(), counterTotalCount, 1)
		pipe.HIncrBy(ctx, s.keys.Stats(), counterTotalSize, r.FileSize)
		s.queueInvalidation(ctx, pipe, stale)
		return nil
	})

	s.metrics.Timing(MetricCreateDuration, time.Since(start))
	if err != nil {
		s.metrics.Increment(MetricCreateError)
		s.logger.Error("create failed", "entity", s.keys.Entity, "id", r.ID, "error", err)
		return "", err
	}

	s.metrics.Increment(MetricCreateSuccess)
	s.logger.Debug("record created", "entity", s.keys.Entity, "id", r.ID)
	return r.ID, nil
}

// Get reads one record by id. A missing record is (nil, nil), not an error.
// Backend errors other than ErrUnavailable degrade to (nil, nil) after
// logging, per the read discipline.
func (s *RecordStore) Get(ctx context.Context, id string) (*Record, error) {
	start := time.Now()

	var rec *Record
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		fields, err := client.HGetAll(ctx, s.keys.Record(id)).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		rec = recordFromHash(fields)
		return nil
	})

	s.metrics.Timing(MetricGetDuration, time.Since(start))
	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
		s.metrics.Increment(MetricGetError)
		s.logger.Error("get failed", "entity", s.keys.Entity, "id", id, "error", err)
		return nil, nil
	}

	s.metrics.Increment(MetricGetSuccess)
	return rec, nil
}

// RecordPatch is a partial update. Nil pointer fields are left untouched;
// a non-nil Keywords slice replaces the keyword list (empty clears it);
// Extra entries are merged over the existing passthrough fields.
type RecordPatch struct {
	Title             *string
	Keywords          []string
	Format            *string
	FileSize          *int64
	TranscriptionPath *string
	Extra             map[string]string
}

// Update merges a patch over the current record and refreshes exactly the
// derived structures whose source fields changed: keyword memberships are
// recomputed as a set difference, format membership moves only on change,
// and only the affected sorted entries are rewritten. The modified stamp
// and its sorted entry are always refreshed. Returns false if the record
// does not exist.
func (s *RecordStore) Update(ctx context.Context, id string, patch RecordPatch) (bool, error) {
	start := time.Now()
	now := s.now()

	err := s.sup.WithBatch(ctx, true, func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error {
		fields, err := client.HGetAll(ctx, s.keys.Record(id)).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return errAbsent
		}
		cur := recordFromHash(fields)

		next := cur.Clone()
		titleChanged := false
		if patch.Title != nil && *patch.Title != cur.Title {
			next.Title = *patch.Title
			titleChanged = true
		}
		formatChanged := false
		if patch.Format != nil && *patch.Format != cur.Format {
			next.Format = *patch.Format
			formatChanged = true
		}
		sizeChanged := false
		if patch.FileSize != nil && *patch.FileSize != cur.FileSize {
			next.FileSize = *patch.FileSize
			sizeChanged = true
		}
		if patch.TranscriptionPath != nil {
			next.TranscriptionPath = *patch.TranscriptionPath
		}
		if patch.Extra != nil {
			if next.Extra == nil {
				next.Extra = make(map[string]string, len(patch.Extra))
			}
			for k, v := range patch.Extra {
				next.Extra[k] = v
			}
		}
		switch {
		case patch.Keywords != nil:
			next.Keywords = append([]string(nil), patch.Keywords...)
		case titleChanged:
			// Keywords are derived from the title at write time
			next.Keywords = DeriveKeywords(next.Title)
		}
		next.ModifiedDate = formatTimestamp(now)

		stale, err := s.staleCacheKeys(ctx, client)
		if err != nil {
			return err
		}

		curHash := cur.toHash()
		nextHash := next.toHash()
		pipe.HSet(ctx, s.keys.Record(id), nextHash)
		for field := range curHash {
			if _, ok := nextHash[field]; !ok {
				pipe.HDel(ctx, s.keys.Record(id), field)
			}
		}

		added, removed := diffStrings(cur.Keywords, next.Keywords)
		for _, tok := range removed {
			pipe.SRem(ctx, s.keys.KeywordIndex(NormalizeKeyword(tok)), id)
		}
		for _, tok := range added {
			pipe.SAdd(ctx, s.keys.KeywordIndex(NormalizeKeyword(tok)), id)
		}

		if formatChanged {
			if cur.Format != "" {
				pipe.SRem(ctx, s.keys.FormatIndex(cur.Format), id)
			}
			if next.Format != "" {
				pipe.SAdd(ctx, s.keys.FormatIndex(next.Format), id)
			}
		}

		pipe.ZAdd(ctx, s.keys.Sorted(SortModified), redis.Z{
			Score:  timestampScore(next.ModifiedDate, now),
			Member: id,
		})
		if sizeChanged {
			pipe.ZAdd(ctx, s.keys.Sorted(SortFilesize), redis.Z{
				Score:  float64(next.FileSize),
				Member: id,
			})
			// Keep the running size total honest across size rewrites
			pipe.HIncrBy(ctx, s.keys.Stats(), counterTotalSize, next.FileSize-cur.FileSize)
		}
		if titleChanged {
			pipe.ZAdd(ctx, s.keys.Sorted(SortTitle), redis.Z{
				Score:  titleScore(next.Title),
				Member: id,
			})
		}

		s.queueInvalidation(ctx, pipe, stale)
		return nil
	})

	s.metrics.Timing(MetricUpdateDuration, time.Since(start))
	if errors.Is(err, errAbsent) {
		return false, nil
	}
	if err != nil {
		s.metrics.Increment(MetricUpdateError)
		s.logger.Error("update failed", "entity", s.keys.Entity, "id", id, "error", err)
		return false, err
	}

	s.metrics.Increment(MetricUpdateSuccess)
	return true, nil
}

// Delete removes the canonical hash, every index membership derived from
// the record's last known field values, every sorted entry, and the
// record's contribution to the aggregate counters, in one atomic batch.
// Deleting an absent id returns false with no side effects.
func (s *RecordStore) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()

	err := s.sup.WithBatch(ctx, true, func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error {
		fields, err := client.HGetAll(ctx, s.keys.Record(id)).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return errAbsent
		}
		cur := recordFromHash(fields)

		stale, err := s.staleCacheKeys(ctx, client)
		if err != nil {
			return err
		}

		pipe.Del(ctx, s.keys.Record(id))
		for _, tok := range cur.Keywords {
			if t := NormalizeKeyword(tok); t != "" {
				pipe.SRem(ctx, s.keys.KeywordIndex(t), id)
			}
		}
		if cur.TranscriptionStatus != "" {
			pipe.SRem(ctx, s.keys.StatusIndex(StatusKindTranscription, string(cur.TranscriptionStatus)), id)
		}
		if cur.Format != "" {
			pipe.SRem(ctx, s.keys.FormatIndex(cur.Format), id)
		}
		if bucket, ok := dateBucket(cur.CreatedDate); ok {
			pipe.SRem(ctx, s.keys.DateIndex(bucket), id)
		}
		for _, field := range []SortField{SortCreated, SortModified, SortFilesize, SortTitle} {
			pipe.ZRem(ctx, s.keys.Sorted(field), id)
		}
		pipe.HIncrBy(ctx, s.keys.Stats(), counterTotalCount, -1)
		pipe.HIncrBy(ctx, s.keys.Stats(), counterTotalSize, -cur.FileSize)
		s.queueInvalidation(ctx, pipe, stale)
		return nil
	})

	s.metrics.Timing(MetricDeleteDuration, time.Since(start))
	if errors.Is(err, errAbsent) {
		return false, nil
	}
	if err != nil {
		s.metrics.Increment(MetricDeleteError)
		s.logger.Error("delete failed", "entity", s.keys.Entity, "id", id, "error", err)
		return false, err
	}

	s.metrics.Increment(MetricDeleteSuccess)
	s.logger.Debug("record deleted", "entity", s.keys.Entity, "id", id)
	return true, nil
}

// SearchByKeyword returns records whose keyword set contains token, newest
// modified first. Results are cached; an empty result is cached with the
// short empty-result TTL since it is likely to change soon.
func (s *RecordStore) SearchByKeyword(ctx context.Context, token string, limit int) ([]*Record, error) {
	start := time.Now()

	tok := NormalizeKeyword(token)
	if tok == "" {
		return []*Record{}, nil
	}
	limitPart := "all"
	if limit > 0 {
		limitPart = strconv.Itoa(limit)
	}
	cacheKey := s.keys.Cache("search", tok, limitPart)

	var out []*Record
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		if cached, ok := s.cachedRecords(ctx, client, cacheKey); ok {
			s.metrics.Increment(MetricCacheHits, "entity", s.keys.Entity, "operation", "search")
			out = cached
			return nil
		}
		s.metrics.Increment(MetricCacheMisses, "entity", s.keys.Entity, "operation", "search")

		ids, err := client.SMembers(ctx, s.keys.KeywordIndex(tok)).Result()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			out = []*Record{}
			s.cacheRecords(ctx, client, cacheKey, out, s.emptyTTL)
			return nil
		}

		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}
		sortByModifiedDesc(records)
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
		s.cacheRecords(ctx, client, cacheKey, records, s.resultTTL)
		out = records
		return nil
	})

	s.metrics.Timing(MetricSearchDuration, time.Since(start), "entity", s.keys.Entity)
	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
		s.metrics.Increment(MetricSearchError)
		s.logger.Error("keyword search failed", "entity", s.keys.Entity, "token", tok, "error", err)
		return []*Record{}, nil
	}

	s.metrics.Histogram(MetricSearchResults, float64(len(out)), "entity", s.keys.Entity)
	return out, nil
}

// ListAll returns records ordered by one of the sorted structures.
// created, modified and filesize list newest/largest first; title lists by
// its stable hash-derived score ascending. Only the unlimited query is
// cached: limited variants are cheap and would bloat the cache namespace.
func (s *RecordStore) ListAll(ctx context.Context, sortBy SortField, limit int) ([]*Record, error) {
	start := time.Now()

	if !sortBy.valid() {
		return nil, WithContext(ErrValidation, map[string]interface{}{
			"operation": "list_all",
			"sort_by":   string(sortBy),
			"reason":    "unknown sort field",
		})
	}

	cacheable := limit <= 0
	cacheKey := s.keys.Cache("list", string(sortBy), "all")

	var out []*Record
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		if cacheable {
			if cached, ok := s.cachedRecords(ctx, client, cacheKey); ok {
				s.metrics.Increment(MetricCacheHits, "entity", s.keys.Entity, "operation", "list")
				out = cached
				return nil
			}
			s.metrics.Increment(MetricCacheMisses, "entity", s.keys.Entity, "operation", "list")
		}

		stop := int64(-1)
		if limit > 0 {
			stop = int64(limit) - 1
		}
		var ids []string
		var err error
		if sortBy == SortTitle {
			ids, err = client.ZRange(ctx, s.keys.Sorted(sortBy), 0, stop).Result()
		} else {
			ids, err = client.ZRevRange(ctx, s.keys.Sorted(sortBy), 0, stop).Result()
		}
		if err != nil {
			return err
		}

		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}
		if cacheable {
			s.cacheRecords(ctx, client, cacheKey, records, s.resultTTL)
		}
		out = records
		return nil
	})

	s.metrics.Timing(MetricListDuration, time.Since(start), "entity", s.keys.Entity)
	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
		s.metrics.Increment(MetricListError)
		s.logger.Error("list failed", "entity", s.keys.Entity, "sort_by", string(sortBy), "error", err)
		return []*Record{}, nil
	}
	return out, nil
}

// ListByStatus returns records in one status membership set, newest
// modified first. Not cached. An empty kind defaults to the transcription
// dimension.
func (s *RecordStore) ListByStatus(ctx context.Context, kind, value string) ([]*Record, error) {
	start := time.Now()

	if kind == "" {
		kind = StatusKindTranscription
	}

	var out []*Record
	err := s.sup.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		ids, err := client.SMembers(ctx, s.keys.StatusIndex(kind, value)).Result()
		if err != nil {
			return err
		}
		records, err := s.fetchRecords(ctx, client, ids)
		if err != nil {
			return err
		}
		sortByModifiedDesc(records)
		out = records
		return nil
	})

	s.metrics.Timing(MetricListDuration, time.Since(start), "entity", s.keys.Entity)
	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
		s.metrics.Increment(MetricListError)
		s.logger.Error("list by status failed", "entity", s.keys.Entity, "kind", kind, "value", value, "error", err)
		return []*Record{}, nil
	}
	return out, nil
}

// SetTranscriptionStatus moves a record to a new transcription status.
// Index membership moves from the old to the new status set only if the
// status actually changed; the canonical fields, the derived
// has_transcription flag, the modified stamp and the cache are refreshed in
// the same atomic batch. Returns false if the record does not exist.
func (s *RecordStore) SetTranscriptionStatus(ctx context.Context, id string, status TranscriptionStatus, path string) (bool, error) {
	start := time.Now()

	if !status.Valid() {
		return false, WithContext(ErrInvalidStatus, map[string]interface{}{
			"id":     id,
			"status": string(status),
		})
	}

	now := s.now()
	err := s.sup.WithBatch(ctx, true, func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error {
		fields, err := client.HGetAll(ctx, s.keys.Record(id)).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return errAbsent
		}
		cur := recordFromHash(fields)

		stale, err := s.staleCacheKeys(ctx, client)
		if err != nil {
			return err
		}

		stamp := formatTimestamp(now)
		update := map[string]interface{}{
			fieldTranscriptionStatus: string(status),
			fieldHasTranscription:    strconv.FormatBool(status == TranscriptionEnded),
			fieldModifiedDate:        stamp,
		}
		if path != "" {
			update[fieldTranscriptionPath] = path
		}
		pipe.HSet(ctx, s.keys.Record(id), update)

		if cur.TranscriptionStatus != status {
			if cur.TranscriptionStatus != "" {
				pipe.SRem(ctx, s.keys.StatusIndex(StatusKindTranscription, string(cur.TranscriptionStatus)), id)
			}
			pipe.SAdd(ctx, s.keys.StatusIndex(StatusKindTranscription, string(status)), id)
		}

		pipe.ZAdd(ctx, s.keys.Sorted(SortModified), redis.Z{
			Score:  timestampScore(stamp, now),
			Member: id,
		})
		s.queueInvalidation(ctx, pipe, stale)
		return nil
	})

	s.metrics.Timing(MetricUpdateDuration, time.Since(start))
	if errors.Is(err, errAbsent) {
		return false, nil
	}
	if err != nil {
		s.metrics.Increment(MetricUpdateError)
		s.logger.Error("set transcription status failed", "entity", s.keys.Entity, "id", id, "status", string(status), "error", err)
		return false, err
	}

	s.metrics.Increment(MetricUpdateSuccess)
	return true, nil
}

// queueDerivedStructures queues index memberships and sorted entries for a
// record onto pipe. The canonical hash and counters are the caller's job.
func (s *RecordStore) queueDerivedStructures(ctx context.Context, pipe redis.Pipeliner, r *Record, now time.Time) {
	for _, tok := range r.Keywords {
		if t := NormalizeKeyword(tok); t != "" {
			pipe.SAdd(ctx, s.keys.KeywordIndex(t), r.ID)
		}
	}
	if r.TranscriptionStatus != "" {
		pipe.SAdd(ctx, s.keys.StatusIndex(StatusKindTranscription, string(r.TranscriptionStatus)), r.ID)
	}
	if r.Format != "" {
		pipe.SAdd(ctx, s.keys.FormatIndex(r.Format), r.ID)
	}
	if bucket, ok := dateBucket(r.CreatedDate); ok {
		pipe.SAdd(ctx, s.keys.DateIndex(bucket), r.ID)
	}

	pipe.ZAdd(ctx, s.keys.Sorted(SortCreated), redis.Z{
		Score:  timestampScore(r.CreatedDate, now),
		Member: r.ID,
	})
	pipe.ZAdd(ctx, s.keys.Sorted(SortModified), redis.Z{
		Score:  timestampScore(r.ModifiedDate, now),
		Member: r.ID,
	})
	pipe.ZAdd(ctx, s.keys.Sorted(SortFilesize), redis.Z{
		Score:  float64(r.FileSize),
		Member: r.ID,
	})
	pipe.ZAdd(ctx, s.keys.Sorted(SortTitle), redis.Z{
		Score:  titleScore(r.Title),
		Member: r.ID,
	})
}

// queueInvalidation queues deletion of the scanned cache keys
func (s *RecordStore) queueInvalidation(ctx context.Context, pipe redis.Pipeliner, stale []string) {
	if len(stale) == 0 {
		return
	}
	pipe.Del(ctx, stale...)
	s.metrics.Increment(MetricCacheInvalidations, "entity", s.keys.Entity)
}

// fetchRecords batch-fetches canonical hashes in parallel, preserving the
// order of ids and dropping ids whose record vanished mid-flight.
func (s *RecordStore) fetchRecords(ctx context.Context, client *redis.Client, ids []string) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	slots := make([]*Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			fields, err := client.HGetAll(gctx, s.keys.Record(id)).Result()
			if err != nil {
				return err
			}
			if len(fields) > 0 {
				slots[i] = recordFromHash(fields)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(ids))
	for _, r := range slots {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// sortByModifiedDesc orders records newest modified first. String comparison
// on same-layout ISO-8601 stamps matches time order.
func sortByModifiedDesc(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ModifiedDate > records[j].ModifiedDate
	})
}

// diffStrings returns the tokens added by and removed from old -> new
func diffStrings(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, v := range old {
		oldSet[v] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, v := range new {
		newSet[v] = true
	}

	for _, v := range new {
		if !oldSet[v] {
			added = append(added, v)
		}
	}
	for _, v := range old {
		if !newSet[v] {
			removed = append(removed, v)
		}
	}
	return added, removed
}
