// Package mediastore provides a Redis-backed secondary-indexing and query
// engine for a media catalog: denormalized audio/video records with keyword
// search, filtered listing, multi-field sort, and a query-result cache that
// stays coherent with writes.
//
// # Overview
//
// Each entity namespace (e.g. "audio", "video") is owned by one RecordStore.
// A record lives in a canonical Redis hash; every write also maintains a set
// of derived structures in the same atomic MULTI/EXEC batch:
//
//   - Inverted keyword index (one set per token) for O(1) keyword search
//   - Status, format and YYYY-MM date-bucket membership sets
//   - Sorted structures for created/modified/filesize/title ordering
//   - An aggregate counter hash (total_count, total_size)
//   - Entity-wide query cache invalidation
//
// Readers therefore never observe a record whose indexes disagree with its
// canonical hash.
//
// # Quick Start
//
//	sup, err := mediastore.NewConnectionSupervisor(
//	    mediastore.RedisOptions(),
//	    mediastore.DefaultSupervisorConfig(),
//	    nil, nil,
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer sup.Close()
//
//	audio := mediastore.NewRecordStore(sup, "audio")
//	ctx := context.Background()
//
//	id, err := audio.Create(ctx, &mediastore.Record{
//	    ID:          mediastore.NewID(),
//	    Title:       "Redis Tutorial",
//	    Format:      "mp3",
//	    FileSize:    4 << 20,
//	    CreatedDate: "2024-01-01T00:00:00",
//	})
//
//	hits, err := audio.SearchByKeyword(ctx, "redis", 10)
//	newest, err := audio.ListAll(ctx, mediastore.SortModified, 50)
//
// # Connection Supervision
//
// The ConnectionSupervisor hides pooling and transient-failure handling.
// Every backend call runs inside a circuit breaker (3 consecutive failures
// open the circuit, it half-opens after 30s, and 2 consecutive successes
// close it again) and a bounded retry envelope with capped exponential
// backoff. Connection-class errors are retried with one reconnect between
// attempts; data errors propagate immediately. QuickProbe offers a cached,
// rate-limited sub-second liveness signal.
//
// # Caching
//
// Search and unlimited list results are cached as serialized blobs with a
// TTL; statistics get a shorter TTL and empty search results a shorter one
// still. Any mutation deletes the entity's whole cache namespace inside its
// atomic batch. Over-invalidation is safe; under-invalidation is not.
//
// # Error Discipline
//
// Mutating operations propagate unexpected backend errors: silent data loss
// on writes is unacceptable. Read and search operations log unexpected
// errors and return a safe empty result. ErrUnavailable (circuit open) and
// validation errors always propagate. Record absence is a return value
// (nil record, false), never an error. Malformed stored data never fails a
// read: bad dates degrade to now, bad sizes to zero, bad keyword blobs to
// an empty list.
//
// # Known Properties
//
// Concurrent writes to the same id are last-writer-wins at the batch level;
// there is no compare-and-swap protection. Title ordering uses a stable
// hash-derived score, not alphabetical order. Scalar passthrough fields
// round-trip as strings.
//
// # Observability
//
// Logging goes through the Logger interface (ZapLogger adapts
// go.uber.org/zap); metrics go through the Metrics interface
// (PrometheusMetrics adapts prometheus/client_golang):
//
//	logger, _ := mediastore.NewProductionZapLogger()
//	metrics := mediastore.NewPrometheusMetrics(prometheus.NewRegistry())
//	store := mediastore.NewRecordStoreWithObservability(sup, "video", logger, metrics)
//
// # Operational Hooks
//
// Backup and validation collaborators consume AllRecords (full-content
// enumeration for external comparison), VerifyIndexes (read-only drift
// report) and RebuildIndexes (drop and recompute every derived structure
// from the canonical hashes).
package mediastore
