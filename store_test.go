package mediastore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestStore wires a store against an in-process miniredis with a fixed,
// settable clock. The supervisor uses short backoffs so failure-path tests
// stay fast.
func newTestStore(t *testing.T) (*RecordStore, *miniredis.Miniredis, func(time.Time)) {
	t.Helper()

	mr := miniredis.RunT(t)
	sup := newTestSupervisor(t, mr.Addr())

	current := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	store := NewRecordStore(sup, "audio").WithClock(func() time.Time { return current })
	return store, mr, func(tm time.Time) { current = tm }
}

func newTestSupervisor(t *testing.T, addr string) *ConnectionSupervisor {
	t.Helper()

	sup, err := NewConnectionSupervisor(
		&redis.Options{Addr: addr, DialTimeout: time.Second},
		SupervisorConfig{InitialBackoff: 5 * time.Millisecond},
		nil, nil,
	)
	if err != nil {
		t.Fatalf("NewConnectionSupervisor: %v", err)
	}
	t.Cleanup(func() { sup.Close() })
	return sup
}

// rawClient gives tests direct backend access for setup and assertions
func rawClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func mustCreate(t *testing.T, store *RecordStore, rec *Record) {
	t.Helper()
	if _, err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create(%s): %v", rec.ID, err)
	}
}

func TestCreate_RoundTrip(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &Record{
		ID:       "v1",
		Title:    "Redis Tutorial",
		Format:   "mp3",
		FileSize: 2048,
		Extra:    map[string]string{"uploader": "alice"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "v1" {
		t.Errorf("expected id v1, got %s", id)
	}

	rec, err := store.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.Title != "Redis Tutorial" || rec.Format != "mp3" || rec.FileSize != 2048 {
		t.Errorf("round trip mismatch: %+v", rec)
	}
	if rec.Extra["uploader"] != "alice" {
		t.Errorf("expected extra field to round-trip, got %v", rec.Extra)
	}
	if rec.TranscriptionStatus != TranscriptionNone {
		t.Errorf("expected default status none, got %s", rec.TranscriptionStatus)
	}
	if len(rec.Keywords) != 2 || rec.Keywords[0] != "redis" || rec.Keywords[1] != "tutorial" {
		t.Errorf("expected keywords derived from title, got %v", rec.Keywords)
	}

	// Derived structures written in the same batch
	raw := rawClient(t, mr)
	for _, key := range []string{
		"audio:index:keyword:redis",
		"audio:index:keyword:tutorial",
		"audio:index:format:mp3",
		"audio:index:transcription:none",
	} {
		ok, err := raw.SIsMember(ctx, key, "v1").Result()
		if err != nil || !ok {
			t.Errorf("expected v1 in %s (ok=%v err=%v)", key, ok, err)
		}
	}
	for _, field := range []SortField{SortCreated, SortModified, SortFilesize, SortTitle} {
		if err := raw.ZScore(ctx, "audio:sorted:"+string(field), "v1").Err(); err != nil {
			t.Errorf("expected v1 in sorted:%s: %v", field, err)
		}
	}
	if got := mr.HGet("audio:stats", "total_count"); got != "1" {
		t.Errorf("expected total_count 1, got %q", got)
	}
	if got := mr.HGet("audio:stats", "total_size"); got != "2048" {
		t.Errorf("expected total_size 2048, got %q", got)
	}
}

func TestCreate_RequiresID(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Create(context.Background(), &Record{Title: "no id"})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = store.Create(context.Background(), &Record{ID: "   "})
	if !IsValidation(err) {
		t.Fatalf("expected validation error for blank id, got %v", err)
	}
}

func TestCreate_DefaultsDates(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Old News"})

	rec, err := store.Get(ctx, "v1")
	if err != nil || rec == nil {
		t.Fatalf("Get: rec=%v err=%v", rec, err)
	}
	if rec.CreatedDate != "2024-03-15T10:00:00" {
		t.Errorf("expected created stamp from clock, got %q", rec.CreatedDate)
	}
	if rec.ModifiedDate != rec.CreatedDate {
		t.Errorf("expected modified == created on create, got %q", rec.ModifiedDate)
	}

	// Date bucket derived from the defaulted stamp
	ok, err := rawClient(t, mr).SIsMember(ctx, "audio:index:date:2024-03", "v1").Result()
	if err != nil || !ok {
		t.Errorf("expected v1 in date bucket 2024-03 (ok=%v err=%v)", ok, err)
	}
}

func TestGet_Missing(t *testing.T) {
	store, _, _ := newTestStore(t)

	rec, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing record must not be an error, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestGet_DegradesMalformedStoredData(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	// Storage written by an older or buggy producer
	mr.HSet("audio:v9",
		"id", "v9",
		"title", "Damaged",
		"keywords", "{not json",
		"filesize", "not-a-number",
		"created_date", "garbage",
	)

	rec, err := store.Get(ctx, "v9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record despite malformed fields")
	}
	if len(rec.Keywords) != 0 {
		t.Errorf("expected malformed keywords to degrade to none, got %v", rec.Keywords)
	}
	if rec.FileSize != 0 {
		t.Errorf("expected malformed size to degrade to 0, got %d", rec.FileSize)
	}
	if rec.CreatedDate != "garbage" {
		t.Errorf("stored date string should pass through untouched, got %q", rec.CreatedDate)
	}
}

func TestSearchByKeyword(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "a", Title: "Redis Basics", ModifiedDate: "2024-01-01T00:00:00"})
	mustCreate(t, store, &Record{ID: "b", Title: "Redis Advanced", ModifiedDate: "2024-02-01T00:00:00"})
	mustCreate(t, store, &Record{ID: "c", Title: "Postgres Basics", ModifiedDate: "2024-03-01T00:00:00"})

	got, err := store.SearchByKeyword(ctx, "redis", 0)
	if err != nil {
		t.Fatalf("SearchByKeyword: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// Newest modified first
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("expected order [b a], got [%s %s]", got[0].ID, got[1].ID)
	}

	// Token normalization
	got, err = store.SearchByKeyword(ctx, "  REDIS ", 0)
	if err != nil || len(got) != 2 {
		t.Errorf("expected normalized token to match, got %d results err=%v", len(got), err)
	}

	// Limit applies after sorting
	got, err = store.SearchByKeyword(ctx, "redis", 1)
	if err != nil || len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected limited result [b], got %v err=%v", got, err)
	}

	// Unknown and empty tokens
	got, err = store.SearchByKeyword(ctx, "ghost", 0)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result for unknown token, got %v err=%v", got, err)
	}
	got, err = store.SearchByKeyword(ctx, "   ", 0)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result for blank token, got %v err=%v", got, err)
	}
}

func TestSearch_CacheInvalidatedByWrites(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "a", Title: "Redis Basics"})

	got, err := store.SearchByKeyword(ctx, "redis", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("first search: %v results, err=%v", len(got), err)
	}
	if !mr.Exists("audio:cache:search:redis:all") {
		t.Fatal("expected search result to be cached")
	}

	// A write must drop every cache entry in the namespace
	mustCreate(t, store, &Record{ID: "b", Title: "Redis Advanced"})
	if mr.Exists("audio:cache:search:redis:all") {
		t.Fatal("expected cache invalidation on create")
	}

	got, err = store.SearchByKeyword(ctx, "redis", 0)
	if err != nil || len(got) != 2 {
		t.Errorf("expected fresh search to see both records, got %d err=%v", len(got), err)
	}
}

func TestUpdate_KeywordSetDifference(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Keywords: []string{"alpha", "beta"}})

	found, err := store.Update(ctx, "v1", RecordPatch{Keywords: []string{"beta", "gamma"}})
	if err != nil || !found {
		t.Fatalf("Update: found=%v err=%v", found, err)
	}

	raw := rawClient(t, mr)
	checks := []struct {
		key  string
		want bool
	}{
		{"audio:index:keyword:alpha", false},
		{"audio:index:keyword:beta", true},
		{"audio:index:keyword:gamma", true},
	}
	for _, c := range checks {
		ok, err := raw.SIsMember(ctx, c.key, "v1").Result()
		if err != nil {
			t.Fatalf("SIsMember %s: %v", c.key, err)
		}
		if ok != c.want {
			t.Errorf("%s membership = %v, want %v", c.key, ok, c.want)
		}
	}
}

func TestUpdate_TitleRederivesKeywords(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Basics"})

	title := "Postgres Internals"
	found, err := store.Update(ctx, "v1", RecordPatch{Title: &title})
	if err != nil || !found {
		t.Fatalf("Update: found=%v err=%v", found, err)
	}

	rec, _ := store.Get(ctx, "v1")
	if rec == nil || len(rec.Keywords) != 2 || rec.Keywords[0] != "postgres" {
		t.Fatalf("expected keywords re-derived from new title, got %+v", rec)
	}

	raw := rawClient(t, mr)
	if ok, _ := raw.SIsMember(ctx, "audio:index:keyword:redis", "v1").Result(); ok {
		t.Error("expected old title keywords removed from index")
	}
	if ok, _ := raw.SIsMember(ctx, "audio:index:keyword:postgres", "v1").Result(); !ok {
		t.Error("expected new title keywords indexed")
	}
}

func TestUpdate_FormatMove(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Tutorial", Format: "mp3"})

	format := "wav"
	found, err := store.Update(ctx, "v1", RecordPatch{Format: &format})
	if err != nil || !found {
		t.Fatalf("Update: found=%v err=%v", found, err)
	}

	raw := rawClient(t, mr)
	if ok, _ := raw.SIsMember(ctx, "audio:index:format:mp3", "v1").Result(); ok {
		t.Error("expected v1 removed from old format set")
	}
	if ok, _ := raw.SIsMember(ctx, "audio:index:format:wav", "v1").Result(); !ok {
		t.Error("expected v1 in new format set")
	}
}

func TestUpdate_SizeAdjustsCounters(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", FileSize: 1000})

	size := int64(1500)
	if found, err := store.Update(ctx, "v1", RecordPatch{FileSize: &size}); err != nil || !found {
		t.Fatalf("Update: found=%v err=%v", found, err)
	}

	if got := mr.HGet("audio:stats", "total_size"); got != "1500" {
		t.Errorf("expected total_size 1500 after size rewrite, got %q", got)
	}
	raw := rawClient(t, mr)
	score, err := raw.ZScore(ctx, "audio:sorted:filesize", "v1").Result()
	if err != nil || score != 1500 {
		t.Errorf("expected filesize score 1500, got %v err=%v", score, err)
	}
}

func TestUpdate_Missing(t *testing.T) {
	store, _, _ := newTestStore(t)

	title := "whatever"
	found, err := store.Update(context.Background(), "nope", RecordPatch{Title: &title})
	if err != nil {
		t.Fatalf("updating a missing record must not error, got %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing record")
	}
}

func TestUpdate_RefreshesModified(t *testing.T) {
	store, _, setClock := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Tutorial"})
	setClock(time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC))

	size := int64(10)
	if _, err := store.Update(ctx, "v1", RecordPatch{FileSize: &size}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, _ := store.Get(ctx, "v1")
	if rec == nil || rec.ModifiedDate != "2024-03-16T12:00:00" {
		t.Fatalf("expected modified stamp refreshed, got %+v", rec)
	}
	if rec.CreatedDate != "2024-03-15T10:00:00" {
		t.Errorf("created stamp must not move on update, got %q", rec.CreatedDate)
	}
}

func TestDelete(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Tutorial", Format: "mp3", FileSize: 512})

	found, err := store.Delete(ctx, "v1")
	if err != nil || !found {
		t.Fatalf("Delete: found=%v err=%v", found, err)
	}

	if mr.Exists("audio:v1") {
		t.Error("expected canonical hash removed")
	}
	raw := rawClient(t, mr)
	for _, key := range []string{
		"audio:index:keyword:redis",
		"audio:index:keyword:tutorial",
		"audio:index:format:mp3",
		"audio:index:transcription:none",
	} {
		if ok, _ := raw.SIsMember(ctx, key, "v1").Result(); ok {
			t.Errorf("expected v1 removed from %s", key)
		}
	}
	for _, field := range []SortField{SortCreated, SortModified, SortFilesize, SortTitle} {
		if err := raw.ZScore(ctx, "audio:sorted:"+string(field), "v1").Err(); err != redis.Nil {
			t.Errorf("expected v1 removed from sorted:%s, err=%v", field, err)
		}
	}
	if got := mr.HGet("audio:stats", "total_count"); got != "0" {
		t.Errorf("expected total_count back to 0, got %q", got)
	}
	if got := mr.HGet("audio:stats", "total_size"); got != "0" {
		t.Errorf("expected total_size back to 0, got %q", got)
	}

	// Idempotent
	found, err = store.Delete(ctx, "v1")
	if err != nil || found {
		t.Fatalf("second delete: found=%v err=%v", found, err)
	}
}

func TestListAll(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "a", Title: "Alpha", CreatedDate: "2024-01-01T00:00:00", FileSize: 300})
	mustCreate(t, store, &Record{ID: "b", Title: "Beta", CreatedDate: "2024-02-01T00:00:00", FileSize: 100})
	mustCreate(t, store, &Record{ID: "c", Title: "Gamma", CreatedDate: "2024-03-01T00:00:00", FileSize: 200})

	got, err := store.ListAll(ctx, SortCreated, 0)
	if err != nil {
		t.Fatalf("ListAll created: %v", err)
	}
	if ids := idsOf(got); ids != "c,b,a" {
		t.Errorf("created order: expected c,b,a got %s", ids)
	}

	got, err = store.ListAll(ctx, SortFilesize, 0)
	if err != nil {
		t.Fatalf("ListAll filesize: %v", err)
	}
	if ids := idsOf(got); ids != "a,c,b" {
		t.Errorf("filesize order: expected a,c,b got %s", ids)
	}

	got, err = store.ListAll(ctx, SortCreated, 2)
	if err != nil || len(got) != 2 {
		t.Errorf("expected limit 2 respected, got %d err=%v", len(got), err)
	}

	// Title order follows the stable score, ascending
	got, err = store.ListAll(ctx, SortTitle, 0)
	if err != nil || len(got) != 3 {
		t.Fatalf("ListAll title: %d results, err=%v", len(got), err)
	}
	for i := 1; i < len(got); i++ {
		if titleScore(got[i-1].Title) > titleScore(got[i].Title) {
			t.Errorf("title order not ascending by score at %d: %q before %q", i, got[i-1].Title, got[i].Title)
		}
	}

	if _, err := store.ListAll(ctx, SortField("bogus"), 0); !IsValidation(err) {
		t.Errorf("expected validation error for unknown sort field, got %v", err)
	}
}

func TestListAll_OnlyUnlimitedIsCached(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "a", Title: "Alpha"})

	if _, err := store.ListAll(ctx, SortModified, 1); err != nil {
		t.Fatalf("limited list: %v", err)
	}
	if mr.Exists("audio:cache:list:modified:all") {
		t.Fatal("limited list must not populate the cache")
	}

	if _, err := store.ListAll(ctx, SortModified, 0); err != nil {
		t.Fatalf("unlimited list: %v", err)
	}
	if !mr.Exists("audio:cache:list:modified:all") {
		t.Fatal("unlimited list should be cached")
	}
}

func TestListByStatus(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "a", Title: "Alpha"})
	mustCreate(t, store, &Record{ID: "b", Title: "Beta"})
	if _, err := store.SetTranscriptionStatus(ctx, "b", TranscriptionStarted, ""); err != nil {
		t.Fatalf("SetTranscriptionStatus: %v", err)
	}

	got, err := store.ListByStatus(ctx, "", string(TranscriptionStarted))
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected [b], got %v", idsOf(got))
	}

	got, err = store.ListByStatus(ctx, "", string(TranscriptionNone))
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected [a] still in none, got %v err=%v", idsOf(got), err)
	}
}

func TestSetTranscriptionStatus(t *testing.T) {
	store, mr, _ := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Tutorial"})

	found, err := store.SetTranscriptionStatus(ctx, "v1", TranscriptionEnded, "/transcripts/v1.txt")
	if err != nil || !found {
		t.Fatalf("SetTranscriptionStatus: found=%v err=%v", found, err)
	}

	rec, _ := store.Get(ctx, "v1")
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.TranscriptionStatus != TranscriptionEnded {
		t.Errorf("expected status ended, got %s", rec.TranscriptionStatus)
	}
	if !rec.HasTranscription {
		t.Error("expected has_transcription true once ended")
	}
	if rec.TranscriptionPath != "/transcripts/v1.txt" {
		t.Errorf("expected path stored, got %q", rec.TranscriptionPath)
	}

	raw := rawClient(t, mr)
	if ok, _ := raw.SIsMember(ctx, "audio:index:transcription:none", "v1").Result(); ok {
		t.Error("expected v1 removed from old status set")
	}
	if ok, _ := raw.SIsMember(ctx, "audio:index:transcription:ended", "v1").Result(); !ok {
		t.Error("expected v1 in new status set")
	}
}

func TestSetTranscriptionStatus_Invalid(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.SetTranscriptionStatus(context.Background(), "v1", TranscriptionStatus("done"), "")
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetTranscriptionStatus_Missing(t *testing.T) {
	store, _, _ := newTestStore(t)

	found, err := store.SetTranscriptionStatus(context.Background(), "nope", TranscriptionEnded, "")
	if err != nil || found {
		t.Fatalf("expected (false, nil) for missing record, got found=%v err=%v", found, err)
	}
}

func TestReads_PropagateUnavailable(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	// Trip the breaker without touching the backend
	for i := 0; i < DefaultBreakerMaxFailures; i++ {
		store.sup.Breaker().RecordFailure()
	}

	if _, err := store.Get(ctx, "v1"); !IsUnavailable(err) {
		t.Errorf("Get: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.SearchByKeyword(ctx, "redis", 0); !IsUnavailable(err) {
		t.Errorf("Search: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.ListAll(ctx, SortModified, 0); !IsUnavailable(err) {
		t.Errorf("ListAll: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.GetStatistics(ctx); !IsUnavailable(err) {
		t.Errorf("GetStatistics: expected ErrUnavailable, got %v", err)
	}
	if _, err := store.Create(ctx, &Record{ID: "v1"}); !IsUnavailable(err) {
		t.Errorf("Create: expected ErrUnavailable, got %v", err)
	}
}

// TestCatalogLifecycle walks one record through its whole life
func TestCatalogLifecycle(t *testing.T) {
	store, mr, setClock := newTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &Record{ID: "v1", Title: "Redis Tutorial", Format: "mp3", FileSize: 4096})

	got, err := store.SearchByKeyword(ctx, "redis", 0)
	if err != nil || len(got) != 1 || got[0].ID != "v1" {
		t.Fatalf("search after create: %v err=%v", idsOf(got), err)
	}

	setClock(time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC))
	format := "wav"
	if found, err := store.Update(ctx, "v1", RecordPatch{Format: &format}); err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}

	raw := rawClient(t, mr)
	if ok, _ := raw.SIsMember(ctx, "audio:index:format:wav", "v1").Result(); !ok {
		t.Fatal("expected format membership moved to wav")
	}

	if found, err := store.SetTranscriptionStatus(ctx, "v1", TranscriptionEnded, "/t/v1.txt"); err != nil || !found {
		t.Fatalf("status: found=%v err=%v", found, err)
	}

	if found, err := store.Delete(ctx, "v1"); err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}

	got, err = store.SearchByKeyword(ctx, "redis", 0)
	if err != nil || len(got) != 0 {
		t.Errorf("search after delete: expected empty, got %v err=%v", idsOf(got), err)
	}
	if rec, err := store.Get(ctx, "v1"); err != nil || rec != nil {
		t.Errorf("get after delete: expected (nil, nil), got %v err=%v", rec, err)
	}
}

func idsOf(records []*Record) string {
	out := ""
	for i, r := range records {
		if i > 0 {
			out += ","
		}
		out += r.ID
	}
	return out
}
