package mediastore

import (
	"reflect"
	"testing"
	"time"
)

func TestRecordHashRoundTrip(t *testing.T) {
	in := &Record{
		ID:                  "v1",
		Title:               "Redis Tutorial",
		Keywords:            []string{"redis", "tutorial"},
		Format:              "mp3",
		TranscriptionStatus: TranscriptionEnded,
		TranscriptionPath:   "/t/v1.txt",
		HasTranscription:    true,
		CreatedDate:         "2024-03-15T10:00:00",
		ModifiedDate:        "2024-03-16T11:00:00",
		FileSize:            4096,
		Extra:               map[string]string{"uploader": "alice", "source": "upload"},
	}

	out := recordFromHash(in.toHash())
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestRecordHash_ExtraCannotShadowTypedFields(t *testing.T) {
	in := &Record{
		ID:    "v1",
		Title: "Real Title",
		Extra: map[string]string{"title": "Impostor", "id": "other"},
	}

	h := in.toHash()
	if h["title"] != "Real Title" {
		t.Errorf("typed field must win over extra, got %q", h["title"])
	}
	if h["id"] != "v1" {
		t.Errorf("typed id must win over extra, got %q", h["id"])
	}
}

func TestRecordFromHash_Degrades(t *testing.T) {
	rec := recordFromHash(map[string]string{
		"id":       "v1",
		"keywords": "{broken",
		"filesize": "many",
	})
	if len(rec.Keywords) != 0 {
		t.Errorf("expected malformed keywords dropped, got %v", rec.Keywords)
	}
	if rec.FileSize != 0 {
		t.Errorf("expected malformed size as 0, got %d", rec.FileSize)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2048", 2048},
		{"12.7", 12}, // float-formatted sizes from older producers
		{"", 0},
		{"junk", 0},
		{"-5", -5},
	}
	for _, c := range cases {
		if got := parseSize(c.in); got != c.want {
			t.Errorf("parseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTimestampScore(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	want := float64(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix())
	if got := timestampScore("2024-01-02T03:04:05", now); got != want {
		t.Errorf("canonical layout: got %v, want %v", got, want)
	}
	if got := timestampScore("2024-01-02T03:04:05Z", now); got != want {
		t.Errorf("RFC3339: got %v, want %v", got, want)
	}

	dayOnly := float64(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix())
	if got := timestampScore("2024-01-02", now); got != dayOnly {
		t.Errorf("date-only layout: got %v, want %v", got, dayOnly)
	}

	// Unparseable input scores as now, never fails
	if got := timestampScore("whenever", now); got != float64(now.Unix()) {
		t.Errorf("fallback: got %v, want %v", got, float64(now.Unix()))
	}
}

func TestTitleScore(t *testing.T) {
	a := titleScore("Redis Tutorial")
	if a < 0 || a >= 1 {
		t.Fatalf("score out of range: %v", a)
	}
	if titleScore("Redis Tutorial") != a {
		t.Error("score must be deterministic")
	}
	if titleScore("  redis tutorial ") != a {
		t.Error("score must ignore case and surrounding whitespace")
	}
	if titleScore("Redis Tutoria") == a {
		t.Error("distinct titles should (near-always) score differently")
	}
}

func TestDateBucket(t *testing.T) {
	if b, ok := dateBucket("2024-03-15T10:00:00"); !ok || b != "2024-03" {
		t.Errorf("expected 2024-03, got %q ok=%v", b, ok)
	}
	if _, ok := dateBucket("2024-99-15T10:00:00"); ok {
		t.Error("expected invalid month rejected")
	}
	if _, ok := dateBucket("short"); ok {
		t.Error("expected short input rejected")
	}
	if _, ok := dateBucket(""); ok {
		t.Error("expected empty input rejected")
	}
}

func TestNormalizeKeyword(t *testing.T) {
	if got := NormalizeKeyword("  ReDiS "); got != "redis" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeKeyword("   "); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestDeriveKeywords(t *testing.T) {
	got := DeriveKeywords("The Go Programming Language, 2nd ed!")
	want := []string{"the", "programming", "language", "2nd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Deduplication keeps first appearance
	got = DeriveKeywords("redis redis REDIS basics")
	want = []string{"redis", "basics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedup: got %v, want %v", got, want)
	}

	if got := DeriveKeywords(""); len(got) != 0 {
		t.Errorf("empty title: got %v", got)
	}
}

func TestRecordClone(t *testing.T) {
	orig := &Record{
		ID:       "v1",
		Keywords: []string{"a"},
		Extra:    map[string]string{"k": "v"},
	}
	cp := orig.Clone()
	cp.Keywords[0] = "changed"
	cp.Extra["k"] = "changed"

	if orig.Keywords[0] != "a" || orig.Extra["k"] != "v" {
		t.Errorf("clone must not share backing storage: %+v", orig)
	}
}

func TestTranscriptionStatusValid(t *testing.T) {
	for _, s := range []TranscriptionStatus{TranscriptionNone, TranscriptionStarted, TranscriptionEnded, TranscriptionError} {
		if !s.Valid() {
			t.Errorf("expected %s valid", s)
		}
	}
	if TranscriptionStatus("done").Valid() {
		t.Error("expected unknown status invalid")
	}
	if TranscriptionStatus("").Valid() {
		t.Error("expected empty status invalid")
	}
}
