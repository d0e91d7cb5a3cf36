package mediastore

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// TranscriptionStatus is the lifecycle state of a record's transcription
type TranscriptionStatus string

const (
	TranscriptionNone    TranscriptionStatus = "none"
	TranscriptionStarted TranscriptionStatus = "started"
	TranscriptionEnded   TranscriptionStatus = "ended"
	TranscriptionError   TranscriptionStatus = "error"
)

// Valid reports whether s is one of the known transcription statuses
func (s TranscriptionStatus) Valid() bool {
	switch s {
	case TranscriptionNone, TranscriptionStarted, TranscriptionEnded, TranscriptionError:
		return true
	}
	return false
}

// Recognized hash field names. Everything else round-trips through Extra.
const (
	fieldID                  = "id"
	fieldTitle               = "title"
	fieldKeywords            = "keywords"
	fieldFormat              = "format"
	fieldTranscriptionStatus = "transcription_status"
	fieldTranscriptionPath   = "transcription_path"
	fieldHasTranscription    = "has_transcription"
	fieldCreatedDate         = "created_date"
	fieldModifiedDate        = "modified_date"
	fieldFileSize            = "filesize"
)

// timeLayout is the canonical timestamp format for created/modified stamps.
// Lexicographic comparison of two stamps in this layout matches time order,
// which the search paths rely on.
const timeLayout = "2006-01-02T15:04:05"

// Record is one media-catalog entry (audio or video metadata).
//
// The engine treats the typed fields specially: Keywords feed the inverted
// keyword index, TranscriptionStatus and Format feed membership sets, the
// date and size fields feed the sorted structures. Everything else travels
// in Extra and is stored and returned as plain strings by contract.
type Record struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title,omitempty"`
	Keywords            []string            `json:"keywords,omitempty"`
	Format              string              `json:"format,omitempty"`
	TranscriptionStatus TranscriptionStatus `json:"transcription_status,omitempty"`
	TranscriptionPath   string              `json:"transcription_path,omitempty"`
	HasTranscription    bool                `json:"has_transcription,omitempty"`
	CreatedDate         string              `json:"created_date,omitempty"`
	ModifiedDate        string              `json:"modified_date,omitempty"`
	FileSize            int64               `json:"filesize,omitempty"`
	Extra               map[string]string   `json:"extra,omitempty"`
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	out := *r
	out.Keywords = append([]string(nil), r.Keywords...)
	if r.Extra != nil {
		out.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// reservedField reports whether name collides with a recognized hash field
func reservedField(name string) bool {
	switch name {
	case fieldID, fieldTitle, fieldKeywords, fieldFormat,
		fieldTranscriptionStatus, fieldTranscriptionPath, fieldHasTranscription,
		fieldCreatedDate, fieldModifiedDate, fieldFileSize:
		return true
	}
	return false
}

// toHash flattens the record into the canonical hash representation.
// Keywords are stored as a JSON blob; every other value is a plain string.
func (r *Record) toHash() map[string]string {
	h := make(map[string]string, len(r.Extra)+10)
	for k, v := range r.Extra {
		if !reservedField(k) {
			h[k] = v
		}
	}

	h[fieldID] = r.ID
	if r.Title != "" {
		h[fieldTitle] = r.Title
	}
	if len(r.Keywords) > 0 {
		if blob, err := json.Marshal(r.Keywords); err == nil {
			h[fieldKeywords] = string(blob)
		}
	}
	if r.Format != "" {
		h[fieldFormat] = r.Format
	}
	if r.TranscriptionStatus != "" {
		h[fieldTranscriptionStatus] = string(r.TranscriptionStatus)
	}
	if r.TranscriptionPath != "" {
		h[fieldTranscriptionPath] = r.TranscriptionPath
	}
	h[fieldHasTranscription] = strconv.FormatBool(r.HasTranscription)
	if r.CreatedDate != "" {
		h[fieldCreatedDate] = r.CreatedDate
	}
	if r.ModifiedDate != "" {
		h[fieldModifiedDate] = r.ModifiedDate
	}
	if r.FileSize != 0 {
		h[fieldFileSize] = strconv.FormatInt(r.FileSize, 10)
	}

	return h
}

// recordFromHash rebuilds a Record from its canonical hash form.
// Malformed keyword blobs degrade to no keywords; malformed sizes degrade
// to zero. Reads never fail on bad stored data.
func recordFromHash(h map[string]string) *Record {
	r := &Record{
		ID:                  h[fieldID],
		Title:               h[fieldTitle],
		Format:              h[fieldFormat],
		TranscriptionStatus: TranscriptionStatus(h[fieldTranscriptionStatus]),
		TranscriptionPath:   h[fieldTranscriptionPath],
		CreatedDate:         h[fieldCreatedDate],
		ModifiedDate:        h[fieldModifiedDate],
	}

	if blob, ok := h[fieldKeywords]; ok {
		var kw []string
		if err := json.Unmarshal([]byte(blob), &kw); err == nil {
			r.Keywords = kw
		}
	}
	if v, ok := h[fieldHasTranscription]; ok {
		r.HasTranscription = v == "true"
	}
	if v, ok := h[fieldFileSize]; ok {
		r.FileSize = parseSize(v)
	}

	for k, v := range h {
		if reservedField(k) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[k] = v
	}

	return r
}

// parseSize parses a stored size string, degrading to 0 on bad input
func parseSize(s string) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// timestampLayouts are the accepted input formats for date fields, most
// specific first.
var timestampLayouts = []string{
	timeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestampScore converts an ISO-8601 datetime string to an epoch-seconds
// score. Unparseable input falls back to now: a write must never fail on a
// bad date.
func timestampScore(value string, now time.Time) float64 {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return float64(t.Unix())
		}
	}
	return float64(now.Unix())
}

// titleScore maps a normalized title to a stable score in [0,1).
//
// Note this is a hash-derived pseudo-order, not alphabetical order. The
// original catalog sorted titles this way and downstream consumers depend
// on the stable ordering, so it is preserved as-is.
func titleScore(title string) float64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(title))))
	// Upper 53 bits keep the mantissa exact
	return float64(h.Sum64()>>11) / float64(uint64(1)<<53)
}

// dateBucket derives the YYYY-MM bucket from a created_date string.
// Missing or malformed dates yield ok=false and the bucket index is
// silently skipped.
func dateBucket(created string) (string, bool) {
	if len(created) < 7 {
		return "", false
	}
	bucket := created[:7]
	if _, err := time.Parse("2006-01", bucket); err != nil {
		return "", false
	}
	return bucket, true
}

// NormalizeKeyword lowercases and trims a search token
func NormalizeKeyword(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// DeriveKeywords tokenizes a title into normalized keywords: lowercased
// alphanumeric runs of three or more characters, deduplicated, in order of
// first appearance.
func DeriveKeywords(title string) []string {
	var out []string
	seen := make(map[string]bool)

	tokens := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if len(tok) < 3 || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// formatTimestamp renders t in the canonical stamp layout
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
