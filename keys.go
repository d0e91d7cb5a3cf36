package mediastore

import "strings"

// KeySpace constructs every Redis key for one entity namespace.
// The RecordStore exclusively owns all keys under its entity namespace;
// no other component may write them.
//
// Layout:
//
//	{entity}:{id}                      canonical record hash
//	{entity}:index:keyword:{token}     inverted keyword index (set)
//	{entity}:index:{kind}:{value}      status index, e.g. transcription:ended (set)
//	{entity}:index:format:{value}      format index (set)
//	{entity}:index:date:{YYYY-MM}      date-bucket index (set)
//	{entity}:sorted:{field}            sorted structure (zset)
//	{entity}:stats                     aggregate counter hash
//	{entity}:cache:{op}:{args...}      query cache entries (string blobs with TTL)
type KeySpace struct {
	Entity string
}

// Record returns the canonical hash key for an id
func (k KeySpace) Record(id string) string {
	return k.Entity + ":" + id
}

// KeywordIndex returns the set key for one keyword token
func (k KeySpace) KeywordIndex(token string) string {
	return k.Entity + ":index:keyword:" + token
}

// StatusIndex returns the set key for one status dimension and value
func (k KeySpace) StatusIndex(kind, value string) string {
	return k.Entity + ":index:" + kind + ":" + value
}

// FormatIndex returns the set key for one format value
func (k KeySpace) FormatIndex(value string) string {
	return k.Entity + ":index:format:" + value
}

// DateIndex returns the set key for one YYYY-MM bucket
func (k KeySpace) DateIndex(bucket string) string {
	return k.Entity + ":index:date:" + bucket
}

// Sorted returns the zset key for one orderable field
func (k KeySpace) Sorted(field SortField) string {
	return k.Entity + ":sorted:" + string(field)
}

// Stats returns the aggregate counter hash key
func (k KeySpace) Stats() string {
	return k.Entity + ":stats"
}

// Cache joins operation and arguments into a deterministic cache key
func (k KeySpace) Cache(parts ...string) string {
	return k.Entity + ":cache:" + strings.Join(parts, ":")
}

// CachePattern matches every cache entry in this namespace
func (k KeySpace) CachePattern() string {
	return k.Entity + ":cache:*"
}

// FormatIndexPattern matches every format index set in this namespace
func (k KeySpace) FormatIndexPattern() string {
	return k.Entity + ":index:format:*"
}

// RecordID extracts the record id from a canonical hash key, or "" if the
// key belongs to a derived structure.
func (k KeySpace) RecordID(key string) string {
	rest, ok := strings.CutPrefix(key, k.Entity+":")
	if !ok || rest == "" {
		return ""
	}
	if strings.HasPrefix(rest, "index:") ||
		strings.HasPrefix(rest, "sorted:") ||
		strings.HasPrefix(rest, "cache:") ||
		rest == "stats" {
		return ""
	}
	return rest
}

// RecordPattern matches candidate canonical hash keys (callers must still
// filter through RecordID since SCAN patterns cannot exclude namespaces)
func (k KeySpace) RecordPattern() string {
	return k.Entity + ":*"
}
