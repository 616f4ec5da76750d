// Package docstore is the remote document store used as the sync target.
//
// The store is shaped like a hosted document database: named collections of
// JSON-like documents addressed by string id, native timestamps, whole
// document writes, merge writes, and a field delete sentinel.
//
// # Backends
//
//   - MemoryStore: in-process, deep-copies on every read and write
//   - SQLiteStore: one table keyed by (collection, id), ncruces/go-sqlite3
//   - S3Store: one object per document under {prefix}/{collection}/{id}.json
//
// Open selects a backend from Config.Driver.
//
// # Values
//
// Documents are map[string]any trees of nil, bool, float64, string, []any,
// map[string]any and Timestamp. Persistent backends encode Timestamp as
//
//	{"_seconds": 1706688000, "_nanoseconds": 0}
//
// and revive it on read, so callers always get Timestamp values back.
//
// # Merge writes
//
// SetDocument with merge=true merges nested maps recursively. A DeleteField
// value removes the key it is assigned to:
//
//	store.SetDocument(ctx, "attendances", "EMP001_2024_1", map[string]any{
//	    "days": map[string]any{"3": docstore.DeleteField},
//	}, true)
package docstore
