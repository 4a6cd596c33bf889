package bulkimport

import (
	"fmt"
	"strings"
	"time"
)

// Dedupe keeps the first record for every key and drops the rest, preserving
// order. key reports false for records without a key; those are always kept.
// The number of dropped records is returned alongside the survivors.
func Dedupe[T any](records []T, key func(T) (string, bool)) ([]T, int) {
	if key == nil {
		return records, 0
	}

	seen := make(map[string]struct{}, len(records))
	kept := make([]T, 0, len(records))
	for _, rec := range records {
		k, ok := key(rec)
		if !ok {
			kept = append(kept, rec)
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, rec)
	}
	return kept, len(records) - len(kept)
}

// DedupeByField deduplicates validated entries on the coerced value of field.
// An empty field name disables deduplication.
func DedupeByField[T any](entries []Entry[T], field string) ([]Entry[T], int) {
	if field == "" {
		return entries, 0
	}
	return Dedupe(entries, func(e Entry[T]) (string, bool) {
		return keyString(e.Values[field])
	})
}

// keyString renders a coerced value as a comparison key.
func keyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		x = strings.TrimSpace(x)
		return x, x != ""
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	}
	return fmt.Sprint(v), true
}
