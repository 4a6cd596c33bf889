package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
)

// readJSON accepts an array of objects, an object with a "data" array, or a
// single object. Numbers are kept as json.Number.
func readJSON(data []byte, opts Options) (*Dataset, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse json: %w", ErrUnreadable, err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		if inner, ok := v["data"].([]any); ok {
			items = inner
		} else {
			items = []any{v}
		}
	default:
		return nil, fmt.Errorf("%w: parse json: expected an array or object, got %T", ErrUnreadable, doc)
	}

	ds := &Dataset{}
	seen := make(map[string]bool)
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: parse json: item %d is %T, not an object", ErrUnreadable, i+1, item)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		rec := make(bulkimport.Record, len(obj))
		for _, k := range keys {
			field := mapHeader(k, opts.MapHeader)
			rec[field] = obj[k]
			if !seen[field] {
				seen[field] = true
				ds.Headers = append(ds.Headers, field)
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}
