package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// SortField represents a field to sort by
type SortField struct {
	Field     string
	Ascending bool
}

func (s SortField) String() string {
	if s.Ascending {
		return s.Field + ":1"
	}
	return s.Field + ":-1"
}

// ParseDirection converts 1 / -1 into an ascending flag
func ParseDirection(v interface{}) (bool, error) {
	n, ok := document.ToInt64(document.Normalize(v))
	if !ok || (n != 1 && n != -1) {
		return false, fmt.Errorf("%w: direction must be 1 or -1, got %v", ErrInvalidSort, v)
	}
	return n == 1, nil
}

// ParseSort accepts either a single-key mapping ({"price": -1}) or an
// ordered list of {"field": ..., "direction": ...} entries. Mappings with
// more than one key are rejected since Go maps do not keep key order.
func ParseSort(spec interface{}) ([]SortField, error) {
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case []SortField:
		out := make([]SortField, len(s))
		copy(out, s)
		return out, validateSortFields(out)
	case map[string]interface{}:
		if len(s) == 0 {
			return nil, nil
		}
		if len(s) > 1 {
			return nil, fmt.Errorf("%w: a mapping may hold one key only, use a list for compound sorts", ErrInvalidSort)
		}
		for field, dir := range s {
			asc, err := ParseDirection(dir)
			if err != nil {
				return nil, err
			}
			return []SortField{{Field: field, Ascending: asc}}, validateSortFields([]SortField{{Field: field}})
		}
	case []interface{}:
		out := make([]SortField, 0, len(s))
		for i, item := range s {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: entry %d is not an object", ErrInvalidSort, i)
			}
			field, _ := entry["field"].(string)
			dir, hasDir := entry["direction"]
			if !hasDir {
				dir = int64(1)
			}
			asc, err := ParseDirection(dir)
			if err != nil {
				return nil, err
			}
			out = append(out, SortField{Field: field, Ascending: asc})
		}
		return out, validateSortFields(out)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidSort, spec)
}

func validateSortFields(fields []SortField) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Field == "" || strings.HasPrefix(f.Field, "$") {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidSort, f.Field)
		}
		if seen[f.Field] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSort, f.Field)
		}
		seen[f.Field] = true
	}
	return nil
}

// SortDocuments sorts docs in place. The sort is stable, so documents with
// equal keys keep their relative order and repeated sorts agree.
func SortDocuments(docs []*document.Document, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			vi, _ := docs[i].GetPath(field.Field)
			vj, _ := docs[j].GetPath(field.Field)

			cmp := document.Compare(vi, vj)
			if cmp != 0 {
				if field.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
		}
		return false
	})
}
