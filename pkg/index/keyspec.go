package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// KeyField is one component of an index key
type KeyField struct {
	Field     string
	Direction int // 1 ascending, -1 descending
}

// KeySpec is the ordered list of fields an index is built over
type KeySpec []KeyField

// ParseKeySpec accepts a single-key mapping ({"title": 1}), an ordered list
// of {"field": ..., "direction": ...} entries, or a KeySpec.
func ParseKeySpec(spec interface{}) (KeySpec, error) {
	var out KeySpec

	switch s := spec.(type) {
	case KeySpec:
		out = append(KeySpec(nil), s...)
	case []KeyField:
		out = append(KeySpec(nil), s...)
	case map[string]interface{}:
		if len(s) != 1 {
			return nil, fmt.Errorf("%w: a mapping must hold exactly one key, use a list for compound indexes", ErrInvalidKeySpec)
		}
		for field, dir := range s {
			d, err := parseDirection(dir)
			if err != nil {
				return nil, err
			}
			out = KeySpec{{Field: field, Direction: d}}
		}
	case []interface{}:
		for i, item := range s {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: entry %d is not an object", ErrInvalidKeySpec, i)
			}
			field, _ := entry["field"].(string)
			dir, ok := entry["direction"]
			if !ok {
				dir = int64(1)
			}
			d, err := parseDirection(dir)
			if err != nil {
				return nil, err
			}
			out = append(out, KeyField{Field: field, Direction: d})
		}
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidKeySpec, spec)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDirection(v interface{}) (int, error) {
	n, ok := document.ToInt64(document.Normalize(v))
	if !ok || (n != 1 && n != -1) {
		return 0, fmt.Errorf("%w: direction must be 1 or -1, got %v", ErrInvalidKeySpec, v)
	}
	return int(n), nil
}

// Validate checks that the key spec names at least one distinct field with a
// valid direction
func (k KeySpec) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: index must have at least one field", ErrInvalidKeySpec)
	}
	seen := make(map[string]bool, len(k))
	for _, f := range k {
		if f.Field == "" || strings.HasPrefix(f.Field, "$") {
			return fmt.Errorf("%w: invalid field name %q", ErrInvalidKeySpec, f.Field)
		}
		if f.Direction != 1 && f.Direction != -1 {
			return fmt.Errorf("%w: direction of %s must be 1 or -1", ErrInvalidKeySpec, f.Field)
		}
		if seen[f.Field] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidKeySpec, f.Field)
		}
		seen[f.Field] = true
	}
	return nil
}

// Name builds the conventional index name, e.g. "author_1_published_year_1"
func (k KeySpec) Name() string {
	parts := make([]string, 0, len(k)*2)
	for _, f := range k {
		parts = append(parts, f.Field, strconv.Itoa(f.Direction))
	}
	return strings.Join(parts, "_")
}

// Fields returns the field paths in key order
func (k KeySpec) Fields() []string {
	fields := make([]string, len(k))
	for i, f := range k {
		fields[i] = f.Field
	}
	return fields
}

// Equal reports whether both specs list the same fields and directions in
// the same order
func (k KeySpec) Equal(other KeySpec) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}
