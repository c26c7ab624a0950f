package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Projection selects the fields returned by a query. It is either an
// inclusion list or an exclusion list; _id is returned unless excluded.
type Projection struct {
	fields    []string // sorted, without _id
	inclusion bool
	excludeID bool
}

// ParseProjection parses {"title": 1, "author": 1, "_id": 0} style specs.
// Values may be 0/1 or booleans. Mixing inclusion and exclusion is only
// allowed for _id.
func ParseProjection(spec map[string]interface{}) (*Projection, error) {
	if len(spec) == 0 {
		return nil, nil
	}

	p := &Projection{}
	var included, excluded int
	for field, raw := range spec {
		if field == "" || strings.HasPrefix(field, "$") {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrInvalidProjection, field)
		}
		include, err := projectionFlag(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidProjection, field, err)
		}
		if field == "_id" {
			p.excludeID = !include
			continue
		}
		p.fields = append(p.fields, field)
		if include {
			included++
		} else {
			excluded++
		}
	}

	if included > 0 && excluded > 0 {
		return nil, fmt.Errorf("%w: cannot mix inclusion and exclusion", ErrInvalidProjection)
	}
	// {"_id": 1} alone keeps only _id
	p.inclusion = included > 0 || (excluded == 0 && !p.excludeID)
	sort.Strings(p.fields)
	return p, nil
}

func projectionFlag(v interface{}) (bool, error) {
	switch val := document.Normalize(v).(type) {
	case bool:
		return val, nil
	case int64, float64:
		n, _ := document.ToFloat64(val)
		return n != 0, nil
	}
	return false, fmt.Errorf("expected 0, 1 or a boolean, got %v", v)
}

// Apply returns a new document holding the projected fields
func (p *Projection) Apply(doc *document.Document) *document.Document {
	if p == nil {
		return doc
	}

	result := document.NewDocument()
	if !p.excludeID {
		if id, ok := doc.Get("_id"); ok {
			result.Set("_id", id)
		}
	}

	if p.inclusion {
		// Document order for top-level fields, then nested paths.
		wanted := make(map[string]bool, len(p.fields))
		for _, f := range p.fields {
			wanted[f] = true
		}
		for _, key := range doc.Keys() {
			if key != "_id" && wanted[key] {
				v, _ := doc.Get(key)
				result.Set(key, v)
			}
		}
		for _, f := range p.fields {
			if !strings.Contains(f, ".") {
				continue
			}
			if v, ok := doc.GetPath(f); ok {
				_ = result.SetPath(f, v)
			}
		}
		return result
	}

	excluded := make(map[string]bool, len(p.fields))
	for _, f := range p.fields {
		excluded[f] = true
	}
	for _, key := range doc.Keys() {
		if key == "_id" || excluded[key] {
			continue
		}
		v, _ := doc.Get(key)
		result.Set(key, v)
	}
	for _, f := range p.fields {
		if strings.Contains(f, ".") {
			result.DeletePath(f)
		}
	}
	return result
}

// Fields returns the projected field names (excluding _id)
func (p *Projection) Fields() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// IsInclusion reports whether the projection lists the fields to keep
func (p *Projection) IsInclusion() bool {
	return p != nil && p.inclusion
}

func (p *Projection) String() string {
	if p == nil {
		return "*"
	}
	mode := "exclude"
	if p.inclusion {
		mode = "include"
	}
	return fmt.Sprintf("%s%v id=%t", mode, p.fields, !p.excludeID)
}
