package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Document represents an ordered set of field/value pairs
type Document struct {
	fields map[string]*Value
	order  []string // Maintain insertion order
}

// NewDocument creates a new empty document
func NewDocument() *Document {
	return &Document{
		fields: make(map[string]*Value),
		order:  make([]string, 0),
	}
}

// NewDocumentFromMap creates a document from a map. Map iteration order is
// random, so fields are added in sorted key order to keep the result stable.
func NewDocumentFromMap(m map[string]interface{}) *Document {
	doc := NewDocument()
	for _, k := range sortedKeys(m) {
		doc.Set(k, m[k])
	}
	return doc
}

// Set sets a field value in the document
func (d *Document) Set(key string, value interface{}) {
	if _, exists := d.fields[key]; !exists {
		d.order = append(d.order, key)
	}
	d.fields[key] = NewValue(value)
}

// Get retrieves a top-level field value from the document
func (d *Document) Get(key string) (interface{}, bool) {
	if v, ok := d.fields[key]; ok {
		return v.Data, true
	}
	return nil, false
}

// GetValue retrieves a typed value from the document
func (d *Document) GetValue(key string) (*Value, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Has checks if a field exists in the document
func (d *Document) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// Delete removes a field from the document
func (d *Document) Delete(key string) {
	if _, ok := d.fields[key]; !ok {
		return
	}

	delete(d.fields, key)

	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the field names in insertion order
func (d *Document) Keys() []string {
	keys := make([]string, len(d.order))
	copy(keys, d.order)
	return keys
}

// Len returns the number of fields in the document
func (d *Document) Len() int {
	return len(d.fields)
}

// ToMap converts the document to a map[string]interface{}
func (d *Document) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(d.fields))
	for k, v := range d.fields {
		m[k] = plain(v.Data)
	}
	return m
}

// plain converts nested documents into maps
func plain(v interface{}) interface{} {
	switch val := v.(type) {
	case *Document:
		return val.ToMap()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	}
	return v
}

// Clone creates a deep copy of the document
func (d *Document) Clone() *Document {
	clone := &Document{
		fields: make(map[string]*Value, len(d.fields)),
		order:  make([]string, len(d.order)),
	}
	copy(clone.order, d.order)
	for k, v := range d.fields {
		data := v.Data
		if nested, ok := data.(*Document); ok {
			data = nested.Clone()
		} else {
			data = Normalize(data)
		}
		clone.fields[k] = &Value{Type: v.Type, Data: data}
	}
	return clone
}

// Equal reports whether both documents hold equal values for the same fields.
// Field order is ignored.
func (d *Document) Equal(other *Document) bool {
	if other == nil || d.Len() != other.Len() {
		return false
	}
	for k, v := range d.fields {
		ov, ok := other.fields[k]
		if !ok || !Equal(v.Data, ov.Data) {
			return false
		}
	}
	return true
}

// Identical is Equal with value types compared as well
func (d *Document) Identical(other *Document) bool {
	if other == nil || d.Len() != other.Len() {
		return false
	}
	for k, v := range d.fields {
		ov, ok := other.fields[k]
		if !ok || !Identical(v.Data, ov.Data) {
			return false
		}
	}
	return true
}

// GetPath retrieves a value using dot notation (e.g., "user.address.city").
// Numeric segments index into arrays.
func (d *Document) GetPath(path string) (interface{}, bool) {
	if !strings.Contains(path, ".") {
		return d.Get(path)
	}

	parts := strings.Split(path, ".")
	current, ok := d.Get(parts[0])
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		current, ok = child(current, part)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func child(v interface{}, key string) (interface{}, bool) {
	switch val := v.(type) {
	case *Document:
		return val.Get(key)
	case map[string]interface{}:
		c, ok := val[key]
		return c, ok
	case []interface{}:
		var idx int
		if _, err := fmt.Sscanf(key, "%d", &idx); err != nil || idx < 0 || idx >= len(val) {
			return nil, false
		}
		return val[idx], true
	}
	return nil, false
}

// SetPath sets a value using dot notation, creating intermediate maps as
// needed. It fails when an intermediate value is not a document.
func (d *Document) SetPath(path string, value interface{}) error {
	if !strings.Contains(path, ".") {
		d.Set(path, value)
		return nil
	}

	parts := strings.Split(path, ".")
	root, exists := d.Get(parts[0])
	if !exists || root == nil {
		root = make(map[string]interface{})
	}
	updated, err := setIn(root, parts[1:], Normalize(value))
	if err != nil {
		return fmt.Errorf("cannot set %s: %w", path, err)
	}
	d.Set(parts[0], updated)
	return nil
}

func setIn(container interface{}, parts []string, value interface{}) (interface{}, error) {
	switch c := container.(type) {
	case *Document:
		m := c.ToMap()
		return setIn(m, parts, value)
	case map[string]interface{}:
		if len(parts) == 1 {
			c[parts[0]] = value
			return c, nil
		}
		next, ok := c[parts[0]]
		if !ok || next == nil {
			next = make(map[string]interface{})
		}
		updated, err := setIn(next, parts[1:], value)
		if err != nil {
			return nil, err
		}
		c[parts[0]] = updated
		return c, nil
	}
	return nil, fmt.Errorf("field %q is not a document", parts[0])
}

// DeletePath removes a value addressed with dot notation. Missing paths are
// ignored.
func (d *Document) DeletePath(path string) {
	if !strings.Contains(path, ".") {
		d.Delete(path)
		return
	}

	parts := strings.Split(path, ".")
	root, exists := d.Get(parts[0])
	if !exists {
		return
	}
	m, ok := plain(root).(map[string]interface{})
	if !ok {
		return
	}
	current := m
	for _, part := range parts[1 : len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
	d.Set(parts[0], m)
}

// MarshalJSON encodes the document as a JSON object preserving field order
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(d.fields[k].Data)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String returns a string representation of the document
func (d *Document) String() string {
	b, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", d.ToMap())
	}
	return string(b)
}
