package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Filter is a predicate over documents. Implementations are immutable once
// built, so a Filter can be shared between queries and executions.
type Filter interface {
	// Match reports whether doc satisfies the condition
	Match(doc *document.Document) bool
	String() string
}

// All matches every document (the empty filter)
type All struct{}

func (All) Match(*document.Document) bool { return true }
func (All) String() string                { return "{}" }

// Equals matches when the field equals Value. When the field holds an array
// and Value is not an array, any element equal to Value matches.
type Equals struct {
	Field string
	Value interface{}
}

func (f Equals) Match(doc *document.Document) bool {
	v, ok := doc.GetPath(f.Field)
	if !ok {
		return false
	}
	return equalsOrContains(v, f.Value)
}

func (f Equals) String() string { return fmt.Sprintf("%s == %#v", f.Field, f.Value) }

// NotEqual matches when the field is present and differs from Value
type NotEqual struct {
	Field string
	Value interface{}
}

func (f NotEqual) Match(doc *document.Document) bool {
	v, ok := doc.GetPath(f.Field)
	if !ok {
		return false
	}
	return !equalsOrContains(v, f.Value)
}

func (f NotEqual) String() string { return fmt.Sprintf("%s != %#v", f.Field, f.Value) }

// GreaterThan matches when the field is greater than Value
type GreaterThan struct {
	Field string
	Value interface{}
}

func (f GreaterThan) Match(doc *document.Document) bool {
	return compareField(doc, f.Field, f.Value, func(c int) bool { return c > 0 })
}

func (f GreaterThan) String() string { return fmt.Sprintf("%s > %#v", f.Field, f.Value) }

// GreaterThanOrEqual matches when the field is greater than or equal to Value
type GreaterThanOrEqual struct {
	Field string
	Value interface{}
}

func (f GreaterThanOrEqual) Match(doc *document.Document) bool {
	return compareField(doc, f.Field, f.Value, func(c int) bool { return c >= 0 })
}

func (f GreaterThanOrEqual) String() string { return fmt.Sprintf("%s >= %#v", f.Field, f.Value) }

// LessThan matches when the field is less than Value
type LessThan struct {
	Field string
	Value interface{}
}

func (f LessThan) Match(doc *document.Document) bool {
	return compareField(doc, f.Field, f.Value, func(c int) bool { return c < 0 })
}

func (f LessThan) String() string { return fmt.Sprintf("%s < %#v", f.Field, f.Value) }

// LessThanOrEqual matches when the field is less than or equal to Value
type LessThanOrEqual struct {
	Field string
	Value interface{}
}

func (f LessThanOrEqual) Match(doc *document.Document) bool {
	return compareField(doc, f.Field, f.Value, func(c int) bool { return c <= 0 })
}

func (f LessThanOrEqual) String() string { return fmt.Sprintf("%s <= %#v", f.Field, f.Value) }

// In matches when the field equals any of Values
type In struct {
	Field  string
	Values []interface{}
}

func (f In) Match(doc *document.Document) bool {
	v, ok := doc.GetPath(f.Field)
	if !ok {
		return false
	}
	for _, candidate := range f.Values {
		if equalsOrContains(v, candidate) {
			return true
		}
	}
	return false
}

func (f In) String() string { return fmt.Sprintf("%s in %#v", f.Field, f.Values) }

// NotIn matches when the field is present and equals none of Values
type NotIn struct {
	Field  string
	Values []interface{}
}

func (f NotIn) Match(doc *document.Document) bool {
	if _, ok := doc.GetPath(f.Field); !ok {
		return false
	}
	return !In(f).Match(doc)
}

func (f NotIn) String() string { return fmt.Sprintf("%s not in %#v", f.Field, f.Values) }

// Exists matches on presence (Want true) or absence (Want false) of a field.
// It is the only condition that can match a document lacking the field.
type Exists struct {
	Field string
	Want  bool
}

func (f Exists) Match(doc *document.Document) bool {
	_, ok := doc.GetPath(f.Field)
	return ok == f.Want
}

func (f Exists) String() string { return fmt.Sprintf("exists(%s) == %t", f.Field, f.Want) }

// Regex matches string fields against a compiled pattern
type Regex struct {
	Field   string
	Pattern *regexp.Regexp
}

func (f Regex) Match(doc *document.Document) bool {
	v, ok := doc.GetPath(f.Field)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && f.Pattern.MatchString(s)
}

func (f Regex) String() string { return fmt.Sprintf("%s =~ /%s/", f.Field, f.Pattern) }

// Size matches arrays with exactly N elements
type Size struct {
	Field string
	N     int64
}

func (f Size) Match(doc *document.Document) bool {
	v, ok := doc.GetPath(f.Field)
	if !ok {
		return false
	}
	arr, ok := v.([]interface{})
	return ok && int64(len(arr)) == f.N
}

func (f Size) String() string { return fmt.Sprintf("len(%s) == %d", f.Field, f.N) }

// FieldNot negates a condition on a field that is present
type FieldNot struct {
	Field     string
	Condition Filter
}

func (f FieldNot) Match(doc *document.Document) bool {
	if _, ok := doc.GetPath(f.Field); !ok {
		return false
	}
	return !f.Condition.Match(doc)
}

func (f FieldNot) String() string { return fmt.Sprintf("%s not(%s)", f.Field, f.Condition) }

// And is the conjunction of its conditions
type And []Filter

func (f And) Match(doc *document.Document) bool {
	for _, c := range f {
		if !c.Match(doc) {
			return false
		}
	}
	return true
}

func (f And) String() string { return joinFilters("and", f) }

// Or is the disjunction of its conditions
type Or []Filter

func (f Or) Match(doc *document.Document) bool {
	for _, c := range f {
		if c.Match(doc) {
			return true
		}
	}
	return false
}

func (f Or) String() string { return joinFilters("or", f) }

// Nor matches when none of its conditions match
type Nor []Filter

func (f Nor) Match(doc *document.Document) bool {
	return !Or(f).Match(doc)
}

func (f Nor) String() string { return "nor" + joinFilters("or", f) }

// joinFilters renders filters joined by op. Empty lists render as op()
// since an empty And matches everything and an empty Or nothing.
func joinFilters(op string, filters []Filter) string {
	if len(filters) == 0 {
		return op + "()"
	}
	parts := make([]string, len(filters))
	for i, c := range filters {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

func compareField(doc *document.Document, field string, want interface{}, ok func(int) bool) bool {
	v, exists := doc.GetPath(field)
	if !exists || !document.Comparable(v, want) {
		return false
	}
	return ok(document.Compare(v, want))
}

func equalsOrContains(fieldValue, want interface{}) bool {
	if document.Equal(fieldValue, want) {
		return true
	}
	arr, isArray := fieldValue.([]interface{})
	if !isArray {
		return false
	}
	if _, wantArray := want.([]interface{}); wantArray {
		return false
	}
	for _, item := range arr {
		if document.Equal(item, want) {
			return true
		}
	}
	return false
}

// Equalities returns the field/value pairs of the top-level equality
// conditions of f, the conditions an index lookup can serve.
func Equalities(f Filter) map[string]interface{} {
	out := make(map[string]interface{})
	add := func(c Filter) {
		eq, ok := c.(Equals)
		if !ok || eq.Value == nil {
			return
		}
		if _, isArray := eq.Value.([]interface{}); isArray {
			return
		}
		out[eq.Field] = eq.Value
	}

	switch c := f.(type) {
	case Equals:
		add(c)
	case And:
		for _, child := range c {
			add(child)
		}
	}
	return out
}
