package query

import (
	"fmt"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Query represents a find operation: a filter plus projection, sort, skip
// and limit. The With* methods return modified copies, so a Query can be
// shared once built.
type Query struct {
	filter     Filter
	projection *Projection
	sort       []SortField
	limit      int
	skip       int
}

// NewQuery creates a new query. A nil filter matches every document.
func NewQuery(filter Filter) *Query {
	if filter == nil {
		filter = All{}
	}
	return &Query{filter: filter}
}

// WithProjection returns a copy of q with the projection set
func (q Query) WithProjection(projection *Projection) *Query {
	q.projection = projection
	return &q
}

// WithSort returns a copy of q with the sort order set
func (q Query) WithSort(fields []SortField) *Query {
	q.sort = append([]SortField(nil), fields...)
	return &q
}

// WithLimit returns a copy of q with the limit set (0 = unlimited)
func (q Query) WithLimit(limit int) *Query {
	q.limit = limit
	return &q
}

// WithSkip returns a copy of q with the skip set
func (q Query) WithSkip(skip int) *Query {
	q.skip = skip
	return &q
}

// Validate checks the numeric options
func (q *Query) Validate() error {
	if q.skip < 0 {
		return fmt.Errorf("skip must be non-negative, got %d", q.skip)
	}
	if q.limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", q.limit)
	}
	return nil
}

// Matches checks if a document matches the query filter
func (q *Query) Matches(doc *document.Document) bool {
	return q.filter.Match(doc)
}

// ApplyProjection applies the projection to a document
func (q *Query) ApplyProjection(doc *document.Document) *document.Document {
	return q.projection.Apply(doc)
}

// Filter returns the filter
func (q *Query) Filter() Filter {
	return q.filter
}

// Limit returns the limit
func (q *Query) Limit() int {
	return q.limit
}

// Skip returns the skip
func (q *Query) Skip() int {
	return q.skip
}

// Sort returns a copy of the sort fields
func (q *Query) Sort() []SortField {
	return append([]SortField(nil), q.sort...)
}

// Projection returns the projection (nil when all fields are returned)
func (q *Query) Projection() *Projection {
	return q.projection
}

// Key returns a canonical description of the query, used as a cache key
func (q *Query) Key() string {
	var b strings.Builder
	b.WriteString(q.filter.String())
	b.WriteString("|")
	b.WriteString(q.projection.String())
	b.WriteString("|")
	for _, s := range q.sort {
		b.WriteString(s.String())
		b.WriteString(",")
	}
	fmt.Fprintf(&b, "|%d|%d", q.skip, q.limit)
	return b.String()
}

func (q *Query) String() string {
	return q.Key()
}
