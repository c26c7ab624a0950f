// Package descriptor models one declarative query operation. Descriptors are
// validated when they are built and cannot be changed afterwards.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/mnohosten/querybook/pkg/aggregation"
	"github.com/mnohosten/querybook/pkg/index"
	"github.com/mnohosten/querybook/pkg/query"
	"github.com/mnohosten/querybook/pkg/update"
)

// Kind identifies the operation a descriptor performs
type Kind int

const (
	KindFind Kind = iota
	KindUpdateOne
	KindDeleteOne
	KindAggregate
	KindCreateIndex
)

var kindNames = map[Kind]string{
	KindFind:        "find",
	KindUpdateOne:   "updateOne",
	KindDeleteOne:   "deleteOne",
	KindAggregate:   "aggregate",
	KindCreateIndex: "createIndex",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts an operation name such as "updateOne" into a Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidDescriptor, name)
}

// Descriptor describes one operation against a collection. Only the fields
// belonging to its Kind are set.
type Descriptor struct {
	kind     Kind
	query    *query.Query // find
	filter   query.Filter // updateOne, deleteOne
	mutation *update.Mutation
	pipeline *aggregation.Pipeline
	keys     index.KeySpec
	explain  bool
	spec     map[string]interface{} // source mapping when built by FromSpec
}

// FindOption configures a find descriptor
type FindOption func(*findOptions)

type findOptions struct {
	projection *query.Projection
	sort       []query.SortField
	skip       int
	limit      int
	explain    bool
}

// WithProjection selects the returned fields
func WithProjection(p *query.Projection) FindOption {
	return func(o *findOptions) { o.projection = p }
}

// WithSort orders the results
func WithSort(fields []query.SortField) FindOption {
	return func(o *findOptions) { o.sort = fields }
}

// WithSkip skips the first n results
func WithSkip(n int) FindOption {
	return func(o *findOptions) { o.skip = n }
}

// WithLimit caps the number of results (0 = unlimited)
func WithLimit(n int) FindOption {
	return func(o *findOptions) { o.limit = n }
}

// WithExplain asks the runner to collect execution statistics as well
func WithExplain() FindOption {
	return func(o *findOptions) { o.explain = true }
}

// NewFind builds a find descriptor. A nil filter matches every document.
func NewFind(filter query.Filter, opts ...FindOption) (*Descriptor, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	if filter != nil {
		filter = query.CloneFilter(filter)
	}
	q := query.NewQuery(filter).
		WithProjection(o.projection).
		WithSort(o.sort).
		WithSkip(o.skip).
		WithLimit(o.limit)
	if err := q.Validate(); err != nil {
		return nil, invalid(KindFind, err)
	}

	return &Descriptor{kind: KindFind, query: q, filter: q.Filter(), explain: o.explain}, nil
}

// NewUpdateOne builds an update descriptor. The filter must target
// something: a nil or empty filter is rejected.
func NewUpdateOne(filter query.Filter, m *update.Mutation) (*Descriptor, error) {
	if err := requireFilter(KindUpdateOne, filter); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, invalid(KindUpdateOne, fmt.Errorf("mutation is required"))
	}
	return &Descriptor{kind: KindUpdateOne, filter: query.CloneFilter(filter), mutation: m}, nil
}

// NewDeleteOne builds a delete descriptor. The filter must target
// something: a nil or empty filter is rejected.
func NewDeleteOne(filter query.Filter) (*Descriptor, error) {
	if err := requireFilter(KindDeleteOne, filter); err != nil {
		return nil, err
	}
	return &Descriptor{kind: KindDeleteOne, filter: query.CloneFilter(filter)}, nil
}

// NewAggregate builds an aggregate descriptor. An empty pipeline passes
// every document through unchanged.
func NewAggregate(p *aggregation.Pipeline) (*Descriptor, error) {
	if p == nil {
		return nil, invalid(KindAggregate, fmt.Errorf("pipeline is required"))
	}
	return &Descriptor{kind: KindAggregate, pipeline: p}, nil
}

// NewCreateIndex builds an index creation descriptor
func NewCreateIndex(keys index.KeySpec) (*Descriptor, error) {
	if err := keys.Validate(); err != nil {
		return nil, invalid(KindCreateIndex, err)
	}
	return &Descriptor{kind: KindCreateIndex, keys: append(index.KeySpec(nil), keys...)}, nil
}

func requireFilter(kind Kind, filter query.Filter) error {
	if filter == nil {
		return invalid(kind, fmt.Errorf("a targeting filter is required"))
	}
	if _, all := filter.(query.All); all {
		return invalid(kind, fmt.Errorf("a targeting filter is required, got an empty filter"))
	}
	return nil
}

func invalid(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidDescriptor, kind, err)
}

// Kind returns the operation kind
func (d *Descriptor) Kind() Kind {
	return d.kind
}

// Query returns the find query (nil for other kinds)
func (d *Descriptor) Query() *query.Query {
	return d.query
}

// Filter returns the targeting filter (nil for aggregate and createIndex)
func (d *Descriptor) Filter() query.Filter {
	return d.filter
}

// Mutation returns the update mutation (nil for other kinds)
func (d *Descriptor) Mutation() *update.Mutation {
	return d.mutation
}

// Pipeline returns the aggregation pipeline (nil for other kinds)
func (d *Descriptor) Pipeline() *aggregation.Pipeline {
	return d.pipeline
}

// Keys returns a copy of the index key specification
func (d *Descriptor) Keys() index.KeySpec {
	return append(index.KeySpec(nil), d.keys...)
}

// Explain reports whether execution statistics were requested
func (d *Descriptor) Explain() bool {
	return d.explain
}

// String returns a one-line description used in logs and reports
func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.kind.String())
	b.WriteString("(")
	switch d.kind {
	case KindFind:
		b.WriteString(d.query.String())
		if d.explain {
			b.WriteString(", explain")
		}
	case KindUpdateOne:
		fmt.Fprintf(&b, "%s, %s", d.filter, d.mutation)
	case KindDeleteOne:
		b.WriteString(d.filter.String())
	case KindAggregate:
		b.WriteString(d.pipeline.String())
	case KindCreateIndex:
		b.WriteString(d.keys.Name())
	}
	b.WriteString(")")
	return b.String()
}
