package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mnohosten/querybook/pkg/document"
	"github.com/mnohosten/querybook/pkg/query"
)

// MatchStage filters documents
type MatchStage struct {
	filter query.Filter
}

// NewMatchStage wraps an already parsed filter
func NewMatchStage(filter query.Filter) *MatchStage {
	if filter == nil {
		filter = query.All{}
	}
	return &MatchStage{filter: filter}
}

func newMatchStage(spec interface{}) (*MatchStage, error) {
	filterSpec, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: $match requires a filter object", ErrInvalidStage)
	}
	filter, err := query.ParseFilter(filterSpec)
	if err != nil {
		return nil, fmt.Errorf("$match: %w", err)
	}
	return NewMatchStage(filter), nil
}

func (s *MatchStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	result := make([]*document.Document, 0)
	for _, doc := range docs {
		if s.filter.Match(doc) {
			result = append(result, doc)
		}
	}
	return result, nil
}

func (s *MatchStage) Type() string {
	return "$match"
}

// ProjectStage selects fields and computes new ones from expressions
type ProjectStage struct {
	projection *query.Projection
	computed   []string
	exprs      map[string]Expression
	excludeID  bool
}

func newProjectStage(spec interface{}) (*ProjectStage, error) {
	projSpec, ok := spec.(map[string]interface{})
	if !ok || len(projSpec) == 0 {
		return nil, fmt.Errorf("%w: $project requires a non-empty projection object", ErrInvalidStage)
	}

	s := &ProjectStage{exprs: make(map[string]Expression)}
	flags := make(map[string]interface{})
	for field, v := range projSpec {
		switch v.(type) {
		case bool, int64, float64:
			flags[field] = v
			if field == "_id" {
				include, _ := document.ToFloat64(v)
				if b, isBool := v.(bool); isBool {
					s.excludeID = !b
				} else {
					s.excludeID = include == 0
				}
			}
		default:
			if field == "_id" || field == "" || strings.HasPrefix(field, "$") {
				return nil, fmt.Errorf("%w: cannot compute field %q", ErrInvalidStage, field)
			}
			expr, err := ParseExpression(v)
			if err != nil {
				return nil, err
			}
			s.computed = append(s.computed, field)
			s.exprs[field] = expr
		}
	}
	sort.Strings(s.computed)

	projection, err := query.ParseProjection(flags)
	if err != nil {
		return nil, fmt.Errorf("$project: %w", err)
	}
	if len(s.computed) > 0 && projection != nil && !projection.IsInclusion() && len(projection.Fields()) > 0 {
		return nil, fmt.Errorf("%w: $project cannot mix exclusions with computed fields", ErrInvalidStage)
	}
	s.projection = projection
	return s, nil
}

func (s *ProjectStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	result := make([]*document.Document, 0, len(docs))

	for _, doc := range docs {
		var projected *document.Document
		switch {
		case len(s.computed) == 0:
			projected = s.projection.Apply(doc)
		case s.projection.IsInclusion():
			projected = s.projection.Apply(doc)
		default:
			projected = document.NewDocument()
			if id, ok := doc.Get("_id"); ok && !s.excludeID {
				projected.Set("_id", id)
			}
		}

		for _, field := range s.computed {
			if v, ok := s.exprs[field].Eval(doc); ok {
				if err := projected.SetPath(field, v); err != nil {
					return nil, err
				}
			}
		}
		result = append(result, projected)
	}

	return result, nil
}

func (s *ProjectStage) Type() string {
	return "$project"
}

// SortStage sorts documents. The sort is stable.
type SortStage struct {
	sortFields []query.SortField
}

// NewSortStage sorts by the given fields
func NewSortStage(fields []query.SortField) *SortStage {
	return &SortStage{sortFields: append([]query.SortField(nil), fields...)}
}

func newSortStage(spec interface{}) (*SortStage, error) {
	sortFields, err := query.ParseSort(spec)
	if err != nil {
		return nil, fmt.Errorf("$sort: %w", err)
	}
	if len(sortFields) == 0 {
		return nil, fmt.Errorf("%w: $sort requires at least one field", ErrInvalidStage)
	}
	return NewSortStage(sortFields), nil
}

func (s *SortStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	// Create a copy to avoid modifying the original slice
	result := make([]*document.Document, len(docs))
	copy(result, docs)
	query.SortDocuments(result, s.sortFields)
	return result, nil
}

func (s *SortStage) Type() string {
	return "$sort"
}

// LimitStage limits the number of documents
type LimitStage struct {
	limit int
}

// NewLimitStage keeps the first n documents
func NewLimitStage(n int) *LimitStage {
	return &LimitStage{limit: n}
}

func newLimitStage(spec interface{}) (*LimitStage, error) {
	n, ok := document.ToInt64(spec)
	if !ok || n <= 0 {
		return nil, fmt.Errorf("%w: $limit requires a positive integer, got %v", ErrInvalidStage, spec)
	}
	return NewLimitStage(int(n)), nil
}

func (s *LimitStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	if s.limit >= len(docs) {
		return docs, nil
	}
	return docs[:s.limit], nil
}

func (s *LimitStage) Type() string {
	return "$limit"
}

// SkipStage skips documents
type SkipStage struct {
	skip int
}

func newSkipStage(spec interface{}) (*SkipStage, error) {
	n, ok := document.ToInt64(spec)
	if !ok || n < 0 {
		return nil, fmt.Errorf("%w: $skip requires a non-negative integer, got %v", ErrInvalidStage, spec)
	}
	return &SkipStage{skip: int(n)}, nil
}

func (s *SkipStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	if s.skip >= len(docs) {
		return []*document.Document{}, nil
	}
	return docs[s.skip:], nil
}

func (s *SkipStage) Type() string {
	return "$skip"
}

// GroupStage partitions documents by the _id expression and reduces each
// partition with its accumulators. Groups are emitted in the order their
// key was first seen.
type GroupStage struct {
	id           Expression
	accumulators []AccumulatorSpec
}

func newGroupStage(spec interface{}) (*GroupStage, error) {
	groupSpec, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: $group requires a group specification", ErrInvalidStage)
	}

	rawID, exists := groupSpec["_id"]
	if !exists {
		return nil, fmt.Errorf("%w: $group requires an _id field", ErrInvalidStage)
	}
	id, err := ParseExpression(rawID)
	if err != nil {
		return nil, err
	}

	accs, err := parseAccumulators(groupSpec, "_id")
	if err != nil {
		return nil, err
	}

	return &GroupStage{id: id, accumulators: accs}, nil
}

type group struct {
	key  interface{}
	accs []Accumulator
}

func (s *GroupStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	index := make(map[string]*group)
	var order []*group

	for _, doc := range docs {
		key, _ := s.id.Eval(doc)
		fp, err := fingerprint(key)
		if err != nil {
			return nil, err
		}
		g, ok := index[fp]
		if !ok {
			g = &group{key: key, accs: newAccumulators(s.accumulators)}
			index[fp] = g
			order = append(order, g)
		}
		for _, acc := range g.accs {
			acc.Add(doc)
		}
	}

	result := make([]*document.Document, 0, len(order))
	for _, g := range order {
		result = append(result, groupDocument(g.key, s.accumulators, g.accs))
	}
	return result, nil
}

func (s *GroupStage) Type() string {
	return "$group"
}

// BucketStage partitions documents into ranges of the groupBy value.
// Bucket i holds values v with boundaries[i] <= v < boundaries[i+1] and is
// identified by its lower boundary.
type BucketStage struct {
	groupBy      Expression
	boundaries   []interface{}
	defaultID    interface{}
	hasDefault   bool
	accumulators []AccumulatorSpec
}

func newBucketStage(spec interface{}) (*BucketStage, error) {
	bucketSpec, ok := spec.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: $bucket requires a bucket specification", ErrInvalidStage)
	}
	for k := range bucketSpec {
		switch k {
		case "groupBy", "boundaries", "default", "output":
		default:
			return nil, fmt.Errorf("%w: unknown $bucket option %s", ErrInvalidStage, k)
		}
	}

	rawGroupBy, ok := bucketSpec["groupBy"]
	if !ok {
		return nil, fmt.Errorf("%w: $bucket requires groupBy", ErrInvalidStage)
	}
	groupBy, err := ParseExpression(rawGroupBy)
	if err != nil {
		return nil, err
	}

	boundaries, ok := bucketSpec["boundaries"].([]interface{})
	if !ok || len(boundaries) < 2 {
		return nil, fmt.Errorf("%w: $bucket requires at least two boundaries", ErrInvalidStage)
	}
	for i := 1; i < len(boundaries); i++ {
		if !document.Comparable(boundaries[i-1], boundaries[i]) {
			return nil, fmt.Errorf("%w: $bucket boundaries must share one type", ErrInvalidStage)
		}
		if document.Compare(boundaries[i-1], boundaries[i]) >= 0 {
			return nil, fmt.Errorf("%w: $bucket boundaries must be strictly ascending", ErrInvalidStage)
		}
	}

	s := &BucketStage{groupBy: groupBy, boundaries: boundaries}
	s.defaultID, s.hasDefault = bucketSpec["default"]

	if raw, hasOutput := bucketSpec["output"]; hasOutput {
		output, ok := raw.(map[string]interface{})
		if !ok || len(output) == 0 {
			return nil, fmt.Errorf("%w: $bucket output must be a non-empty object", ErrInvalidStage)
		}
		if s.accumulators, err = parseAccumulators(output); err != nil {
			return nil, err
		}
	} else {
		s.accumulators = []AccumulatorSpec{{Field: "count", Op: "$sum", Expr: Literal{Value: int64(1)}}}
	}

	return s, nil
}

func (s *BucketStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	buckets := make([][]Accumulator, len(s.boundaries)-1)
	var defaultBucket []Accumulator

	for _, doc := range docs {
		v, _ := s.groupBy.Eval(doc)
		i := s.bucketFor(v)
		var accs []Accumulator
		switch {
		case i >= 0:
			if buckets[i] == nil {
				buckets[i] = newAccumulators(s.accumulators)
			}
			accs = buckets[i]
		case s.hasDefault:
			if defaultBucket == nil {
				defaultBucket = newAccumulators(s.accumulators)
			}
			accs = defaultBucket
		default:
			return nil, fmt.Errorf("%w: %v and no default bucket", ErrNoBucket, v)
		}
		for _, acc := range accs {
			acc.Add(doc)
		}
	}

	result := make([]*document.Document, 0, len(buckets)+1)
	for i, accs := range buckets {
		if accs != nil {
			result = append(result, groupDocument(s.boundaries[i], s.accumulators, accs))
		}
	}
	if defaultBucket != nil {
		result = append(result, groupDocument(s.defaultID, s.accumulators, defaultBucket))
	}
	return result, nil
}

// bucketFor returns the bucket index of v or -1 when v falls outside
func (s *BucketStage) bucketFor(v interface{}) int {
	if !document.Comparable(v, s.boundaries[0]) {
		return -1
	}
	// first boundary strictly greater than v
	upper := sort.Search(len(s.boundaries), func(i int) bool {
		return document.Compare(s.boundaries[i], v) > 0
	})
	if upper == 0 || upper == len(s.boundaries) {
		return -1
	}
	return upper - 1
}

func (s *BucketStage) Type() string {
	return "$bucket"
}

// CountStage replaces its input with a single {field: n} document
type CountStage struct {
	field string
}

func newCountStage(spec interface{}) (*CountStage, error) {
	field, ok := spec.(string)
	if !ok || field == "" || strings.HasPrefix(field, "$") || strings.Contains(field, ".") {
		return nil, fmt.Errorf("%w: $count requires a plain field name", ErrInvalidStage)
	}
	return &CountStage{field: field}, nil
}

func (s *CountStage) Execute(docs []*document.Document) ([]*document.Document, error) {
	if len(docs) == 0 {
		return []*document.Document{}, nil
	}
	doc := document.NewDocument()
	doc.Set(s.field, int64(len(docs)))
	return []*document.Document{doc}, nil
}

func (s *CountStage) Type() string {
	return "$count"
}

func newAccumulators(specs []AccumulatorSpec) []Accumulator {
	accs := make([]Accumulator, len(specs))
	for i, spec := range specs {
		accs[i] = spec.New()
	}
	return accs
}

func groupDocument(id interface{}, specs []AccumulatorSpec, accs []Accumulator) *document.Document {
	doc := document.NewDocument()
	doc.Set("_id", id)
	for i, spec := range specs {
		doc.Set(spec.Field, accs[i].Result())
	}
	return doc
}

// fingerprint encodes a group key so that keys equal under document.Equal
// share one fingerprint. Numbers share a prefix so 1 and 1.0 group together.
func fingerprint(key interface{}) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("cannot group by %v: %w", key, err)
	}
	kind := document.TypeOf(key).String()
	if document.IsNumber(key) {
		kind = "number"
	}
	return kind + ":" + string(data), nil
}
