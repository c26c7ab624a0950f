package query

import (
	"sort"

	"github.com/mnohosten/querybook/pkg/index"
)

// ScanType represents the type of scan a plan performs
type ScanType int

const (
	ScanTypeCollection ScanType = iota // Full collection scan
	ScanTypeIndexExact                 // Equality lookup on an index prefix
)

// String returns the stage name reported by explain
func (s ScanType) String() string {
	if s == ScanTypeIndexExact {
		return "IXSCAN"
	}
	return "COLLSCAN"
}

// QueryPlan represents an execution plan for a query
type QueryPlan struct {
	UseIndex    bool
	IndexName   string
	Index       *index.Index
	ScanType    ScanType
	PrefixKey   []interface{} // Equality values for the leading index fields
	FilterSteps []string      // Fields still checked after the index lookup
}

// QueryPlanner plans query execution
type QueryPlanner struct {
	indexes []*index.Index
}

// NewQueryPlanner creates a new query planner. Indexes are considered in the
// order given, so earlier indexes win ties.
func NewQueryPlanner(indexes []*index.Index) *QueryPlanner {
	return &QueryPlanner{indexes: indexes}
}

// Plan creates an execution plan for a query. An index is used when the
// filter pins its leading fields with top-level equalities; the longest
// such prefix wins. Indexes holding array values are skipped because an
// equality on an array field matches elements, not the whole value.
func (qp *QueryPlanner) Plan(q *Query) *QueryPlan {
	plan := &QueryPlan{ScanType: ScanTypeCollection}

	eqs := Equalities(q.filter)
	if len(eqs) == 0 {
		return plan
	}

	for _, idx := range qp.indexes {
		if idx.IsMultikey() {
			continue
		}

		var prefix []interface{}
		for _, field := range idx.FieldPaths() {
			v, ok := eqs[field]
			if !ok {
				break
			}
			prefix = append(prefix, v)
		}
		if len(prefix) == 0 || len(prefix) <= len(plan.PrefixKey) {
			continue
		}

		plan.UseIndex = true
		plan.Index = idx
		plan.IndexName = idx.Name()
		plan.ScanType = ScanTypeIndexExact
		plan.PrefixKey = prefix
	}

	if plan.UseIndex {
		covered := make(map[string]bool, len(plan.PrefixKey))
		for _, field := range plan.Index.FieldPaths()[:len(plan.PrefixKey)] {
			covered[field] = true
		}
		for field := range eqs {
			if !covered[field] {
				plan.FilterSteps = append(plan.FilterSteps, field)
			}
		}
		sort.Strings(plan.FilterSteps)
	}

	return plan
}

// Explain returns the winning plan in explain form
func (p *QueryPlan) Explain() map[string]interface{} {
	out := map[string]interface{}{
		"stage": p.ScanType.String(),
	}
	if p.UseIndex {
		out["indexName"] = p.IndexName
		out["keyPattern"] = p.Index.Keys().Name()
		out["prefixLength"] = len(p.PrefixKey)
	}
	return out
}
