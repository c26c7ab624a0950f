package query

import (
	"github.com/mnohosten/querybook/pkg/document"
)

// ExecutionStats describes the work done by one execution
type ExecutionStats struct {
	DocsExamined int
	KeysExamined int
	Returned     int
}

// Executor executes queries against a sequence of candidate documents. The
// candidates must be in the collection's iteration order.
type Executor struct {
	documents []*document.Document
}

// NewExecutor creates a new query executor
func NewExecutor(documents []*document.Document) *Executor {
	return &Executor{documents: documents}
}

// Execute executes a query and returns matching documents
func (e *Executor) Execute(q *Query) []*document.Document {
	results, _ := e.ExecuteWithStats(q)
	return results
}

// ExecuteWithStats executes q and reports how many candidates were examined.
// The order of operations is filter, sort, skip, limit, projection.
func (e *Executor) ExecuteWithStats(q *Query) ([]*document.Document, ExecutionStats) {
	var stats ExecutionStats
	results := make([]*document.Document, 0)

	for _, doc := range e.documents {
		stats.DocsExamined++
		if q.Matches(doc) {
			results = append(results, doc)
		}
	}

	SortDocuments(results, q.sort)

	if q.skip > 0 {
		if q.skip >= len(results) {
			results = results[:0]
		} else {
			results = results[q.skip:]
		}
	}

	if q.limit > 0 && q.limit < len(results) {
		results = results[:q.limit]
	}

	if q.projection != nil {
		projected := make([]*document.Document, len(results))
		for i, doc := range results {
			projected[i] = q.projection.Apply(doc)
		}
		results = projected
	}

	stats.Returned = len(results)
	return results, stats
}

// Count returns the number of documents matching the query filter
func (e *Executor) Count(q *Query) int {
	count := 0
	for _, doc := range e.documents {
		if q.Matches(doc) {
			count++
		}
	}
	return count
}
