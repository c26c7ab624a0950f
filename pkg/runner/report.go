package runner

import (
	"time"

	"github.com/mnohosten/querybook/pkg/database"
	"github.com/mnohosten/querybook/pkg/descriptor"
	"github.com/mnohosten/querybook/pkg/document"
)

// Result is the outcome of one operation. Only the fields of its Kind are
// set.
type Result struct {
	Index     int
	Kind      descriptor.Kind
	Documents []*document.Document    // find, aggregate
	Update    *database.UpdateResult  // updateOne
	Delete    *database.DeleteResult  // deleteOne
	IndexName string                  // createIndex
	Explain   *database.ExplainResult // find with explain
	Duration  time.Duration
}

// Report describes one run
type Report struct {
	RunID       string
	State       State
	Results     []Result
	FailedIndex int // -1 unless the run failed
	StartedAt   time.Time
	Duration    time.Duration
}
