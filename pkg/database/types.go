package database

// UpdateResult reports the outcome of UpdateOne. A filter matching nothing
// yields zero counts, not an error.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult reports the outcome of DeleteOne
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ExplainResult holds the execution statistics of one find
type ExplainResult struct {
	Stage               string   `json:"stage"`
	IndexName           string   `json:"indexName,omitempty"`
	FilterSteps         []string `json:"filterSteps,omitempty"`
	NReturned           int      `json:"nReturned"`
	TotalKeysExamined   int      `json:"totalKeysExamined"`
	TotalDocsExamined   int      `json:"totalDocsExamined"`
	ExecutionTimeMillis int64    `json:"executionTimeMillis"`
}

// ToMap renders the statistics in the explain("executionStats") shape
func (e *ExplainResult) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"stage":               e.Stage,
		"nReturned":           e.NReturned,
		"totalKeysExamined":   e.TotalKeysExamined,
		"totalDocsExamined":   e.TotalDocsExamined,
		"executionTimeMillis": e.ExecutionTimeMillis,
	}
	if e.IndexName != "" {
		m["indexName"] = e.IndexName
	}
	if len(e.FilterSteps) > 0 {
		m["filterSteps"] = e.FilterSteps
	}
	return m
}
