package aggregation

import (
	"fmt"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Pipeline represents an aggregation pipeline
type Pipeline struct {
	stages []Stage
}

// Stage represents a single stage in the pipeline. A stage consumes the
// previous stage's output and never modifies the documents it receives.
type Stage interface {
	Execute(docs []*document.Document) ([]*document.Document, error)
	Type() string
}

// NewPipeline creates a new aggregation pipeline from stage definitions.
// Each definition must hold exactly one stage operator.
func NewPipeline(stages []map[string]interface{}) (*Pipeline, error) {
	pipeline := &Pipeline{
		stages: make([]Stage, 0, len(stages)),
	}

	for i, stageDef := range stages {
		stage, err := createStage(stageDef)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		pipeline.stages = append(pipeline.stages, stage)
	}

	return pipeline, nil
}

// New composes already built stages
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: append([]Stage(nil), stages...)}
}

// Execute executes the pipeline
func (p *Pipeline) Execute(docs []*document.Document) ([]*document.Document, error) {
	result := docs

	for _, stage := range p.stages {
		var err error
		result, err = stage.Execute(result)
		if err != nil {
			return nil, fmt.Errorf("stage %s failed: %w", stage.Type(), err)
		}
	}

	return result, nil
}

// Stages returns the stages in execution order
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Len returns the number of stages
func (p *Pipeline) Len() int {
	return len(p.stages)
}

func (p *Pipeline) String() string {
	types := make([]string, len(p.stages))
	for i, s := range p.stages {
		types[i] = s.Type()
	}
	return "[" + strings.Join(types, ", ") + "]"
}

// createStage creates a stage from a definition
func createStage(stageDef map[string]interface{}) (Stage, error) {
	if len(stageDef) != 1 {
		return nil, fmt.Errorf("%w: a stage must hold exactly one operator, got %d", ErrInvalidStage, len(stageDef))
	}
	for stageType, raw := range stageDef {
		stageSpec := document.Normalize(raw)
		switch stageType {
		case "$match":
			return newMatchStage(stageSpec)
		case "$project":
			return newProjectStage(stageSpec)
		case "$sort":
			return newSortStage(stageSpec)
		case "$limit":
			return newLimitStage(stageSpec)
		case "$skip":
			return newSkipStage(stageSpec)
		case "$group":
			return newGroupStage(stageSpec)
		case "$bucket":
			return newBucketStage(stageSpec)
		case "$count":
			return newCountStage(stageSpec)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedStage, stageType)
		}
	}
	return nil, fmt.Errorf("%w: empty stage definition", ErrInvalidStage)
}
