package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Accumulator reduces the documents of one group to a single value
type Accumulator interface {
	Add(doc *document.Document)
	Result() interface{}
}

// AccumulatorSpec describes one output field of $group or $bucket, e.g.
// "averagePrice": {"$avg": "$price"}
type AccumulatorSpec struct {
	Field string
	Op    string
	Expr  Expression
}

// New returns a fresh accumulator for one group
func (s AccumulatorSpec) New() Accumulator {
	switch s.Op {
	case "$sum":
		return &sumAcc{expr: s.Expr, allInts: true}
	case "$avg":
		return &avgAcc{expr: s.Expr}
	case "$min":
		return &extremeAcc{expr: s.Expr, want: -1}
	case "$max":
		return &extremeAcc{expr: s.Expr, want: 1}
	case "$push":
		return &pushAcc{expr: s.Expr, values: []interface{}{}}
	case "$addToSet":
		return &pushAcc{expr: s.Expr, values: []interface{}{}, unique: true}
	case "$first":
		return &positionAcc{expr: s.Expr, first: true}
	case "$last":
		return &positionAcc{expr: s.Expr}
	default:
		return &countAcc{}
	}
}

func (s AccumulatorSpec) String() string {
	if s.Expr == nil {
		return fmt.Sprintf("%s: {%s}", s.Field, s.Op)
	}
	return fmt.Sprintf("%s: {%s: %s}", s.Field, s.Op, s.Expr)
}

// parseAccumulators reads every field of spec except the skipped ones as an
// accumulator definition. The result is sorted by output field name.
func parseAccumulators(spec map[string]interface{}, skip ...string) ([]AccumulatorSpec, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	var out []AccumulatorSpec
	for field, raw := range spec {
		if skipped[field] {
			continue
		}
		if field == "" || strings.HasPrefix(field, "$") || strings.Contains(field, ".") {
			return nil, fmt.Errorf("%w: invalid output field name %q", ErrInvalidStage, field)
		}
		def, ok := raw.(map[string]interface{})
		if !ok || len(def) != 1 {
			return nil, fmt.Errorf("%w: field %s must hold exactly one accumulator", ErrInvalidStage, field)
		}
		for op, arg := range def {
			acc := AccumulatorSpec{Field: field, Op: op}
			switch op {
			case "$sum", "$avg", "$min", "$max", "$push", "$addToSet", "$first", "$last":
				expr, err := ParseExpression(arg)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", field, err)
				}
				acc.Expr = expr
			case "$count":
				if m, ok := arg.(map[string]interface{}); arg != nil && (!ok || len(m) != 0) {
					return nil, fmt.Errorf("%w: $count takes no arguments", ErrInvalidStage)
				}
			default:
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedAccumulator, op)
			}
			out = append(out, acc)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

type sumAcc struct {
	expr    Expression
	intSum  int64
	fltSum  float64
	allInts bool
}

func (a *sumAcc) Add(doc *document.Document) {
	v, ok := a.expr.Eval(doc)
	if !ok || !document.IsNumber(v) {
		return
	}
	if n, isInt := v.(int64); isInt {
		a.intSum += n
		a.fltSum += float64(n)
		return
	}
	f, _ := document.ToFloat64(v)
	a.fltSum += f
	a.allInts = false
}

func (a *sumAcc) Result() interface{} {
	if a.allInts {
		return a.intSum
	}
	return a.fltSum
}

type avgAcc struct {
	expr  Expression
	sum   float64
	count int
}

func (a *avgAcc) Add(doc *document.Document) {
	v, ok := a.expr.Eval(doc)
	if !ok {
		return
	}
	if f, isNum := document.ToFloat64(v); isNum {
		a.sum += f
		a.count++
	}
}

func (a *avgAcc) Result() interface{} {
	if a.count == 0 {
		return nil
	}
	return a.sum / float64(a.count)
}

// extremeAcc tracks the minimum (want -1) or maximum (want 1), ignoring
// absent and null values
type extremeAcc struct {
	expr  Expression
	want  int
	value interface{}
	seen  bool
}

func (a *extremeAcc) Add(doc *document.Document) {
	v, ok := a.expr.Eval(doc)
	if !ok || v == nil {
		return
	}
	if !a.seen || document.Compare(v, a.value) == a.want {
		a.value = v
		a.seen = true
	}
}

func (a *extremeAcc) Result() interface{} { return a.value }

type pushAcc struct {
	expr   Expression
	values []interface{}
	unique bool
}

func (a *pushAcc) Add(doc *document.Document) {
	v, ok := a.expr.Eval(doc)
	if !ok {
		return
	}
	if a.unique {
		for _, existing := range a.values {
			if document.Equal(existing, v) {
				return
			}
		}
	}
	a.values = append(a.values, v)
}

func (a *pushAcc) Result() interface{} { return a.values }

type positionAcc struct {
	expr  Expression
	first bool
	value interface{}
	seen  bool
}

func (a *positionAcc) Add(doc *document.Document) {
	if a.first && a.seen {
		return
	}
	v, _ := a.expr.Eval(doc)
	a.value = v
	a.seen = true
}

func (a *positionAcc) Result() interface{} { return a.value }

type countAcc struct {
	n int64
}

func (a *countAcc) Add(*document.Document) { a.n++ }
func (a *countAcc) Result() interface{}    { return a.n }
