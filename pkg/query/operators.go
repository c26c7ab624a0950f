package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Operator represents a query operator
type Operator string

const (
	// Comparison operators
	OpEqual              Operator = "$eq"
	OpNotEqual           Operator = "$ne"
	OpGreaterThan        Operator = "$gt"
	OpGreaterThanOrEqual Operator = "$gte"
	OpLessThan           Operator = "$lt"
	OpLessThanOrEqual    Operator = "$lte"
	OpIn                 Operator = "$in"
	OpNotIn              Operator = "$nin"

	// Logical operators
	OpAnd Operator = "$and"
	OpOr  Operator = "$or"
	OpNor Operator = "$nor"
	OpNot Operator = "$not"

	// Element operators
	OpExists Operator = "$exists"

	// Evaluation operators
	OpRegex   Operator = "$regex"
	OpOptions Operator = "$options"

	// Array operators
	OpSize Operator = "$size"
)

// ParseFilter converts a filter mapping such as
//
//	{"in_stock": true, "published_year": {"$gt": 2010}}
//
// into a Filter. Top-level keys are combined conjunctively. Keys are
// visited in sorted order so the resulting tree is deterministic.
func ParseFilter(spec map[string]interface{}) (Filter, error) {
	if len(spec) == 0 {
		return All{}, nil
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make(And, 0, len(keys))
	for _, key := range keys {
		value := document.Normalize(spec[key])

		switch {
		case key == string(OpAnd) || key == string(OpOr) || key == string(OpNor):
			children, err := parseFilterList(key, value)
			if err != nil {
				return nil, err
			}
			switch Operator(key) {
			case OpAnd:
				conditions = append(conditions, And(children))
			case OpOr:
				conditions = append(conditions, Or(children))
			default:
				conditions = append(conditions, Nor(children))
			}
		case strings.HasPrefix(key, "$"):
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
		case key == "":
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidFilter)
		default:
			c, err := parseFieldCondition(key, value)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, c)
		}
	}

	return simplify(conditions), nil
}

func parseFilterList(op string, value interface{}) ([]Filter, error) {
	list, ok := value.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: %s requires a non-empty array of conditions", ErrInvalidFilter, op)
	}

	children := make([]Filter, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: invalid condition %d in %s", ErrInvalidFilter, i, op)
		}
		child, err := ParseFilter(m)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// parseFieldCondition handles `field: value` and `field: {$op: value, ...}`
func parseFieldCondition(field string, value interface{}) (Filter, error) {
	ops, ok := value.(map[string]interface{})
	if !ok || !isOperatorMap(ops) {
		return Equals{Field: field, Value: value}, nil
	}

	opNames := make([]string, 0, len(ops))
	for k := range ops {
		if !strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("%w: cannot mix operators and fields in condition on %s", ErrInvalidFilter, field)
		}
		opNames = append(opNames, k)
	}
	sort.Strings(opNames)

	conditions := make(And, 0, len(opNames))
	for _, name := range opNames {
		op := Operator(name)
		if op == OpOptions {
			if _, hasRegex := ops[string(OpRegex)]; !hasRegex {
				return nil, fmt.Errorf("%w: $options without $regex on %s", ErrInvalidFilter, field)
			}
			continue
		}
		c, err := parseOperator(field, op, ops[name], ops)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}
	return simplify(conditions), nil
}

func parseOperator(field string, op Operator, value interface{}, siblings map[string]interface{}) (Filter, error) {
	switch op {
	case OpEqual:
		return Equals{Field: field, Value: value}, nil
	case OpNotEqual:
		return NotEqual{Field: field, Value: value}, nil
	case OpGreaterThan:
		return GreaterThan{Field: field, Value: value}, nil
	case OpGreaterThanOrEqual:
		return GreaterThanOrEqual{Field: field, Value: value}, nil
	case OpLessThan:
		return LessThan{Field: field, Value: value}, nil
	case OpLessThanOrEqual:
		return LessThanOrEqual{Field: field, Value: value}, nil
	case OpIn, OpNotIn:
		values, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s requires an array", ErrInvalidFilter, op, field)
		}
		if op == OpIn {
			return In{Field: field, Values: values}, nil
		}
		return NotIn{Field: field, Values: values}, nil
	case OpExists:
		switch v := value.(type) {
		case bool:
			return Exists{Field: field, Want: v}, nil
		default:
			if n, ok := document.ToFloat64(v); ok {
				return Exists{Field: field, Want: n != 0}, nil
			}
		}
		return nil, fmt.Errorf("%w: $exists on %s requires a boolean", ErrInvalidFilter, field)
	case OpRegex:
		pattern, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $regex on %s requires a string pattern", ErrInvalidFilter, field)
		}
		if opts, ok := siblings[string(OpOptions)].(string); ok && opts != "" {
			for _, o := range opts {
				if !strings.ContainsRune("ims", o) {
					return nil, fmt.Errorf("%w: unsupported $regex option %q", ErrInvalidFilter, o)
				}
			}
			pattern = "(?" + opts + ")" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid regex pattern: %v", ErrInvalidFilter, err)
		}
		return Regex{Field: field, Pattern: re}, nil
	case OpSize:
		n, ok := document.ToInt64(value)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: $size on %s requires a non-negative integer", ErrInvalidFilter, field)
		}
		return Size{Field: field, N: n}, nil
	case OpNot:
		inner, ok := value.(map[string]interface{})
		if !ok || !isOperatorMap(inner) {
			return nil, fmt.Errorf("%w: $not on %s requires an operator expression", ErrInvalidFilter, field)
		}
		c, err := parseFieldCondition(field, inner)
		if err != nil {
			return nil, err
		}
		return FieldNot{Field: field, Condition: c}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
}

// isOperatorMap reports whether any key of m is an operator. Maps without
// operators are literal sub-document values.
func isOperatorMap(m map[string]interface{}) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func simplify(conditions And) Filter {
	switch len(conditions) {
	case 0:
		return All{}
	case 1:
		return conditions[0]
	}
	return conditions
}
