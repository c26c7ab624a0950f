package query

import "github.com/mnohosten/querybook/pkg/document"

// CloneFilter returns a copy of f that shares no slices or maps with it.
// Compiled regular expressions are immutable and stay shared.
func CloneFilter(f Filter) Filter {
	switch v := f.(type) {
	case And:
		return And(cloneFilters(v))
	case Or:
		return Or(cloneFilters(v))
	case Nor:
		return Nor(cloneFilters(v))
	case FieldNot:
		return FieldNot{Field: v.Field, Condition: CloneFilter(v.Condition)}
	case In:
		return In{Field: v.Field, Values: cloneValues(v.Values)}
	case NotIn:
		return NotIn{Field: v.Field, Values: cloneValues(v.Values)}
	case Equals:
		return Equals{Field: v.Field, Value: cloneValue(v.Value)}
	case NotEqual:
		return NotEqual{Field: v.Field, Value: cloneValue(v.Value)}
	case GreaterThan:
		return GreaterThan{Field: v.Field, Value: cloneValue(v.Value)}
	case GreaterThanOrEqual:
		return GreaterThanOrEqual{Field: v.Field, Value: cloneValue(v.Value)}
	case LessThan:
		return LessThan{Field: v.Field, Value: cloneValue(v.Value)}
	case LessThanOrEqual:
		return LessThanOrEqual{Field: v.Field, Value: cloneValue(v.Value)}
	}
	return f
}

func cloneFilters(filters []Filter) []Filter {
	if filters == nil {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = CloneFilter(f)
	}
	return out
}

func cloneValues(values []interface{}) []interface{} {
	if values == nil {
		return nil
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		return cloneValues(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	case *document.Document:
		if val == nil {
			return val
		}
		return val.Clone()
	}
	return v
}
