package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Expression computes a value from a document
type Expression interface {
	// Eval returns the value and whether it is present
	Eval(doc *document.Document) (interface{}, bool)
	String() string
}

// FieldRef reads a (possibly dotted) field, written "$field"
type FieldRef string

func (f FieldRef) Eval(doc *document.Document) (interface{}, bool) {
	return doc.GetPath(string(f))
}

func (f FieldRef) String() string { return "$" + string(f) }

// Literal is a constant value
type Literal struct {
	Value interface{}
}

func (l Literal) Eval(*document.Document) (interface{}, bool) { return l.Value, true }
func (l Literal) String() string                               { return fmt.Sprintf("%#v", l.Value) }

// Object builds a sub-document from named expressions. Absent members are
// left out.
type Object struct {
	keys  []string
	exprs map[string]Expression
}

func (o Object) Eval(doc *document.Document) (interface{}, bool) {
	out := make(map[string]interface{}, len(o.keys))
	for _, k := range o.keys {
		if v, ok := o.exprs[k].Eval(doc); ok {
			out[k] = v
		}
	}
	return out, true
}

func (o Object) String() string {
	parts := make([]string, len(o.keys))
	for i, k := range o.keys {
		parts[i] = k + ": " + o.exprs[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParseExpression turns "$field" strings into field references, maps into
// objects and everything else into literals. {"$literal": v} escapes a
// value that would otherwise be read as a reference.
func ParseExpression(v interface{}) (Expression, error) {
	switch val := document.Normalize(v).(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			path := val[1:]
			if path == "" || strings.HasPrefix(path, "$") {
				return nil, fmt.Errorf("%w: invalid field reference %q", ErrInvalidStage, val)
			}
			return FieldRef(path), nil
		}
		return Literal{Value: val}, nil
	case map[string]interface{}:
		if lit, ok := val["$literal"]; ok && len(val) == 1 {
			return Literal{Value: lit}, nil
		}
		obj := Object{exprs: make(map[string]Expression, len(val))}
		for k, item := range val {
			if strings.HasPrefix(k, "$") {
				return nil, fmt.Errorf("%w: unsupported expression operator %s", ErrInvalidStage, k)
			}
			e, err := ParseExpression(item)
			if err != nil {
				return nil, err
			}
			obj.keys = append(obj.keys, k)
			obj.exprs[k] = e
		}
		sort.Strings(obj.keys)
		return obj, nil
	default:
		return Literal{Value: val}, nil
	}
}
