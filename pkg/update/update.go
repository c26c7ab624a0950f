// Package update implements the typed field mutations applied by updateOne.
package update

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnohosten/querybook/pkg/document"
)

// Operator names a mutation operator
type Operator string

const (
	OpSet      Operator = "$set"
	OpUnset    Operator = "$unset"
	OpInc      Operator = "$inc"
	OpMul      Operator = "$mul"
	OpMin      Operator = "$min"
	OpMax      Operator = "$max"
	OpPush     Operator = "$push"
	OpAddToSet Operator = "$addToSet"
	OpPull     Operator = "$pull"
	OpPop      Operator = "$pop"
	OpRename   Operator = "$rename"
)

// Op is a single field mutation
type Op interface {
	// Apply mutates doc in place
	Apply(doc *document.Document) error
	// Fields lists the paths the operation writes
	Fields() []string
	String() string
}

// Mutation is an ordered list of field operations
type Mutation struct {
	ops []Op
}

// New builds a mutation from already typed operations
func New(ops ...Op) (*Mutation, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidUpdate)
	}
	m := &Mutation{ops: copyOps(ops)}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// copyOps detaches a mutation from the caller's slices
func copyOps(ops []Op) []Op {
	out := make([]Op, len(ops))
	for i, op := range ops {
		switch o := op.(type) {
		case Push:
			o.Values = append([]interface{}(nil), o.Values...)
			op = o
		case AddToSet:
			o.Values = append([]interface{}(nil), o.Values...)
			op = o
		}
		out[i] = op
	}
	return out
}

// Parse converts an operator mapping such as
//
//	{"$set": {"price": 10.99}, "$inc": {"stock": -1}}
//
// into a Mutation. Operators and fields are visited in sorted order.
func Parse(spec map[string]interface{}) (*Mutation, error) {
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: empty update", ErrInvalidUpdate)
	}

	opNames := make([]string, 0, len(spec))
	for k := range spec {
		if !strings.HasPrefix(k, "$") {
			return nil, fmt.Errorf("%w: %q is not an update operator, replacement documents are not supported", ErrInvalidUpdate, k)
		}
		opNames = append(opNames, k)
	}
	sort.Strings(opNames)

	var ops []Op
	for _, name := range opNames {
		fields, ok := document.Normalize(spec[name]).(map[string]interface{})
		if !ok || len(fields) == 0 {
			return nil, fmt.Errorf("%w: %s requires a non-empty object", ErrInvalidUpdate, name)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, field := range keys {
			op, err := parseOp(Operator(name), field, fields[field])
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return New(ops...)
}

func parseOp(op Operator, field string, value interface{}) (Op, error) {
	switch op {
	case OpSet:
		return Set{Field: field, Value: value}, nil
	case OpUnset:
		return Unset{Field: field}, nil
	case OpInc, OpMul:
		if !document.IsNumber(value) {
			return nil, fmt.Errorf("%w: %s on %s requires a number", ErrInvalidUpdate, op, field)
		}
		if op == OpInc {
			return Inc{Field: field, By: value}, nil
		}
		return Mul{Field: field, By: value}, nil
	case OpMin:
		return Min{Field: field, Value: value}, nil
	case OpMax:
		return Max{Field: field, Value: value}, nil
	case OpPush, OpAddToSet:
		values := []interface{}{value}
		if mod, ok := value.(map[string]interface{}); ok {
			if each, hasEach := mod["$each"]; hasEach {
				arr, ok := each.([]interface{})
				if !ok || len(mod) != 1 {
					return nil, fmt.Errorf("%w: %s on %s: $each requires an array", ErrInvalidUpdate, op, field)
				}
				values = arr
			}
		}
		if op == OpPush {
			return Push{Field: field, Values: values}, nil
		}
		return AddToSet{Field: field, Values: values}, nil
	case OpPull:
		return Pull{Field: field, Value: value}, nil
	case OpPop:
		n, ok := document.ToInt64(value)
		if !ok || (n != 1 && n != -1) {
			return nil, fmt.Errorf("%w: $pop on %s requires 1 or -1", ErrInvalidUpdate, field)
		}
		return Pop{Field: field, First: n == -1}, nil
	case OpRename:
		to, ok := value.(string)
		if !ok || to == "" || to == field {
			return nil, fmt.Errorf("%w: $rename of %s requires a different target field name", ErrInvalidUpdate, field)
		}
		return Rename{From: field, To: to}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

func (m *Mutation) validate() error {
	written := make(map[string]string)
	for _, op := range m.ops {
		for _, f := range op.Fields() {
			if f == "" || strings.HasPrefix(f, "$") {
				return fmt.Errorf("%w: invalid field name %q", ErrInvalidUpdate, f)
			}
			if f == "_id" || strings.HasPrefix(f, "_id.") {
				return fmt.Errorf("%w: _id is immutable", ErrInvalidUpdate)
			}
			for other, by := range written {
				if other == f || strings.HasPrefix(other, f+".") || strings.HasPrefix(f, other+".") {
					return fmt.Errorf("%w: %s conflicts with %s", ErrInvalidUpdate, op, by)
				}
			}
			written[f] = op.String()
		}
	}
	return nil
}

// Apply runs the mutation against a copy of doc and returns the copy along
// with whether any field actually changed. doc itself is never modified.
func (m *Mutation) Apply(doc *document.Document) (*document.Document, bool, error) {
	updated := doc.Clone()
	for _, op := range m.ops {
		if err := op.Apply(updated); err != nil {
			return nil, false, err
		}
	}
	return updated, !updated.Identical(doc), nil
}

// Ops returns the operations in application order
func (m *Mutation) Ops() []Op {
	return append([]Op(nil), m.ops...)
}

// Fields returns every path written by the mutation
func (m *Mutation) Fields() []string {
	var out []string
	for _, op := range m.ops {
		out = append(out, op.Fields()...)
	}
	return out
}

func (m *Mutation) String() string {
	parts := make([]string, len(m.ops))
	for i, op := range m.ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, "; ")
}
